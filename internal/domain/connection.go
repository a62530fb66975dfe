package domain

import "time"

// ConnectionStatus is the lifecycle state of a linked storefront.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusExpired      ConnectionStatus = "expired"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// Credential holds the OAuth tokens granted by the platform for one store.
// It is present only while the connection is connected or reconnecting;
// disconnect always clears it.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ConnectionMeta carries provider-specific metadata captured at connect time.
type ConnectionMeta struct {
	Currency string `json:"currency,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Plan     string `json:"plan,omitempty"`
}

// Connection represents one merchant storefront linked to the system.
// Connections are never hard-deleted; they move to disconnected with
// credentials cleared.
type Connection struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Provider   string           `json:"provider"`
	Status     ConnectionStatus `json:"status"`
	Domain     string           `json:"domain"`
	Credential *Credential      `json:"credential,omitempty"`
	Webhooks   []Webhook        `json:"webhooks"`
	Meta       ConnectionMeta   `json:"meta"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	LastSyncAt *time.Time       `json:"last_sync_at,omitempty"`
}

// IsActive reports whether the connection may drive syncs.
func (c *Connection) IsActive() bool {
	return c.Status == StatusConnected
}

// HasCredential reports whether the connection carries a usable access token.
func (c *Connection) HasCredential() bool {
	return c.Credential != nil && c.Credential.AccessToken != ""
}

// WebhookStatus is the delivery state of a webhook subscription.
type WebhookStatus string

const (
	WebhookActive   WebhookStatus = "active"
	WebhookInactive WebhookStatus = "inactive"
)

// Webhook is a push subscription registered with the external platform.
// It is owned exclusively by its Connection and mirrored into the
// connection's embedded webhook list.
type Webhook struct {
	ID           string        `json:"id"`
	ConnectionID string        `json:"connection_id"`
	Topic        string        `json:"topic"`
	Address      string        `json:"address"`
	Status       WebhookStatus `json:"status"`
	PlatformID   int64         `json:"platform_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
