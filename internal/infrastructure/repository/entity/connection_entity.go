package entity

import (
	"time"

	"storepulse-shopify-core/internal/domain"
)

// MongoCredentialDoc represents an access credential embedded in a
// connection document
type MongoCredentialDoc struct {
	AccessToken  string `bson:"accessToken"`
	RefreshToken string `bson:"refreshToken,omitempty"`
	Scope        string `bson:"scope,omitempty"`
}

// MongoWebhookDoc represents a webhook subscription embedded in a
// connection document
type MongoWebhookDoc struct {
	ID           string    `bson:"id"`
	ConnectionID string    `bson:"connectionId"`
	Topic        string    `bson:"topic"`
	Address      string    `bson:"address"`
	Status       string    `bson:"status"`
	PlatformID   int64     `bson:"platformId"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// MongoConnectionDoc represents a storefront connection in MongoDB
type MongoConnectionDoc struct {
	ID         string              `bson:"_id"`
	UserID     string              `bson:"userId"`
	Provider   string              `bson:"provider"`
	Status     string              `bson:"status"`
	Domain     string              `bson:"domain"`
	Credential *MongoCredentialDoc `bson:"credential,omitempty"`
	Webhooks   []MongoWebhookDoc   `bson:"webhooks"`
	Currency   string              `bson:"currency,omitempty"`
	Timezone   string              `bson:"timezone,omitempty"`
	Plan       string              `bson:"plan,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt"`
	LastSyncAt *time.Time          `bson:"lastSyncAt,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoConnectionDoc) ToDomain() *domain.Connection {
	conn := &domain.Connection{
		ID:       d.ID,
		UserID:   d.UserID,
		Provider: d.Provider,
		Status:   domain.ConnectionStatus(d.Status),
		Domain:   d.Domain,
		Webhooks: make([]domain.Webhook, 0, len(d.Webhooks)),
		Meta: domain.ConnectionMeta{
			Currency: d.Currency,
			Timezone: d.Timezone,
			Plan:     d.Plan,
		},
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		LastSyncAt: d.LastSyncAt,
	}

	if d.Credential != nil {
		conn.Credential = &domain.Credential{
			AccessToken:  d.Credential.AccessToken,
			RefreshToken: d.Credential.RefreshToken,
			Scope:        d.Credential.Scope,
		}
	}

	for _, wh := range d.Webhooks {
		conn.Webhooks = append(conn.Webhooks, domain.Webhook{
			ID:           wh.ID,
			ConnectionID: wh.ConnectionID,
			Topic:        wh.Topic,
			Address:      wh.Address,
			Status:       domain.WebhookStatus(wh.Status),
			PlatformID:   wh.PlatformID,
			CreatedAt:    wh.CreatedAt,
			UpdatedAt:    wh.UpdatedAt,
		})
	}

	return conn
}

// MongoConnectionDocFromDomain converts a domain entity to a MongoDB document
func MongoConnectionDocFromDomain(conn *domain.Connection) *MongoConnectionDoc {
	doc := &MongoConnectionDoc{
		ID:         conn.ID,
		UserID:     conn.UserID,
		Provider:   conn.Provider,
		Status:     string(conn.Status),
		Domain:     conn.Domain,
		Webhooks:   make([]MongoWebhookDoc, 0, len(conn.Webhooks)),
		Currency:   conn.Meta.Currency,
		Timezone:   conn.Meta.Timezone,
		Plan:       conn.Meta.Plan,
		CreatedAt:  conn.CreatedAt,
		UpdatedAt:  conn.UpdatedAt,
		LastSyncAt: conn.LastSyncAt,
	}

	if conn.Credential != nil {
		doc.Credential = &MongoCredentialDoc{
			AccessToken:  conn.Credential.AccessToken,
			RefreshToken: conn.Credential.RefreshToken,
			Scope:        conn.Credential.Scope,
		}
	}

	for _, wh := range conn.Webhooks {
		doc.Webhooks = append(doc.Webhooks, MongoWebhookDoc{
			ID:           wh.ID,
			ConnectionID: wh.ConnectionID,
			Topic:        wh.Topic,
			Address:      wh.Address,
			Status:       string(wh.Status),
			PlatformID:   wh.PlatformID,
			CreatedAt:    wh.CreatedAt,
			UpdatedAt:    wh.UpdatedAt,
		})
	}

	return doc
}
