package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"storepulse-shopify-core/internal/application"
	"storepulse-shopify-core/internal/domain"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events by tearing
// down the storefront connection.
type AppUninstalledHandler struct {
	connections *application.ConnectionService
	logger      zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(connections *application.ConnectionService, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		connections: connections,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle processes an app uninstalled webhook event
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	shopDomain := event.Shop
	if shopDomain == "" {
		var shopData struct {
			Domain          string `json:"domain"`
			MyshopifyDomain string `json:"myshopify_domain"`
		}
		if err := json.Unmarshal(event.Payload, &shopData); err != nil {
			return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
		}
		shopDomain = shopData.MyshopifyDomain
		if shopDomain == "" {
			shopDomain = shopData.Domain
		}
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Msg("Processing app uninstalled webhook event")

	conn, err := h.connections.GetByDomain(ctx, shopDomain)
	if err != nil {
		// The uninstall may race an explicit disconnect; nothing left to
		// tear down in that case.
		h.logger.Warn().Err(err).Str("shop", shopDomain).Msg("No connection found for uninstalled shop")
		return nil
	}

	if _, err := h.connections.Disconnect(ctx, conn.ID); err != nil {
		return fmt.Errorf("failed to disconnect uninstalled shop: %w", err)
	}

	h.logger.Info().
		Str("shop", shopDomain).
		Str("connectionId", conn.ID).
		Msg("App uninstalled, connection torn down")
	return nil
}
