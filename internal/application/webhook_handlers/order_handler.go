package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storepulse-shopify-core/internal/application"
	"storepulse-shopify-core/internal/domain"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related webhook events by appending purchase
// events for the affected order.
type OrderHandler struct {
	sync   *application.SyncService
	logger zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(sync *application.SyncService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		sync:   sync,
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == "orders/create" ||
		topic == "orders/paid" ||
		topic == "orders/updated"
}

// Handle processes an order webhook event
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var orderData struct {
		ID          int64  `json:"id"`
		OrderNumber int    `json:"order_number"`
		Currency    string `json:"currency"`
	}
	if err := json.Unmarshal(event.Payload, &orderData); err != nil {
		return fmt.Errorf("failed to parse order webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("orderId", orderData.ID).
		Int("orderNumber", orderData.OrderNumber).
		Str("currency", orderData.Currency).
		Msg("Processing order webhook event")

	if err := h.sync.SyncOrderByID(ctx, event.Shop, orderData.ID); err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			// The in-flight full sync's order pass covers this order.
			h.logger.Debug().
				Str("shop", event.Shop).
				Int64("orderId", orderData.ID).
				Msg("Full sync in flight, order refresh skipped")
			return nil
		}
		return fmt.Errorf("failed to ingest order from webhook: %w", err)
	}
	return nil
}
