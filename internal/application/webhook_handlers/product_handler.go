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

// ProductHandler handles product-related webhook events by triggering a
// targeted catalog refresh for the affected product.
type ProductHandler struct {
	sync   *application.SyncService
	logger zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(sync *application.SyncService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		sync:   sync,
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/create" ||
		topic == "products/update" ||
		topic == "products/delete"
}

// Handle processes a product webhook event
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var productData struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(event.Payload, &productData); err != nil {
		return fmt.Errorf("failed to parse product webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("productId", productData.ID).
		Str("title", productData.Title).
		Msg("Processing product webhook event")

	if event.Topic == "products/delete" {
		// The snapshot keeps its last synced state; the next full sync
		// no longer sees the product and stops emitting events for it.
		h.logger.Info().
			Str("shop", event.Shop).
			Int64("productId", productData.ID).
			Msg("Product deleted upstream")
		return nil
	}

	if err := h.sync.SyncProductByID(ctx, event.Shop, productData.ID); err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			h.logger.Debug().
				Str("shop", event.Shop).
				Int64("productId", productData.ID).
				Msg("Full sync in flight, product refresh skipped")
			return nil
		}
		return fmt.Errorf("failed to refresh product from webhook: %w", err)
	}
	return nil
}
