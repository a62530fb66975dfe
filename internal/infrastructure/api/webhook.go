package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"storepulse-shopify-core/internal/application"
	"storepulse-shopify-core/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SignatureVerifier checks a webhook delivery's HMAC signature.
type SignatureVerifier interface {
	Verify(body []byte, signature string) bool
}

// WebhookMetrics counts inbound deliveries by topic.
type WebhookMetrics interface {
	RecordWebhookReceived(topic string)
}

type nopWebhookMetrics struct{}

func (nopWebhookMetrics) RecordWebhookReceived(string) {}

// WebhookHandler receives platform webhook deliveries: verify the
// signature, build the event, dispatch. A handler failure returns 500 so
// the platform redelivers.
func WebhookHandler(
	verifier SignatureVerifier,
	dispatcher *application.WebhookDispatcher,
	metrics WebhookMetrics,
	logger zerolog.Logger,
) http.HandlerFunc {
	if metrics == nil {
		metrics = nopWebhookMetrics{}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.Header.Get("X-Shopify-Topic")
		if topic == "" {
			logger.Warn().Msg("Missing X-Shopify-Topic header")
			http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to read webhook payload")
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		signature := r.Header.Get("X-Shopify-Hmac-SHA256")
		if !verifier.Verify(payload, signature) {
			logger.Warn().Str("topic", topic).Msg("Webhook signature verification failed")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		metrics.RecordWebhookReceived(topic)

		event := &domain.WebhookEvent{
			ID:         uuid.NewString(),
			Topic:      topic,
			Shop:       r.Header.Get("X-Shopify-Shop-Domain"),
			Payload:    payload,
			ReceivedAt: time.Now(),
		}

		if err := dispatcher.Dispatch(r.Context(), event); err != nil {
			logger.Error().
				Err(err).
				Str("topic", topic).
				Str("shop", event.Shop).
				Msg("Failed to dispatch webhook event")
			// 500 triggers the platform's redelivery
			http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"received": "true"})
	}
}
