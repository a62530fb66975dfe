package application

import (
	"context"

	"storepulse-shopify-core/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes inbound platform notifications for the topics
// it claims via CanHandle.
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes a verified webhook event to every registered
// handler that claims its topic. Handler errors are logged and do not stop
// the remaining handlers; the platform retries on non-2xx, so dispatch only
// fails when no handler claimed the topic at all.
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher over the given handlers.
func NewWebhookDispatcher(logger zerolog.Logger, handlers ...WebhookHandler) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: handlers,
		logger:   logger,
	}
}

// Dispatch fans the event out to matching handlers.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	matched := 0
	var lastErr error

	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		matched++
		if err := h.Handle(ctx, event); err != nil {
			d.logger.Error().
				Err(err).
				Str("topic", event.Topic).
				Str("shop", event.Shop).
				Msg("Webhook handler failed")
			lastErr = err
		}
	}

	if matched == 0 {
		d.logger.Debug().
			Str("topic", event.Topic).
			Str("shop", event.Shop).
			Msg("No handler registered for webhook topic, ignoring")
		return nil
	}
	return lastErr
}
