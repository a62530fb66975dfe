package domain

import (
	"encoding/json"
	"time"
)

// WebhookEvent is one inbound platform notification after signature
// verification, before topic dispatch.
type WebhookEvent struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Shop       string          `json:"shop"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}
