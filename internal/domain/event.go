package domain

import "time"

// EventKind tags an analytics event. The kind determines which optional
// fields are meaningful; Validate enforces the per-kind requirements at the
// ingestion boundary.
type EventKind string

const (
	EventView           EventKind = "view"
	EventAddToCart      EventKind = "add_to_cart"
	EventRemoveFromCart EventKind = "remove_from_cart"
	EventPurchase       EventKind = "purchase"
	EventSync           EventKind = "sync"
	EventUpdate         EventKind = "update"
	EventClick          EventKind = "click"
	EventConversion     EventKind = "conversion"
	EventReview         EventKind = "review"
)

// KnownEventKinds lists every recognized kind; anything else fails
// validation and counts against the accuracy score.
var KnownEventKinds = map[EventKind]bool{
	EventView:           true,
	EventAddToCart:      true,
	EventRemoveFromCart: true,
	EventPurchase:       true,
	EventSync:           true,
	EventUpdate:         true,
	EventClick:          true,
	EventConversion:     true,
	EventReview:         true,
}

// Attribution carries the optional page/referrer/UTM fields.
type Attribution struct {
	Page        string `json:"page,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMMedium   string `json:"utm_medium,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

// DeviceGeo carries the optional device/geography fields.
type DeviceGeo struct {
	Device  string `json:"device,omitempty"`
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// Event is one immutable fact appended to the event log. Once appended it
// is never mutated or deleted.
type Event struct {
	EventID    string            `json:"event_id"`
	UserID     string            `json:"user_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	StoreID    string            `json:"store_id"`
	ProductID  string            `json:"product_id,omitempty"`
	VariantID  string            `json:"variant_id,omitempty"`
	Kind       EventKind         `json:"kind"`
	Timestamp  time.Time         `json:"timestamp"`
	Quantity   int               `json:"quantity,omitempty"`
	Price      float64           `json:"price,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Discount   float64           `json:"discount,omitempty"`
	Attr       Attribution       `json:"attr,omitempty"`
	Device     DeviceGeo         `json:"device,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	IngestedAt time.Time         `json:"ingested_at"`
}

// Validate checks the invariants the event kind imposes on the optional
// fields. It is called once, at the ingestion boundary.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return NewValidationError("event id is required")
	}
	if e.StoreID == "" {
		return NewValidationError("store id is required")
	}
	if e.Timestamp.IsZero() {
		return NewValidationError("timestamp is required")
	}
	if !KnownEventKinds[e.Kind] {
		return NewValidationError("unrecognized event kind: " + string(e.Kind))
	}
	switch e.Kind {
	case EventPurchase:
		if e.Quantity <= 0 {
			return NewValidationError("purchase event requires a positive quantity")
		}
		if e.Price < 0 {
			return NewValidationError("purchase event requires a non-negative price")
		}
		if e.ProductID == "" {
			return NewValidationError("purchase event requires a product id")
		}
	case EventView, EventAddToCart, EventRemoveFromCart:
		if e.ProductID == "" {
			return NewValidationError(string(e.Kind) + " event requires a product id")
		}
	case EventSync, EventUpdate:
		if e.ProductID == "" {
			return NewValidationError(string(e.Kind) + " event requires a product id")
		}
	}
	return nil
}
