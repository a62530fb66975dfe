package ports

import (
	"context"
	"time"

	"storepulse-shopify-core/internal/domain"
)

// EventLog is the append-only analytics warehouse. Append is idempotent on
// event id; everything else is a read over [from, to) half-open windows.
type EventLog interface {
	// Append inserts the event and reports whether it was newly stored.
	// A duplicate event id is not an error; it returns (false, nil).
	Append(ctx context.Context, event *domain.Event) (bool, error)

	// ProductFunnel aggregates funnel counts for one product.
	ProductFunnel(ctx context.Context, storeID, productID string, from, to time.Time) (*domain.FunnelCounts, error)

	// StoreFunnel aggregates funnel counts across all products of a store.
	StoreFunnel(ctx context.Context, storeID string, from, to time.Time) (*domain.FunnelCounts, error)

	// TopProductsByRevenue ranks products by purchase revenue descending.
	TopProductsByRevenue(ctx context.Context, storeID string, from, to time.Time, limit int) ([]domain.RankedProduct, error)

	// RevenueByDay buckets purchase revenue by calendar day ascending.
	RevenueByDay(ctx context.Context, storeID string, from, to time.Time) ([]domain.DailyRevenue, error)

	// Activity returns freshness statistics; storeID may be empty for the
	// whole pipeline.
	Activity(ctx context.Context, storeID string) (*domain.ActivityStats, error)

	// DailyFieldStats returns per-day field presence/validity counts for
	// the trailing days window.
	DailyFieldStats(ctx context.Context, storeID string, days int) ([]domain.DailyFieldStats, error)

	// IngestionDelay returns the arrival-delay distribution for the
	// trailing days window.
	IngestionDelay(ctx context.Context, storeID string, days int) (*domain.DelayStats, error)
}
