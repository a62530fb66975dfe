package application

import (
	"context"
	"fmt"
	"time"

	"storepulse-shopify-core/internal/domain"
	"storepulse-shopify-core/internal/ports"

	"github.com/rs/zerolog"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
	defaultTopN       = 10
)

// AnalyticsService derives product and store reports from the event log.
// All reads run over half-open [from, to) windows so adjacent windows
// never double-count a boundary event.
type AnalyticsService struct {
	events    ports.EventLog
	snapshots ports.SnapshotRepository
	logger    zerolog.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(events ports.EventLog, snapshots ports.SnapshotRepository, logger zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		events:    events,
		snapshots: snapshots,
		logger:    logger,
	}
}

// ClampWindowDays normalizes a requested window size to [1, 365], with 30
// as the default for zero or negative input.
func ClampWindowDays(days int) int {
	if days <= 0 {
		return defaultWindowDays
	}
	if days > maxWindowDays {
		return maxWindowDays
	}
	return days
}

// Rate is a guarded percentage: numerator over denominator times 100, with
// a zero denominator yielding 0, never NaN.
func Rate(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}

// Trend is the period-over-period percentage change. A zero previous value
// reports +100 when the current value is positive and 0 when both are zero,
// so a metric appearing from nothing reads as full growth rather than a
// division blowup.
func Trend(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return ((current - previous) / previous) * 100
}

// ProductMetrics builds the per-product report: funnel counts, derived
// rates, and trends against the preceding window of equal length.
func (s *AnalyticsService) ProductMetrics(ctx context.Context, storeID, productID string, days int) (*domain.ProductMetrics, error) {
	days = ClampWindowDays(days)
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	prevFrom := from.AddDate(0, 0, -days)

	current, err := s.events.ProductFunnel(ctx, storeID, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate product funnel: %w", err)
	}
	previous, err := s.events.ProductFunnel(ctx, storeID, productID, prevFrom, from)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate previous product funnel: %w", err)
	}

	m := &domain.ProductMetrics{
		StoreID:    storeID,
		ProductID:  productID,
		WindowDays: days,
		From:       from,
		To:         to,

		Views:          current.Views,
		AddToCarts:     current.AddToCarts,
		Purchases:      current.Purchases,
		Revenue:        current.Revenue,
		UnitsSold:      current.UnitsSold,
		UniqueUsers:    current.UniqueUsers,
		UniqueSessions: current.UniqueSessions,

		ViewToCartRate:     Rate(current.AddToCarts, current.Views),
		CartToPurchaseRate: Rate(current.Purchases, current.AddToCarts),
		ConversionRate:     Rate(current.Purchases, current.Views),

		ViewsTrend:     Trend(float64(current.Views), float64(previous.Views)),
		PurchasesTrend: Trend(float64(current.Purchases), float64(previous.Purchases)),
		RevenueTrend:   Trend(current.Revenue, previous.Revenue),
	}
	if current.Purchases > 0 {
		m.AvgOrderValue = current.Revenue / float64(current.Purchases)
	}
	return m, nil
}

// StoreMetrics builds the store-wide report including the top-product
// ranking and the daily revenue series. A missing catalog snapshot for a
// ranked product never fails the report; the row keeps a placeholder title.
func (s *AnalyticsService) StoreMetrics(ctx context.Context, storeID string, days int) (*domain.StoreMetrics, error) {
	days = ClampWindowDays(days)
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	prevFrom := from.AddDate(0, 0, -days)

	current, err := s.events.StoreFunnel(ctx, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate store funnel: %w", err)
	}
	previous, err := s.events.StoreFunnel(ctx, storeID, prevFrom, from)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate previous store funnel: %w", err)
	}

	top, err := s.events.TopProductsByRevenue(ctx, storeID, from, to, defaultTopN)
	if err != nil {
		return nil, fmt.Errorf("failed to rank products by revenue: %w", err)
	}
	s.resolveTitles(ctx, storeID, top)

	daily, err := s.events.RevenueByDay(ctx, storeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket revenue by day: %w", err)
	}

	m := &domain.StoreMetrics{
		StoreID:    storeID,
		WindowDays: days,
		From:       from,
		To:         to,

		Views:          current.Views,
		AddToCarts:     current.AddToCarts,
		Purchases:      current.Purchases,
		Revenue:        current.Revenue,
		UnitsSold:      current.UnitsSold,
		UniqueUsers:    current.UniqueUsers,
		UniqueSessions: current.UniqueSessions,

		ConversionRate: Rate(current.Purchases, current.Views),

		ViewsTrend:     Trend(float64(current.Views), float64(previous.Views)),
		PurchasesTrend: Trend(float64(current.Purchases), float64(previous.Purchases)),
		RevenueTrend:   Trend(current.Revenue, previous.Revenue),

		TopProducts:  top,
		RevenueByDay: daily,
	}
	if current.Purchases > 0 {
		m.AvgOrderValue = current.Revenue / float64(current.Purchases)
	}
	return m, nil
}

// resolveTitles fills display titles from the catalog. Lookup failures are
// logged and leave the placeholder so an analytics read never depends on
// catalog availability.
func (s *AnalyticsService) resolveTitles(ctx context.Context, storeID string, rows []domain.RankedProduct) {
	for i := range rows {
		rows[i].Title = "Product " + rows[i].ProductID
		snap, err := s.snapshots.Get(ctx, storeID, rows[i].ProductID)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("storeId", storeID).
				Str("productId", rows[i].ProductID).
				Msg("Catalog title lookup failed, keeping placeholder")
			continue
		}
		if snap != nil && snap.Title != "" {
			rows[i].Title = snap.Title
		}
	}
}
