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
	// freshnessWarning and freshnessCritical bound the silence-duration
	// classification: silence past warning degrades, past critical alarms.
	freshnessWarning  = 30 * time.Minute
	freshnessCritical = 2 * time.Hour

	// lowRecentRatio flags a store whose last hour carries under 10% of
	// the trailing 24h volume.
	lowRecentRatio = 0.10

	defaultQualityDays = 7
)

// SyncErrorRates reports per-stage failure ratios, fed by the metrics
// collector into the composed health report.
type SyncErrorRates interface {
	ErrorRates() map[string]float64
}

type nopErrorRates struct{}

func (nopErrorRates) ErrorRates() map[string]float64 { return map[string]float64{} }

// HealthService classifies pipeline freshness, scores data quality, and
// composes the full operational report. Every check reads the warehouse
// fresh; nothing here is cached or persisted.
type HealthService struct {
	events     ports.EventLog
	errorRates SyncErrorRates
	logger     zerolog.Logger
}

// NewHealthService creates a new health monitor.
func NewHealthService(events ports.EventLog, errorRates SyncErrorRates, logger zerolog.Logger) *HealthService {
	if errorRates == nil {
		errorRates = nopErrorRates{}
	}
	return &HealthService{
		events:     events,
		errorRates: errorRates,
		logger:     logger,
	}
}

// PipelineHealth classifies freshness for one store, or for the whole
// pipeline when storeID is empty. A warehouse read failure degrades to a
// critical classification with a recommendation instead of an error, so
// the health endpoint itself stays available when the warehouse is down.
func (s *HealthService) PipelineHealth(ctx context.Context, storeID string) *domain.PipelineHealth {
	now := time.Now()
	health := &domain.PipelineHealth{
		StoreID:         storeID,
		Recommendations: []string{},
		CheckedAt:       now,
	}

	activity, err := s.events.Activity(ctx, storeID)
	if err != nil {
		s.logger.Error().Err(err).Str("storeId", storeID).Msg("Activity read failed during health check")
		health.Status = domain.HealthCritical
		health.Recommendations = append(health.Recommendations,
			"Event warehouse is unreachable; check its connectivity and disk")
		return health
	}

	health.LastEventAt = activity.LastEventAt
	health.EventsLastHour = activity.LastHour
	health.EventsLast24h = activity.Last24h
	if activity.Last24h > 0 {
		// Share of the 24h volume that arrived in the last hour.
		health.RecentRatio = float64(activity.LastHour) / float64(activity.Last24h)
	}

	health.Status, health.Recommendations = classifyFreshness(now, activity, health.RecentRatio)
	return health
}

func classifyFreshness(now time.Time, activity *domain.ActivityStats, recentRatio float64) (domain.HealthStatus, []string) {
	recs := []string{}

	if activity.LastEventAt == nil {
		return domain.HealthCritical, append(recs,
			"No events have ever been recorded; verify the storefront connection and run a sync")
	}

	silence := now.Sub(*activity.LastEventAt)
	switch {
	case silence > freshnessCritical:
		recs = append(recs, fmt.Sprintf(
			"No events for %s; verify webhook subscriptions and credential validity", silence.Round(time.Minute)))
		return domain.HealthCritical, recs
	case silence > freshnessWarning:
		recs = append(recs, fmt.Sprintf(
			"Event flow has slowed (last event %s ago); check upstream traffic", silence.Round(time.Minute)))
		return domain.HealthWarning, recs
	}

	if activity.Last24h > 0 && recentRatio < lowRecentRatio {
		recs = append(recs,
			"Under 10% of the trailing 24h event volume arrived in the last hour; check for a stalled ingest stage")
		return domain.HealthWarning, recs
	}

	return domain.HealthHealthy, recs
}

// DataQuality scores the event log over the trailing days window on the
// four standard dimensions. Zero events in the window and warehouse read
// failures both produce a degraded report (all scores zero, one
// high-severity issue), never an error, so the quality endpoint stays
// available when the warehouse is down.
func (s *HealthService) DataQuality(ctx context.Context, storeID string, days int) (*domain.QualityReport, error) {
	if days <= 0 {
		days = defaultQualityDays
	}

	report := &domain.QualityReport{
		StoreID:     storeID,
		Days:        days,
		Daily:       []domain.DailyQualityBucket{},
		Issues:      []domain.QualityIssue{},
		GeneratedAt: time.Now(),
	}

	daily, err := s.events.DailyFieldStats(ctx, storeID, days)
	if err != nil {
		s.logger.Error().Err(err).Str("storeId", storeID).Msg("Field stats read failed during quality check")
		report.Issues = append(report.Issues, domain.QualityIssue{
			Kind:        "missing",
			Description: "Event warehouse could not be queried; quality scores are unavailable",
			Severity:    domain.SeverityHigh,
		})
		return report, nil
	}

	var total, withUser, withSession, withProduct, withTimestamp, validPrice, validKind int64
	for _, day := range daily {
		total += day.Total
		withUser += day.WithUser
		withSession += day.WithSession
		withProduct += day.WithProduct
		withTimestamp += day.WithTimestamp
		validPrice += day.ValidPrice
		validKind += day.ValidKind

		bucket := domain.DailyQualityBucket{
			Date:       day.Date,
			EventCount: day.Total,
		}
		if day.Total > 0 {
			bucket.Completeness = percent(day.WithUser+day.WithSession+day.WithProduct+day.WithTimestamp, 4*day.Total)
			bucket.Accuracy = percent(day.ValidPrice+day.ValidKind, 2*day.Total)
		}
		report.Daily = append(report.Daily, bucket)
	}

	if total == 0 {
		report.Issues = append(report.Issues, domain.QualityIssue{
			Kind:        "no_data",
			Description: fmt.Sprintf("No events recorded in the last %d days", days),
			Severity:    domain.SeverityHigh,
		})
		return report, nil
	}

	report.Completeness = percent(withUser+withSession+withProduct+withTimestamp, 4*total)
	report.Accuracy = percent(validPrice+validKind, 2*total)
	report.Consistency = consistencyScore(daily)

	delay, err := s.events.IngestionDelay(ctx, storeID, days)
	if err != nil {
		s.logger.Error().Err(err).Str("storeId", storeID).Msg("Delay stats read failed during quality check")
		delay = &domain.DelayStats{}
	}
	if delay.Total > 0 {
		report.Timeliness = percent(delay.WithinHour, delay.Total)
	}

	report.Overall = (report.Completeness + report.Accuracy + report.Consistency + report.Timeliness) / 4

	report.Issues = append(report.Issues, qualityIssues(total, withUser, withProduct, validPrice, validKind, delay)...)
	return report, nil
}

// consistencyScore measures day-to-day volume stability: the mean absolute
// deviation of daily counts relative to their mean, inverted into [0,100].
func consistencyScore(daily []domain.DailyFieldStats) float64 {
	active := []int64{}
	var sum int64
	for _, d := range daily {
		if d.Total > 0 {
			active = append(active, d.Total)
			sum += d.Total
		}
	}
	if len(active) < 2 {
		return 100
	}
	mean := float64(sum) / float64(len(active))
	var dev float64
	for _, n := range active {
		diff := float64(n) - mean
		if diff < 0 {
			diff = -diff
		}
		dev += diff
	}
	dev /= float64(len(active))

	score := 100 * (1 - dev/mean)
	if score < 0 {
		return 0
	}
	return score
}

func qualityIssues(total, withUser, withProduct, validPrice, validKind int64, delay *domain.DelayStats) []domain.QualityIssue {
	issues := []domain.QualityIssue{}

	if missing := total - withUser; missing > 0 {
		issues = append(issues, domain.QualityIssue{
			Kind:            "missing_user",
			Description:     "Events missing a user identifier; per-user funnels undercount",
			Severity:        severityForShare(missing, total),
			AffectedRecords: missing,
		})
	}
	if missing := total - withProduct; missing > 0 {
		issues = append(issues, domain.QualityIssue{
			Kind:            "missing_product",
			Description:     "Events missing a product reference; product metrics undercount",
			Severity:        severityForShare(missing, total),
			AffectedRecords: missing,
		})
	}
	if bad := total - validPrice; bad > 0 {
		issues = append(issues, domain.QualityIssue{
			Kind:            "invalid_price",
			Description:     "Purchase events with non-positive or absent prices; revenue is understated",
			Severity:        severityForShare(bad, total),
			AffectedRecords: bad,
		})
	}
	if bad := total - validKind; bad > 0 {
		issues = append(issues, domain.QualityIssue{
			Kind:            "unknown_kind",
			Description:     "Events with unrecognized kinds; they are excluded from funnels",
			Severity:        severityForShare(bad, total),
			AffectedRecords: bad,
		})
	}
	if delay.Total > 0 {
		if late := delay.Total - delay.WithinHour; late > 0 {
			issues = append(issues, domain.QualityIssue{
				Kind:            "late_arrival",
				Description:     "Events arriving more than an hour after they occurred; dashboards lag",
				Severity:        severityForShare(late, delay.Total),
				AffectedRecords: late,
			})
		}
	}
	return issues
}

func severityForShare(affected, total int64) domain.QualityIssueSeverity {
	share := float64(affected) / float64(total)
	switch {
	case share >= 0.25:
		return domain.SeverityHigh
	case share >= 0.05:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func percent(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return 100 * float64(numerator) / float64(denominator)
}

// Report composes pipeline health, data quality, and a performance
// snapshot, deduplicating recommendations across the sections.
func (s *HealthService) Report(ctx context.Context, storeID string, days int) (*domain.HealthReport, error) {
	pipeline := s.PipelineHealth(ctx, storeID)

	quality, err := s.DataQuality(ctx, storeID, days)
	if err != nil {
		return nil, err
	}

	perf := &domain.PerformanceSnapshot{
		StageErrorRates: s.errorRates.ErrorRates(),
	}
	if delay, err := s.events.IngestionDelay(ctx, storeID, quality.Days); err == nil && delay.Total > 0 {
		perf.IngestLatencyP50Ms = delay.P50DelaySec * 1000
		perf.IngestLatencyP95Ms = delay.P95DelaySec * 1000
	}
	perf.EventsPerHour = float64(pipeline.EventsLast24h) / 24.0

	recs := append([]string{}, pipeline.Recommendations...)
	for _, issue := range quality.Issues {
		if issue.Severity == domain.SeverityHigh || issue.Severity == domain.SeverityMedium {
			recs = append(recs, "Data quality: "+issue.Description)
		}
	}
	recs = dedupe(recs)

	return &domain.HealthReport{
		StoreID:         storeID,
		Pipeline:        *pipeline,
		Quality:         *quality,
		Performance:     *perf,
		Recommendations: recs,
		GeneratedAt:     time.Now(),
	}, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := []string{}
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
