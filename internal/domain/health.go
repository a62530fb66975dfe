package domain

import "time"

// HealthStatus is the coarse pipeline classification.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// PipelineHealth describes event-log freshness and activity for one store
// (or the whole pipeline when StoreID is empty). Computed fresh on every
// request; never persisted.
type PipelineHealth struct {
	StoreID         string       `json:"store_id,omitempty"`
	Status          HealthStatus `json:"status"`
	LastEventAt     *time.Time   `json:"last_event_at,omitempty"`
	EventsLastHour  int64        `json:"events_last_hour"`
	EventsLast24h   int64        `json:"events_last_24h"`
	RecentRatio     float64      `json:"recent_ratio"`
	Recommendations []string     `json:"recommendations"`
	CheckedAt       time.Time    `json:"checked_at"`
}

// QualityIssueSeverity grades a data-quality finding.
type QualityIssueSeverity string

const (
	SeverityLow    QualityIssueSeverity = "low"
	SeverityMedium QualityIssueSeverity = "medium"
	SeverityHigh   QualityIssueSeverity = "high"
)

// QualityIssue is one specific finding inside a quality report. Quality
// problems are always reported findings, never errors.
type QualityIssue struct {
	Kind            string               `json:"kind"`
	Description     string               `json:"description"`
	Severity        QualityIssueSeverity `json:"severity"`
	AffectedRecords int64                `json:"affected_records"`
}

// DailyQualityBucket is the per-day score breakdown inside a quality report.
type DailyQualityBucket struct {
	Date         string  `json:"date"`
	EventCount   int64   `json:"event_count"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
}

// QualityReport scores the event log on the four standard data-quality
// dimensions, each in [0,100].
type QualityReport struct {
	StoreID      string               `json:"store_id,omitempty"`
	Days         int                  `json:"days"`
	Completeness float64              `json:"completeness"`
	Accuracy     float64              `json:"accuracy"`
	Consistency  float64              `json:"consistency"`
	Timeliness   float64              `json:"timeliness"`
	Overall      float64              `json:"overall"`
	Daily        []DailyQualityBucket `json:"daily"`
	Issues       []QualityIssue       `json:"issues"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// PerformanceSnapshot summarizes pipeline throughput and latency for the
// composed report.
type PerformanceSnapshot struct {
	IngestLatencyP50Ms float64            `json:"ingest_latency_p50_ms"`
	IngestLatencyP95Ms float64            `json:"ingest_latency_p95_ms"`
	EventsPerHour      float64            `json:"events_per_hour"`
	StageErrorRates    map[string]float64 `json:"stage_error_rates"`
}

// HealthReport composes pipeline health, data quality, and a performance
// snapshot into one view with deduplicated recommendations.
type HealthReport struct {
	StoreID         string              `json:"store_id,omitempty"`
	Pipeline        PipelineHealth      `json:"pipeline"`
	Quality         QualityReport       `json:"quality"`
	Performance     PerformanceSnapshot `json:"performance"`
	Recommendations []string            `json:"recommendations"`
	GeneratedAt     time.Time           `json:"generated_at"`
}
