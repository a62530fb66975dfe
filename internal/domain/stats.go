package domain

import "time"

// ActivityStats are the raw freshness numbers the health monitor reads.
type ActivityStats struct {
	LastEventAt *time.Time
	LastHour    int64
	Last24h     int64
}

// DailyFieldStats are the raw per-day field counts behind the quality
// scores: how many events carried each critical field and how many passed
// the per-kind validity checks.
type DailyFieldStats struct {
	Date          string
	Total         int64
	WithUser      int64
	WithSession   int64
	WithProduct   int64
	WithTimestamp int64
	ValidPrice    int64
	ValidKind     int64
}

// DelayStats describe the ingestion-delay distribution (event timestamp to
// warehouse arrival) used for the timeliness score.
type DelayStats struct {
	Total       int64
	WithinHour  int64
	AvgDelaySec float64
	P50DelaySec float64
	P95DelaySec float64
}
