// Package metrics collects and exposes Prometheus metrics for the sync
// pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline observations into a Prometheus registry and
// keeps running per-stage tallies for the health report's error rates.
type Collector struct {
	syncSuccess       prometheus.Counter
	syncFail          *prometheus.CounterVec
	syncDuration      prometheus.Histogram
	eventsAppended    prometheus.Counter
	snapshotsUpserted prometheus.Counter
	webhooksReceived  *prometheus.CounterVec

	mu       sync.Mutex
	attempts map[string]int64
	failures map[string]int64
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storepulse_sync_success_total",
			Help: "Total successful store syncs",
		}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storepulse_sync_fail_total",
			Help: "Total failed store syncs by stage",
		}, []string{"reason"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storepulse_sync_duration_seconds",
			Help:    "Store sync duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		eventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storepulse_events_appended_total",
			Help: "Total events appended to the warehouse",
		}),
		snapshotsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storepulse_snapshots_upserted_total",
			Help: "Total product snapshots upserted",
		}),
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storepulse_webhooks_received_total",
			Help: "Total webhook deliveries by topic",
		}, []string{"topic"}),
		attempts: make(map[string]int64),
		failures: make(map[string]int64),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncDuration,
		c.eventsAppended,
		c.snapshotsUpserted,
		c.webhooksReceived,
	)

	return c
}

// RecordSyncSuccess records one completed store sync.
func (c *Collector) RecordSyncSuccess(storeID string) {
	c.syncSuccess.Inc()
	c.mu.Lock()
	c.attempts["sync"]++
	c.mu.Unlock()
}

// RecordSyncFailure records one failed store sync with its stage.
func (c *Collector) RecordSyncFailure(storeID string, reason string) {
	c.syncFail.WithLabelValues(reason).Inc()
	c.mu.Lock()
	c.attempts["sync"]++
	c.failures["sync"]++
	c.attempts[reason]++
	c.failures[reason]++
	c.mu.Unlock()
}

// RecordSyncDuration records how long one store sync took.
func (c *Collector) RecordSyncDuration(d time.Duration) {
	c.syncDuration.Observe(d.Seconds())
}

// RecordEventsAppended records events newly stored in the warehouse.
func (c *Collector) RecordEventsAppended(n int) {
	c.eventsAppended.Add(float64(n))
}

// RecordSnapshotsUpserted records catalog snapshots written.
func (c *Collector) RecordSnapshotsUpserted(n int) {
	c.snapshotsUpserted.Add(float64(n))
}

// RecordWebhookReceived records one inbound webhook delivery.
func (c *Collector) RecordWebhookReceived(topic string) {
	c.webhooksReceived.WithLabelValues(topic).Inc()
}

// ErrorRates reports the failure ratio per recorded stage since startup.
func (c *Collector) ErrorRates() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	rates := make(map[string]float64, len(c.attempts))
	for stage, attempts := range c.attempts {
		if attempts == 0 {
			continue
		}
		rates[stage] = float64(c.failures[stage]) / float64(attempts)
	}
	return rates
}

// SetupMetricsRoute returns the HTTP handler serving the registry.
func SetupMetricsRoute(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
