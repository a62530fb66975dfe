package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess("store-1")
	c.RecordSyncSuccess("store-2")
	c.RecordSyncFailure("store-3", "products")
	c.RecordEventsAppended(5)
	c.RecordSnapshotsUpserted(3)
	c.RecordWebhookReceived("orders/create")
	c.RecordWebhookReceived("orders/create")
	c.RecordSyncDuration(250 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.syncSuccess))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.syncFail.WithLabelValues("products")))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.eventsAppended))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.snapshotsUpserted))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.webhooksReceived.WithLabelValues("orders/create")))
}

func TestCollector_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSyncSuccess("store-1")
	c.RecordSyncFailure("store-1", "orders")
	c.RecordSyncDuration(time.Second)
	c.RecordEventsAppended(1)
	c.RecordSnapshotsUpserted(1)
	c.RecordWebhookReceived("products/update")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"storepulse_sync_success_total",
		"storepulse_sync_fail_total",
		"storepulse_sync_duration_seconds",
		"storepulse_events_appended_total",
		"storepulse_snapshots_upserted_total",
		"storepulse_webhooks_received_total",
	} {
		assert.True(t, names[want], "metric %s not registered", want)
	}
}

func TestErrorRates(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordSyncSuccess("store-1")
	c.RecordSyncSuccess("store-2")
	c.RecordSyncSuccess("store-3")
	c.RecordSyncFailure("store-4", "products")

	rates := c.ErrorRates()
	assert.InDelta(t, 0.25, rates["sync"], 1e-9)
	assert.InDelta(t, 1.0, rates["products"], 1e-9)
}

func TestErrorRates_EmptyBeforeAnyRecord(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	assert.Empty(t, c.ErrorRates())
}
