package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"storepulse-shopify-core/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamRecorder is a ResponseWriter the handler goroutine can write to
// while the test reads; httptest.ResponseRecorder is not safe for that.
type streamRecorder struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	header http.Header
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) WriteHeader(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func streamRequest(ctx context.Context, storeID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/stores/"+storeID+"/sync/stream", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("storeId", storeID)
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSyncStream_DeliversStoreNotices(t *testing.T) {
	ps := pubsub.NewSyncPubSub(zerolog.Nop())
	server := NewServer(nil, nil, nil, nil, ps, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.handleSyncStream(rec, streamRequest(ctx, "store-1"))
	}()

	waitFor(t, func() bool {
		return ps.GetStats()["active_subscriptions"] == 1
	})

	ps.NotifySync("store-1", string(pubsub.SyncStarted), nil)
	ps.NotifySync("store-2", string(pubsub.SyncCompleted), nil)
	ps.NotifySync("store-1", string(pubsub.SyncCompleted), nil)

	waitFor(t, func() bool {
		return strings.Contains(rec.body(), `"completed"`)
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after disconnect")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.body()
	assert.Contains(t, body, "event: sync\n")
	assert.Contains(t, body, `"store_id":"store-1"`)
	assert.Contains(t, body, `"started"`)
	// The subscription is store-scoped; another store's sync stays out.
	assert.NotContains(t, body, "store-2")

	waitFor(t, func() bool {
		return ps.GetStats()["active_subscriptions"] == 0
	})
}

func TestSyncStream_RequiresFlusher(t *testing.T) {
	ps := pubsub.NewSyncPubSub(zerolog.Nop())
	server := NewServer(nil, nil, nil, nil, ps, zerolog.Nop())

	// A bare ResponseWriter without Flush cannot stream.
	rec := struct{ http.ResponseWriter }{httptest.NewRecorder()}
	server.handleSyncStream(rec, streamRequest(context.Background(), "store-1"))

	require.Equal(t, http.StatusInternalServerError, rec.ResponseWriter.(*httptest.ResponseRecorder).Code)
	assert.Equal(t, 0, ps.GetStats()["active_subscriptions"])
}
