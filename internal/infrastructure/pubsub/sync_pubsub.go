package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SyncPhase tags a point in one store sync's lifecycle.
type SyncPhase string

const (
	SyncStarted   SyncPhase = "started"
	SyncCompleted SyncPhase = "completed"
	SyncFailed    SyncPhase = "failed"
)

// SyncNotice is one lifecycle notification published during a store sync.
type SyncNotice struct {
	StoreID string    `json:"store_id"`
	Phase   SyncPhase `json:"phase"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// SyncNoticeFilter filters sync notifications
type SyncNoticeFilter struct {
	StoreID string
	Phases  []SyncPhase
}

// SyncNoticeChannel represents a subscription channel
type SyncNoticeChannel struct {
	ID      string
	Filter  *SyncNoticeFilter
	Notices chan *SyncNotice
	Done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

// SyncPubSub fans sync lifecycle notifications out to in-process
// subscribers such as SSE streams and the scheduler's bookkeeping.
type SyncPubSub struct {
	mu       sync.RWMutex
	channels map[string]*SyncNoticeChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

// NewSyncPubSub creates a new sync pub/sub system
func NewSyncPubSub(logger zerolog.Logger) *SyncPubSub {
	return &SyncPubSub{
		channels: make(map[string]*SyncNoticeChannel),
		logger:   logger,
	}
}

// Subscribe creates a new subscription channel
func (ps *SyncPubSub) Subscribe(ctx context.Context, filter *SyncNoticeFilter) *SyncNoticeChannel {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("channel-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &SyncNoticeChannel{
		ID:      id,
		Filter:  filter,
		Notices: make(chan *SyncNotice, 10),
		Done:    make(chan struct{}),
		ctx:     subCtx,
		cancel:  cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Info().
		Str("channelId", id).
		Interface("filter", filter).
		Msg("Sync subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a subscription channel
func (ps *SyncPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Notices)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Info().
		Str("channelId", channelID).
		Msg("Sync subscription removed")
}

// Publish broadcasts a notification to all matching subscribers. Slow
// subscribers with a full buffer are skipped, never blocked on.
func (ps *SyncPubSub) Publish(notice *SyncNotice) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	publishedCount := 0
	for _, channel := range ps.channels {
		if !matchesFilter(notice, channel.Filter) {
			continue
		}
		select {
		case channel.Notices <- notice:
			publishedCount++
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().
				Str("channelId", channel.ID).
				Msg("Channel buffer full, dropping notification")
		}
	}

	if publishedCount > 0 {
		ps.logger.Debug().
			Str("storeId", notice.StoreID).
			Str("phase", string(notice.Phase)).
			Int("subscribers", publishedCount).
			Msg("Published sync notification")
	}
}

func matchesFilter(notice *SyncNotice, filter *SyncNoticeFilter) bool {
	if filter == nil {
		return true
	}

	if filter.StoreID != "" && notice.StoreID != filter.StoreID {
		return false
	}

	if len(filter.Phases) > 0 {
		match := false
		for _, phase := range filter.Phases {
			if notice.Phase == phase {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	return true
}

// NotifySync adapts the sync orchestrator's notification hook onto Publish.
func (ps *SyncPubSub) NotifySync(storeID string, phase string, err error) {
	notice := &SyncNotice{
		StoreID: storeID,
		Phase:   SyncPhase(phase),
		At:      time.Now(),
	}
	if err != nil {
		notice.Error = err.Error()
	}
	ps.Publish(notice)
}

// GetStats returns pub/sub statistics
func (ps *SyncPubSub) GetStats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return map[string]interface{}{
		"active_subscriptions": len(ps.channels),
	}
}
