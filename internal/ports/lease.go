package ports

import (
	"context"
	"time"
)

// SyncLease grants at most one in-flight sync per store. Acquire returns
// (token, true) when the lease was taken and ("", false) when another sync
// holds it. Release is a no-op for a token that no longer owns the lease,
// so an expired TTL cannot release somebody else's sync.
type SyncLease interface {
	Acquire(ctx context.Context, storeID string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, storeID string, token string) error
}
