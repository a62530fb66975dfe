package lease

import (
	"context"
	"fmt"
	"time"

	"storepulse-shopify-core/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease key only if the caller still owns it, so
// a sync that outlived its TTL cannot release a successor's lease.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLease implements SyncLease with a per-store key under SET NX and a
// TTL, so a crashed holder frees the store automatically.
type RedisLease struct {
	client *redis.Client
	prefix string
}

// NewRedisLease creates a Redis-backed sync lease.
func NewRedisLease(client *redis.Client) ports.SyncLease {
	return &RedisLease{
		client: client,
		prefix: "sync:lease:",
	}
}

// Acquire takes the store's lease if free, returning the owner token.
func (l *RedisLease) Acquire(ctx context.Context, storeID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+storeID, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lease if token still owns it; otherwise a no-op.
func (l *RedisLease) Release(ctx context.Context, storeID string, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + storeID}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
