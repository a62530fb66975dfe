package shopify

import (
	"context"
	"errors"
	"sync"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"golang.org/x/time/rate"
)

// shopifyRESTBudget is the standard plan's REST bucket: 2 req/s, burst 40.
const (
	shopifyRESTRate  = 2
	shopifyRESTBurst = 40
)

// RateLimiter throttles outbound API calls per shop domain so one store's
// full sync cannot consume another store's bucket.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perShop  rate.Limit
	burst    int
}

// NewRateLimiter creates a per-shop rate limiter with the platform's
// standard REST budget.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		perShop:  rate.Limit(shopifyRESTRate),
		burst:    shopifyRESTBurst,
	}
}

// Wait blocks until the shop's bucket allows one more call or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context, shopDomain string) error {
	r.mu.Lock()
	limiter, ok := r.limiters[shopDomain]
	if !ok {
		limiter = rate.NewLimiter(r.perShop, r.burst)
		r.limiters[shopDomain] = limiter
	}
	r.mu.Unlock()

	return limiter.Wait(ctx)
}

// RetryConfig bounds the retry loop around throttled API calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the retry policy used in production.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// withRetry retries the call on 429 responses with exponential backoff,
// honoring the Retry-After hint the SDK surfaces.
func (c *client) withRetry(ctx context.Context, shopDomain, op string, call func() error) error {
	attempts := c.retryConfig.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := c.retryConfig.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}

		var rateErr goshopify.RateLimitError
		if !errors.As(lastErr, &rateErr) {
			return lastErr
		}

		wait := delay
		if rateErr.RetryAfter > 0 {
			wait = time.Duration(rateErr.RetryAfter) * time.Second
		}
		if c.retryConfig.MaxDelay > 0 && wait > c.retryConfig.MaxDelay {
			wait = c.retryConfig.MaxDelay
		}

		c.logger.Warn().
			Str("shop", shopDomain).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("API throttled, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
	return lastErr
}
