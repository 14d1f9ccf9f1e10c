// Package ratelimit implements Twitch Helix rate limiting based on response headers.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Helix defaults: 800 points per minute per client.
const (
	defaultLimit  = 800
	defaultWindow = time.Minute
)

// Bucket represents a rate limit bucket for one Helix client or route.
type Bucket struct {
	Remaining int           // Requests remaining in current window
	Limit     int           // Total requests allowed per window
	ResetAt   time.Time     // When the rate limit resets
	limiter   *rate.Limiter // Token bucket rate limiter
	mu        sync.Mutex
}

// RateLimiter manages rate limits per bucket key.
type RateLimiter struct {
	buckets map[string]*Bucket // key -> bucket
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		logger:  logger,
	}
}

// getBucket retrieves or creates a bucket for a key
func (rl *RateLimiter) getBucket(key string) *Bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	// Refined from response headers after the first call.
	bucket := &Bucket{
		Remaining: defaultLimit,
		Limit:     defaultLimit,
		ResetAt:   time.Now().Add(defaultWindow),
		limiter:   rate.NewLimiter(rate.Every(defaultWindow/defaultLimit), defaultLimit),
	}

	rl.buckets[key] = bucket
	return bucket
}

// Wait blocks until a request on key may be sent, or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	bucket := rl.getBucket(key)

	bucket.mu.Lock()
	var waitDuration time.Duration
	if bucket.Remaining <= 0 && time.Now().Before(bucket.ResetAt) {
		waitDuration = time.Until(bucket.ResetAt)
	}
	limiter := bucket.limiter
	bucket.mu.Unlock()

	if waitDuration > 0 {
		rl.logger.Warn("rate limit exhausted, waiting",
			zap.String("bucket", key),
			zap.Duration("wait_duration", waitDuration),
		)
		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// UpdateFromHeaders updates a bucket from Helix Ratelimit-* response headers.
func (rl *RateLimiter) UpdateFromHeaders(key string, headers http.Header) {
	bucket := rl.getBucket(key)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if val, err := strconv.Atoi(headers.Get("Ratelimit-Remaining")); err == nil {
		bucket.Remaining = val
	}

	if val, err := strconv.Atoi(headers.Get("Ratelimit-Limit")); err == nil {
		bucket.Limit = val
	}

	// Ratelimit-Reset is a unix timestamp in seconds.
	if val, err := strconv.ParseInt(headers.Get("Ratelimit-Reset"), 10, 64); err == nil {
		bucket.ResetAt = time.Unix(val, 0)
	}

	if bucket.Limit > 0 {
		resetDuration := time.Until(bucket.ResetAt)
		if resetDuration > 0 {
			tokensPerSecond := float64(bucket.Limit) / resetDuration.Seconds()
			bucket.limiter = rate.NewLimiter(rate.Limit(tokensPerSecond), bucket.Limit)
		}
	}

	rl.logger.Debug("updated rate limit from headers",
		zap.String("bucket", key),
		zap.Int("remaining", bucket.Remaining),
		zap.Int("limit", bucket.Limit),
		zap.Time("reset_at", bucket.ResetAt),
	)
}

// HandleRateLimitResponse records a 429 answer and returns an error describing the delay.
func (rl *RateLimiter) HandleRateLimitResponse(key string, headers http.Header) error {
	bucket := rl.getBucket(key)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	var retryAfter time.Duration
	if seconds, err := strconv.Atoi(headers.Get("Retry-After")); err == nil {
		retryAfter = time.Duration(seconds) * time.Second
	}

	if retryAfter == 0 {
		if val, err := strconv.ParseInt(headers.Get("Ratelimit-Reset"), 10, 64); err == nil {
			retryAfter = time.Until(time.Unix(val, 0))
		}
	}

	// Default to 1 second if no timing information
	if retryAfter <= 0 {
		retryAfter = 1 * time.Second
	}

	bucket.Remaining = 0
	bucket.ResetAt = time.Now().Add(retryAfter)

	rl.logger.Warn("rate limited by Twitch API",
		zap.String("bucket", key),
		zap.Duration("retry_after", retryAfter),
	)

	return fmt.Errorf("rate limited, retry after %v", retryAfter)
}

// GetStatus returns the current rate limit status for a key
func (rl *RateLimiter) GetStatus(key string) (remaining int, limit int, resetAt time.Time) {
	bucket := rl.getBucket(key)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Remaining, bucket.Limit, bucket.ResetAt
}
