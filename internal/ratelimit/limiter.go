// internal/ratelimit/limiter.go
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config sets the default token bucket applied to every client
type Config struct {
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `json:"burst" yaml:"burst"`
}

// DefaultConfig is what you get when nothing is configured
var DefaultConfig = Config{RatePerSecond: 10, Burst: 20}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key. Keys are
// whatever the caller uses to identify a client (token subject,
// remote address).
type ClientLimiter struct {
	mu        sync.Mutex
	config    Config
	overrides map[string]Config
	buckets   map[string]*clientBucket
}

// NewClientLimiter creates a limiter with the given default config
func NewClientLimiter(config Config) *ClientLimiter {
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = DefaultConfig.RatePerSecond
	}
	if config.Burst <= 0 {
		config.Burst = DefaultConfig.Burst
	}
	return &ClientLimiter{
		config:    config,
		overrides: make(map[string]Config),
		buckets:   make(map[string]*clientBucket),
	}
}

// SetClientLimit overrides the default bucket for one client. The
// client's existing bucket is replaced on its next request.
func (cl *ClientLimiter) SetClientLimit(key string, config Config) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.overrides[key] = config
	delete(cl.buckets, key)
}

// Allow consumes one token for the client, creating its bucket on
// first sight
func (cl *ClientLimiter) Allow(key string) bool {
	cl.mu.Lock()
	bucket, exists := cl.buckets[key]
	if !exists {
		cfg := cl.config
		if override, ok := cl.overrides[key]; ok {
			cfg = override
		}
		bucket = &clientBucket{
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		}
		cl.buckets[key] = bucket
	}
	bucket.lastSeen = time.Now()
	cl.mu.Unlock()

	return bucket.limiter.Allow()
}

// Info reports the client's current bucket for response headers
func (cl *ClientLimiter) Info(key string) Info {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cfg := cl.config
	if override, ok := cl.overrides[key]; ok {
		cfg = override
	}

	remaining := cfg.Burst
	if bucket, exists := cl.buckets[key]; exists {
		remaining = int(bucket.limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
	}
	return Info{
		Limit:     cfg.Burst,
		Remaining: remaining,
		Reset:     time.Now().Add(time.Second).Unix(),
	}
}

// Sweep drops buckets idle longer than maxIdle and returns how many
// were removed. Call it periodically to keep memory bounded.
func (cl *ClientLimiter) Sweep(maxIdle time.Duration) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, bucket := range cl.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(cl.buckets, key)
			removed++
		}
	}
	return removed
}

// Info is what gets surfaced in rate limit response headers
type Info struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}
