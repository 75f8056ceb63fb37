// Package ratelimit provides an in-process token bucket per caller key.
// State is lost on restart and is not shared between replicas.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleExpiry is how long an unused bucket is kept before it is dropped. A
// dropped bucket comes back full, so it must exceed the refill time.
const idleExpiry = 30 * time.Minute

type Limiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	limit   rate.Limit
	burst   int
}

// NewPerMinute allows perMinute requests per key, with bursts of up to burst.
func NewPerMinute(perMinute, burst int) *Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: cache.New(idleExpiry, 2*idleExpiry),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
	}
}

// Allow consumes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.buckets.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.buckets.SetDefault(key, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.buckets.SetDefault(key, lim)
	return lim
}
