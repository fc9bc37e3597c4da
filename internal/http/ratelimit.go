package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

// rateLimiter gives every client a token bucket holding perMinute tokens
// that refills continuously at perMinute per minute.
type rateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	refill   float64 // tokens per second
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	rl := &rateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(perMinute),
		refill:   float64(perMinute) / 60,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *rateLimiter) sweepLoop() {
	t := time.NewTicker(limiterSweepEvery)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.sweep()
		}
	}
}

// sweep forgets clients idle for longer than limiterIdleAfter; their
// buckets would be full again anyway.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-limiterIdleAfter)
	for ip, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow takes one token from clientIP's bucket, reporting false when it is empty.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[clientIP]
	if !ok {
		b = &bucket{tokens: rl.capacity, seen: now}
		rl.buckets[clientIP] = b
	} else {
		b.tokens = min(rl.capacity, b.tokens+now.Sub(b.seen).Seconds()*rl.refill)
		b.seen = now
	}

	if b.tokens < 1 {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	b.tokens--
	return true
}
