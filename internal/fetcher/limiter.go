package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter applies a token bucket per host so a burst of probes for one page
// cannot hammer a single origin. A nil limiter never blocks.
type HostLimiter struct {
	requests int
	window   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns nil when requests or window is not positive.
func NewHostLimiter(requests int, window time.Duration) *HostLimiter {
	if requests <= 0 || window <= 0 {
		return nil
	}
	return &HostLimiter{
		requests: requests,
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is permitted or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	return l.limiterFor(strings.ToLower(host)).Wait(ctx)
}

func (l *HostLimiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if ok {
		return limiter
	}
	interval := l.window / time.Duration(l.requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	limiter = rate.NewLimiter(rate.Every(interval), l.requests)
	l.limiters[host] = limiter
	return limiter
}
