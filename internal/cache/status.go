package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"breadcrumbs/internal/metrics"
	"breadcrumbs/pkg/types"
)

// StatusCache memoises probe results per URL. Backend failures are logged and read
// as misses.
type StatusCache struct {
	store      Store
	ttl        time.Duration
	failureTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// StatusOption customises a StatusCache.
type StatusOption func(*StatusCache)

// WithFailureTTL sets the lifetime of status-0 results. Zero means use the regular TTL.
func WithFailureTTL(d time.Duration) StatusOption {
	return func(c *StatusCache) { c.failureTTL = d }
}

func WithStatusLogger(logger *slog.Logger) StatusOption {
	return func(c *StatusCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithStatusMetrics(m *metrics.Metrics) StatusOption {
	return func(c *StatusCache) { c.metrics = m }
}

// NewStatusCache wraps store with status-result encoding.
func NewStatusCache(store Store, ttl time.Duration, opts ...StatusOption) *StatusCache {
	c := &StatusCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for url, if any.
func (c *StatusCache) Get(ctx context.Context, url string) (types.ProbeResult, bool) {
	raw, ok, err := c.store.Get(ctx, StatusKey(url))
	if err != nil {
		c.logger.Warn("status cache read failed", "url", url, "error", err)
		c.metrics.CacheError("status", "get")
		c.metrics.CacheLookup("status", false)
		return types.ProbeResult{}, false
	}
	if !ok {
		c.metrics.CacheLookup("status", false)
		return types.ProbeResult{}, false
	}
	var result types.ProbeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("status cache entry corrupt", "url", url, "error", err)
		c.metrics.CacheLookup("status", false)
		return types.ProbeResult{}, false
	}
	c.metrics.CacheLookup("status", true)
	return result, true
}

// Set stores result for url. Every outcome is cached, including failures.
func (c *StatusCache) Set(ctx context.Context, url string, result types.ProbeResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("encode status entry", "url", url, "error", err)
		return
	}
	ttl := c.ttl
	if result.Status == 0 && c.failureTTL > 0 {
		ttl = c.failureTTL
	}
	if err := c.store.Set(ctx, StatusKey(url), raw, ttl); err != nil {
		c.logger.Warn("status cache write failed", "url", url, "error", err)
		c.metrics.CacheError("status", "set")
	}
}
