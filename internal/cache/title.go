package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"breadcrumbs/internal/metrics"
)

// TitleCache memoises non-empty scraped titles per URL.
type TitleCache struct {
	store   Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTitleCache wraps store with title encoding.
func NewTitleCache(store Store, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *TitleCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleCache{store: store, ttl: ttl, logger: logger, metrics: m}
}

// Get returns the cached title for url.
func (c *TitleCache) Get(ctx context.Context, url string) (string, bool) {
	raw, ok, err := c.store.Get(ctx, TitleKey(url))
	if err != nil {
		c.logger.Warn("title cache read failed", "url", url, "error", err)
		c.metrics.CacheError("title", "get")
	}
	hit := err == nil && ok && len(raw) > 0
	c.metrics.CacheLookup("title", hit)
	if !hit {
		return "", false
	}
	return string(raw), true
}

// Set stores title for url. Empty titles are not stored so a later request retries.
func (c *TitleCache) Set(ctx context.Context, url, title string) {
	if title == "" {
		return
	}
	if err := c.store.Set(ctx, TitleKey(url), []byte(title), c.ttl); err != nil {
		c.logger.Warn("title cache write failed", "url", url, "error", err)
		c.metrics.CacheError("title", "set")
	}
}

// ClearAll removes every status and title entry, including entries written under
// the legacy status prefix. Clearing an empty store succeeds.
func ClearAll(ctx context.Context, store Store) (int, error) {
	total := 0
	for _, prefix := range []string{StatusPrefix, LegacyStatusPrefix, TitlePrefix} {
		n, err := store.DeletePrefix(ctx, prefix)
		if err != nil {
			return total, fmt.Errorf("clear %s entries: %w", prefix, err)
		}
		total += n
	}
	return total, nil
}
