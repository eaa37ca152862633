// Package cache persists probe statuses and scraped titles behind a pluggable
// key/value store with per-entry expiry.
package cache

import (
	"context"
	"time"
)

// Store is a string-keyed byte store with per-entry TTL. Expired entries must read
// as absent. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every entry whose key starts with prefix and reports how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Clock supplies the current time so expiry can be tested deterministically.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Entry is a stored value together with its absolute expiry.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now. A zero ExpiresAt
// never expires.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
