package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxEntries = 10000

// MemoryStore keeps entries in a bounded LRU. Expired entries are dropped lazily on
// read; capacity pressure evicts the least recently used entry.
type MemoryStore struct {
	entries *lru.Cache[string, Entry]
	clock   Clock
}

// NewMemoryStore creates an in-process store holding at most maxEntries keys.
func NewMemoryStore(maxEntries int, clock Clock) (*MemoryStore, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	entries, err := lru.New[string, Entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryStore{entries: entries, clock: clock}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(m.clock.now()) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries.Add(key, Entry{
		Value:     append([]byte(nil), value...),
		ExpiresAt: expiry(m.clock.now(), ttl),
	})
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, key := range m.entries.Keys() {
		if strings.HasPrefix(key, prefix) && m.entries.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live and not-yet-collected entries.
func (m *MemoryStore) Len() int {
	return m.entries.Len()
}

func (m *MemoryStore) Close() error {
	m.entries.Purge()
	return nil
}
