package cache

import (
	"context"
	"fmt"
	"log/slog"

	"breadcrumbs/internal/config"
)

// New builds the Store selected by cfg.Backend.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", config.BackendMemory:
		logger.Info("using in-memory cache", "max_entries", cfg.MaxEntries)
		store, err := NewMemoryStore(cfg.MaxEntries, nil)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendRedis:
		store, err := NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		logger.Info("using redis cache", "addr", store.addr, "db", cfg.Redis.DB)
		return store, nil
	case config.BackendPostgres:
		store, err := NewSQLStore(ctx, cfg.DB, nil)
		if err != nil {
			return nil, fmt.Errorf("postgres cache: %w", err)
		}
		logger.Info("using postgres cache", "table", store.table)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}
