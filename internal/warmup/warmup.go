// Package warmup pre-resolves paths so later requests hit warm status and title
// caches.
package warmup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"breadcrumbs/pkg/types"
)

// Resolver is the part of the path resolver warmup drives.
type Resolver interface {
	Resolve(ctx context.Context, req types.ResolveRequest) types.Trail
}

// Options tunes a warmup run.
type Options struct {
	Concurrency int
	QueueSize   int
	Logger      *slog.Logger
}

// Result reports one resolved path.
type Result struct {
	Path    string        `json:"path"`
	Items   int           `json:"items"`
	Elapsed time.Duration `json:"elapsed"`
}

// Run resolves every path with bounded concurrency. Results come back in input
// order; paths skipped because ctx ended are absent. The returned error is the
// context error, if any.
func Run(ctx context.Context, r Resolver, paths []string, opts Options) ([]Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Concurrency * 2
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p, err := newPool(ctx, opts.Concurrency, opts.QueueSize)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(paths))
	var mu sync.Mutex
	for i, path := range paths {
		err := p.submit(func(ctx context.Context) {
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			trail := r.Resolve(ctx, types.ResolveRequest{Path: path})
			res := Result{Path: path, Items: len(trail), Elapsed: time.Since(start)}
			opts.Logger.Debug("warmed path", "path", path, "items", res.Items, "elapsed_ms", res.Elapsed.Milliseconds())
			mu.Lock()
			results[i] = &res
			mu.Unlock()
		})
		if err != nil {
			break
		}
	}
	p.drain()

	out := make([]Result, 0, len(paths))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	opts.Logger.Info("warmup finished", "requested", len(paths), "resolved", len(out))
	return out, ctx.Err()
}
