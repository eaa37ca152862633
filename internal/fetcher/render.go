package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"breadcrumbs/internal/config"
)

// RenderOptions configures the JavaScript rendering fallback.
type RenderOptions struct {
	Timeout            time.Duration
	WaitForSelector    string
	UserAgent          string
	MaxBodyBytes       int64
	DisableHeadless    bool
	ConcurrentSessions int
	CaptureDelay       time.Duration
}

// RenderOptionsFromConfig translates the rendering section.
func RenderOptionsFromConfig(cfg config.RenderingConfig, userAgent string, maxBodyBytes int64) RenderOptions {
	return RenderOptions{
		Timeout:            cfg.Timeout.Duration,
		WaitForSelector:    cfg.WaitForSelector,
		UserAgent:          userAgent,
		MaxBodyBytes:       maxBodyBytes,
		DisableHeadless:    cfg.DisableHeadless,
		ConcurrentSessions: cfg.ConcurrentSessions,
	}
}

// ChromedpRenderer renders client-side pages in headless Chrome with bounded
// concurrency.
type ChromedpRenderer struct {
	opts      RenderOptions
	semaphore chan struct{}
	logger    *slog.Logger
}

// NewChromedpRenderer constructs a renderer.
func NewChromedpRenderer(opts RenderOptions, logger *slog.Logger) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 * 1024 * 1024
	}
	if opts.ConcurrentSessions <= 0 {
		opts.ConcurrentSessions = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromedpRenderer{
		opts:      opts,
		semaphore: make(chan struct{}, opts.ConcurrentSessions),
		logger:    logger,
	}
}

// Render navigates to target and returns the document's outer HTML.
func (r *ChromedpRenderer) Render(parentCtx context.Context, target string) ([]byte, error) {
	logger := r.logger.With("url", target, "timeout", r.opts.Timeout.String())

	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-parentCtx.Done():
		return nil, parentCtx.Err()
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.opts.Timeout)
	defer cancel()

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", !r.opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(r.opts.UserAgent),
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	actions := []chromedp.Action{chromedp.Navigate(target)}
	if sel := strings.TrimSpace(r.opts.WaitForSelector); sel != "" {
		actions = append(actions, chromedp.WaitReady(sel, chromedp.ByQuery))
	} else {
		delay := r.opts.CaptureDelay
		if delay <= 0 {
			delay = 750 * time.Millisecond
		}
		actions = append(actions, chromedp.Sleep(delay))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	if int64(len(html)) > r.opts.MaxBodyBytes {
		html = html[:r.opts.MaxBodyBytes]
	}
	logger.Debug("chromedp render complete", "latency_ms", time.Since(start).Milliseconds(), "html_bytes", len(html))
	return []byte(html), nil
}
