package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"breadcrumbs/internal/cache"
	"breadcrumbs/internal/config"
	"breadcrumbs/internal/extract"
	"breadcrumbs/internal/metrics"
	"breadcrumbs/internal/robots"
)

// Renderer executes JavaScript and returns the rendered document markup.
type Renderer interface {
	Render(ctx context.Context, target string) ([]byte, error)
}

// Scraper fetches pages and extracts their titles through the title cache.
type Scraper struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *HostLimiter
	titles       *cache.TitleCache
	robots       *robots.Agent
	renderer     Renderer
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// ScraperOptions wires a Scraper's collaborators. Zero fields get defaults.
type ScraperOptions struct {
	Client       *http.Client
	UserAgent    string
	MaxBodyBytes int64
	Limiter      *HostLimiter
	Titles       *cache.TitleCache
	Robots       *robots.Agent
	Renderer     Renderer
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// ScraperOptionsFromConfig translates the scrape section into options with a client
// that follows up to MaxRedirects redirects.
func ScraperOptionsFromConfig(scrape config.ScrapeConfig, probe config.ProbeConfig) ScraperOptions {
	return ScraperOptions{
		Client: NewHTTPClient(ClientOptions{
			Timeout:            scrape.Timeout.Or(5 * time.Second),
			InsecureSkipVerify: probe.InsecureSkipVerify,
			MaxRedirects:       scrape.MaxRedirects,
		}),
		UserAgent:    probe.UserAgent,
		MaxBodyBytes: scrape.MaxBodyBytes,
	}
}

// NewScraper constructs a Scraper.
func NewScraper(opts ScraperOptions) *Scraper {
	if opts.Client == nil {
		opts.Client = NewHTTPClient(ClientOptions{InsecureSkipVerify: true, MaxRedirects: 3})
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 * 1024 * 1024
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scraper{
		client:       opts.Client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		limiter:      opts.Limiter,
		titles:       opts.Titles,
		robots:       opts.Robots,
		renderer:     opts.Renderer,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Title returns the extracted title of target. Fetch failures and pages without a
// usable title return ("", false) and are not cached.
func (s *Scraper) Title(ctx context.Context, target string) (string, bool) {
	if s.titles != nil {
		if title, ok := s.titles.Get(ctx, target); ok {
			return title, true
		}
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return "", false
	}
	logger := s.logger.With("url", target)
	if s.robots != nil && !s.robots.Allowed(ctx, parsed) {
		logger.Debug("scrape disallowed by robots.txt")
		return "", false
	}

	title, found := "", false
	body, err := s.fetch(ctx, parsed)
	if err != nil {
		logger.Warn("scrape failed", "error", err)
	} else {
		title, found = extract.Title(body)
	}
	if !found && s.renderer != nil && ctx.Err() == nil {
		rendered, err := s.renderer.Render(ctx, target)
		if err != nil {
			logger.Warn("renderer failed", "error", err)
		} else {
			title, found = extract.Title(rendered)
		}
	}
	s.metrics.ScrapeResult(found)
	if !found {
		return "", false
	}
	if s.titles != nil {
		s.titles.Set(ctx, target, title)
	}
	return title, true
}

func (s *Scraper) fetch(ctx context.Context, target *url.URL) ([]byte, error) {
	if err := s.limiter.Wait(ctx, target.Host); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}
	body, err := readBody(resp, s.maxBodyBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
