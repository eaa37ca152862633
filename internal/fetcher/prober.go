package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"breadcrumbs/internal/cache"
	"breadcrumbs/internal/config"
	"breadcrumbs/internal/metrics"
	"breadcrumbs/pkg/types"
)

// Prober checks whether URLs exist without following redirects.
type Prober struct {
	client       *http.Client
	userAgent    string
	maxRetries   int
	retryBackoff time.Duration
	limiter      *HostLimiter
	statuses     *cache.StatusCache
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// ProberOptions wires a Prober's collaborators. Zero fields get defaults.
type ProberOptions struct {
	Client       *http.Client
	UserAgent    string
	MaxRetries   int
	RetryBackoff time.Duration
	Limiter      *HostLimiter
	Statuses     *cache.StatusCache
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// ProberOptionsFromConfig translates the probe section into options with a
// non-redirecting client.
func ProberOptionsFromConfig(cfg config.ProbeConfig) ProberOptions {
	return ProberOptions{
		Client: NewHTTPClient(ClientOptions{
			Timeout:            cfg.Timeout.Or(5 * time.Second),
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MaxRedirects:       0,
		}),
		UserAgent:    cfg.UserAgent,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff.Duration,
		Limiter:      NewHostLimiter(cfg.RateLimitPerHost.Requests, cfg.RateLimitPerHost.Window.Duration),
	}
}

// NewProber constructs a Prober.
func NewProber(opts ProberOptions) *Prober {
	if opts.Client == nil {
		opts.Client = NewHTTPClient(ClientOptions{InsecureSkipVerify: true})
	}
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Prober{
		client:       opts.Client,
		userAgent:    opts.UserAgent,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		limiter:      opts.Limiter,
		statuses:     opts.Statuses,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Check reports the status of target. A target equal to current, ignoring a
// trailing slash, is reported as 200 without any network call. Network failures
// yield status 0 and are cached like any other result.
func (p *Prober) Check(ctx context.Context, target, current string) types.ProbeResult {
	if SameURL(target, current) {
		return types.ProbeResult{Status: http.StatusOK}
	}
	if p.statuses != nil {
		if cached, ok := p.statuses.Get(ctx, target); ok {
			return cached
		}
	}

	result, err := p.probe(ctx, target)
	p.metrics.ProbeResult(result.Status)
	if err != nil {
		if ctx.Err() != nil {
			// an exhausted request budget says nothing about the target
			return result
		}
		p.logger.Warn("probe failed", "url", target, "error", err)
	}
	if p.statuses != nil {
		p.statuses.Set(ctx, target, result)
	}
	return result
}

func (p *Prober) probe(ctx context.Context, target string) (types.ProbeResult, error) {
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return types.ProbeResult{}, errors.Join(errors.New("invalid probe url"), err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, p.retryBackoff*time.Duration(attempt)); err != nil {
				return types.ProbeResult{}, err
			}
		}
		if err := p.limiter.Wait(ctx, parsed.Host); err != nil {
			return types.ProbeResult{}, err
		}
		result, err := p.head(ctx, parsed)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return types.ProbeResult{}, lastErr
}

func (p *Prober) head(ctx context.Context, target *url.URL) (types.ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return types.ProbeResult{}, err
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.ProbeResult{}, err
	}
	_ = resp.Body.Close()

	result := types.ProbeResult{Status: resp.StatusCode}
	if loc := strings.TrimSpace(resp.Header.Get("Location")); loc != "" {
		result.RedirectTo = resolveLocation(target, loc)
	}
	p.logger.Debug("probe", "url", target.String(), "status", result.Status, "redirect_to", result.RedirectTo)
	return result, nil
}

// resolveLocation makes a Location header absolute against the probed URL's
// scheme and host.
func resolveLocation(base *url.URL, location string) string {
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	if ref.IsAbs() {
		return ref.String()
	}
	root := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	return root.ResolveReference(ref).String()
}

// SameURL compares two URLs ignoring a single trailing slash.
func SameURL(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
