// Package robots gates title scraping on a site's robots.txt rules.
package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"breadcrumbs/internal/config"
)

// Agent evaluates robots.txt rules for the scraper's user agent with per-host
// caching. Lookup failures allow the request.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// NewAgent constructs a robots agent from the scrape section.
func NewAgent(cfg config.ScrapeConfig, userAgent string, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Agent{
		client:    client,
		userAgent: userAgent,
		ttl:       cfg.RobotsCacheTTL.Or(30 * time.Minute),
		respect:   cfg.RespectRobots,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
	}
}

// Allowed reports whether target may be scraped.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	if !a.respect {
		return true
	}

	rules, err := a.rules(ctx, target)
	if err != nil {
		return true
	}
	// FindGroup falls back to the "*" group itself.
	return rules.FindGroup(a.userAgent).Test(target.Path)
}

func (a *Agent) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, ok := a.cache[host]
	a.mu.RUnlock()
	if ok && a.now().Sub(entry.fetched) < a.ttl {
		return entry.rules, nil
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// A failing robots.txt server allows scraping, like any other lookup failure.
	var data *robotstxt.RobotsData
	if resp.StatusCode >= http.StatusInternalServerError {
		data, err = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	} else {
		data, err = robotstxt.FromResponse(resp)
	}
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	a.mu.Lock()
	a.cache[host] = cacheEntry{fetched: a.now(), rules: data}
	a.mu.Unlock()

	return data, nil
}

// Purge evicts cached rules for a host.
func (a *Agent) Purge(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	a.mu.Lock()
	delete(a.cache, host)
	a.mu.Unlock()
}
