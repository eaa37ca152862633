package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"breadcrumbs/internal/cache"
	"breadcrumbs/internal/config"
	"breadcrumbs/internal/fetcher"
	"breadcrumbs/internal/metrics"
	"breadcrumbs/internal/resolver"
	"breadcrumbs/internal/robots"
)

// app holds the long-lived components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   cache.Store
	prober  *fetcher.Prober
	scraper *fetcher.Scraper
	dir     resolver.Directory
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		def := config.Default()
		cfg = &def
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	m := metrics.New()
	store, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("initialise cache: %w", err)
	}

	statuses := cache.NewStatusCache(store, cfg.Cache.TTL.Duration,
		cache.WithFailureTTL(cfg.Cache.FailureTTL.Duration),
		cache.WithStatusLogger(logger),
		cache.WithStatusMetrics(m),
	)
	titles := cache.NewTitleCache(store, cfg.Cache.TTL.Duration, logger, m)

	proberOpts := fetcher.ProberOptionsFromConfig(cfg.Probe)
	proberOpts.Statuses = statuses
	proberOpts.Logger = logger
	proberOpts.Metrics = m

	scraperOpts := fetcher.ScraperOptionsFromConfig(cfg.Scrape, cfg.Probe)
	scraperOpts.Limiter = proberOpts.Limiter
	scraperOpts.Titles = titles
	scraperOpts.Logger = logger
	scraperOpts.Metrics = m
	if cfg.Scrape.RespectRobots {
		scraperOpts.Robots = robots.NewAgent(cfg.Scrape, cfg.Probe.UserAgent, scraperOpts.Client)
	}
	if cfg.Scrape.Rendering.Enabled {
		renderOpts := fetcher.RenderOptionsFromConfig(cfg.Scrape.Rendering, cfg.Probe.UserAgent, cfg.Scrape.MaxBodyBytes)
		scraperOpts.Renderer = fetcher.NewChromedpRenderer(renderOpts, logger)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   store,
		prober:  fetcher.NewProber(proberOpts),
		scraper: fetcher.NewScraper(scraperOpts),
		dir:     resolver.NewStaticDirectory(cfg.Site),
	}, nil
}

// build constructs a resolver over the shared components for one settings
// snapshot.
func (a *app) build(settings config.Settings) (*resolver.Resolver, error) {
	return resolver.New(resolver.Options{
		HomeURL:      a.cfg.Site.HomeURL,
		CategoryBase: a.cfg.Site.CategoryBase,
		Settings:     settings,
		Directory:    a.dir,
		Prober:       a.prober,
		Titles:       a.scraper,
		MaxDepth:     a.cfg.Resolver.MaxDepth,
		Budget:       a.cfg.Resolver.Budget.Duration,
		Logger:       a.logger,
		Metrics:      a.metrics,
	})
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
