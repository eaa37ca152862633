package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BotMarker is the user-agent substring that identifies the service's own probe and
// scrape requests. Hosts must suppress breadcrumb generation for requests carrying it.
const BotMarker = "KSPB Breadcrumbs Bot"

// DefaultUserAgent is the full user agent sent by the prober and scraper.
const DefaultUserAgent = BotMarker + "/1.0"

// Config captures everything needed to run the breadcrumb resolver service.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Settings Settings       `yaml:"settings"`
	Probe    ProbeConfig    `yaml:"probe"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Cache    CacheConfig    `yaml:"cache"`
	Resolver ResolverConfig `yaml:"resolver"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

// SiteConfig describes the site whose pages are being resolved and the entities it
// knows about locally.
type SiteConfig struct {
	// HomeURL is the site's home URL. A non-root path marks a sub-directory install.
	HomeURL      string              `yaml:"home_url"`
	CategoryBase string              `yaml:"category_base"`
	Pages        []PageConfig        `yaml:"pages"`
	ContentTypes []ContentTypeConfig `yaml:"content_types"`
	Taxonomies   []TaxonomyConfig    `yaml:"taxonomies"`
	Categories   []CategoryConfig    `yaml:"categories"`
}

// PageConfig is a static page known by its full path.
type PageConfig struct {
	Path   string `yaml:"path"`
	Title  string `yaml:"title"`
	Parent string `yaml:"parent"`
	Draft  bool   `yaml:"draft"`
}

// ContentTypeConfig is a registered content type with an optional listing archive.
type ContentTypeConfig struct {
	Name       string `yaml:"name"`
	Label      string `yaml:"label"`
	Slug       string `yaml:"slug"`
	HasArchive bool   `yaml:"has_archive"`
}

// TaxonomyConfig is a registered taxonomy with a listing slug.
type TaxonomyConfig struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Slug  string `yaml:"slug"`
}

// CategoryConfig is a hierarchical category term.
type CategoryConfig struct {
	Slug   string `yaml:"slug"`
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	// Link overrides the computed category URL.
	Link   string `yaml:"link"`
}

// ProbeConfig controls URL existence checks.
type ProbeConfig struct {
	Timeout            Duration        `yaml:"timeout"`
	UserAgent          string          `yaml:"user_agent"`
	InsecureSkipVerify bool            `yaml:"insecure_skip_verify"`
	MaxRetries         int             `yaml:"max_retries"`
	RetryBackoff       Duration        `yaml:"retry_backoff"`
	RateLimitPerHost   RateLimitConfig `yaml:"rate_limit_per_host"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// ScrapeConfig controls title scraping.
type ScrapeConfig struct {
	Timeout        Duration        `yaml:"timeout"`
	MaxRedirects   int             `yaml:"max_redirects"`
	MaxBodyBytes   int64           `yaml:"max_body_bytes"`
	RespectRobots  bool            `yaml:"respect_robots"`
	RobotsCacheTTL Duration        `yaml:"robots_cache_ttl"`
	Rendering      RenderingConfig `yaml:"rendering"`
}

// RenderingConfig controls optional JavaScript rendering of scraped pages.
type RenderingConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Timeout            Duration `yaml:"timeout"`
	WaitForSelector    string   `yaml:"wait_for_selector"`
	ConcurrentSessions int      `yaml:"concurrent_sessions"`
	DisableHeadless    bool     `yaml:"disable_headless"`
}

// CacheConfig selects the cache backend and entry lifetimes.
type CacheConfig struct {
	Backend    string      `yaml:"backend"`
	TTL        Duration    `yaml:"ttl"`
	// FailureTTL applies to status-0 probe results.
	FailureTTL Duration    `yaml:"failure_ttl"`
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`
	DB         SQLConfig   `yaml:"db"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Host     string   `yaml:"host"`
	Port     string   `yaml:"port"`
	DB       int      `yaml:"db"`
	Password string   `yaml:"password"`
	Timeout  Duration `yaml:"timeout"`
}

// SQLConfig describes the relational cache backend.
type SQLConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	Table           string   `yaml:"table"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	CreateIfMissing bool     `yaml:"create_if_missing"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// ResolverConfig bounds a resolution pass.
type ResolverConfig struct {
	MaxDepth int      `yaml:"max_depth"`
	// Budget caps the wall-clock time of one pass; zero disables the cap.
	Budget   Duration `yaml:"budget"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	// Upstream, when set, is proxied with breadcrumbs injected into HTML responses.
	Upstream        string   `yaml:"upstream"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Site: SiteConfig{
			HomeURL:      "http://localhost:8080/",
			CategoryBase: "category",
		},
		Settings: DefaultSettings(),
		Probe: ProbeConfig{
			Timeout:            DurationFrom(5 * time.Second),
			UserAgent:          DefaultUserAgent,
			InsecureSkipVerify: true,
			MaxRetries:         0,
			RetryBackoff:       DurationFrom(250 * time.Millisecond),
		},
		Scrape: ScrapeConfig{
			Timeout:        DurationFrom(5 * time.Second),
			MaxRedirects:   3,
			MaxBodyBytes:   2 * 1024 * 1024,
			RobotsCacheTTL: DurationFrom(6 * time.Hour),
			Rendering: RenderingConfig{
				Timeout:            DurationFrom(15 * time.Second),
				ConcurrentSessions: 1,
			},
		},
		Cache: CacheConfig{
			Backend:    BackendMemory,
			TTL:        DurationFrom(24 * time.Hour),
			FailureTTL: DurationFrom(24 * time.Hour),
			MaxEntries: 10000,
			Redis: RedisConfig{
				Port:    "6379",
				Timeout: DurationFrom(5 * time.Second),
			},
			DB: SQLConfig{
				Driver:      "postgres",
				Table:       "kspb_transients",
				AutoMigrate: true,
			},
		},
		Resolver: ResolverConfig{
			MaxDepth: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: DurationFrom(15 * time.Second),
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides the Redis section from the standard REDIS_* variables.
func (c *Config) ApplyEnv() error {
	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if host == "" {
		return nil
	}
	c.Cache.Redis.Host = host
	if port := strings.TrimSpace(os.Getenv("REDIS_PORT")); port != "" {
		c.Cache.Redis.Port = port
	}
	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("REDIS_DB: %w", err)
		}
		c.Cache.Redis.DB = db
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Cache.Redis.Password = pw
	}
	return nil
}

// Validate enforces required invariants for the service configuration.
func (c Config) Validate() error {
	home, err := url.Parse(c.Site.HomeURL)
	if err != nil || home.Scheme == "" || home.Host == "" {
		return fmt.Errorf("site.home_url must be an absolute URL (got %q)", c.Site.HomeURL)
	}
	for i, p := range c.Site.Pages {
		if p.Path == "" {
			return fmt.Errorf("site.pages[%d] has empty path", i)
		}
	}
	for i, cat := range c.Site.Categories {
		if cat.Slug == "" {
			return fmt.Errorf("site.categories[%d] has empty slug", i)
		}
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if c.Probe.Timeout.Duration <= 0 {
		return fmt.Errorf("probe.timeout must be > 0 (got %s)", c.Probe.Timeout)
	}
	if !strings.Contains(c.Probe.UserAgent, BotMarker) {
		return fmt.Errorf("probe.user_agent must contain %q so hosts can recognise self-requests", BotMarker)
	}
	if c.Probe.MaxRetries < 0 {
		return fmt.Errorf("probe.max_retries must be >= 0 (got %d)", c.Probe.MaxRetries)
	}
	if rl := c.Probe.RateLimitPerHost; rl.Requests < 0 {
		return fmt.Errorf("probe.rate_limit_per_host.requests must be >= 0 (got %d)", rl.Requests)
	}
	if c.Scrape.MaxRedirects < 0 {
		return fmt.Errorf("scrape.max_redirects must be >= 0 (got %d)", c.Scrape.MaxRedirects)
	}
	if c.Scrape.MaxBodyBytes <= 0 {
		return fmt.Errorf("scrape.max_body_bytes must be > 0 (got %d)", c.Scrape.MaxBodyBytes)
	}
	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Host == "" {
			return errors.New("cache.redis.host must be set when cache.backend is redis")
		}
	case BackendPostgres:
		if c.Cache.DB.DSN == "" {
			return errors.New("cache.db.dsn must be set when cache.backend is postgres")
		}
	default:
		return fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL.Duration <= 0 {
		return fmt.Errorf("cache.ttl must be > 0 (got %s)", c.Cache.TTL)
	}
	if c.Cache.FailureTTL.Duration < 0 {
		return fmt.Errorf("cache.failure_ttl must be >= 0 (got %s)", c.Cache.FailureTTL)
	}
	if c.Resolver.MaxDepth <= 0 {
		return fmt.Errorf("resolver.max_depth must be > 0 (got %d)", c.Resolver.MaxDepth)
	}
	if c.Server.Upstream != "" {
		up, err := url.Parse(c.Server.Upstream)
		if err != nil || up.Host == "" {
			return fmt.Errorf("server.upstream must be an absolute URL (got %q)", c.Server.Upstream)
		}
	}
	return nil
}

func (c *Config) normalise() {
	c.Site.HomeURL = strings.TrimSpace(c.Site.HomeURL)
	c.Site.CategoryBase = strings.Trim(strings.TrimSpace(c.Site.CategoryBase), "/")
	for i := range c.Site.Pages {
		c.Site.Pages[i].Path = "/" + strings.Trim(strings.TrimSpace(c.Site.Pages[i].Path), "/")
		c.Site.Pages[i].Title = strings.TrimSpace(c.Site.Pages[i].Title)
		if parent := strings.Trim(strings.TrimSpace(c.Site.Pages[i].Parent), "/"); parent != "" {
			c.Site.Pages[i].Parent = "/" + parent
		}
	}
	for i := range c.Site.ContentTypes {
		ct := &c.Site.ContentTypes[i]
		ct.Name = strings.TrimSpace(ct.Name)
		ct.Slug = strings.Trim(strings.TrimSpace(ct.Slug), "/")
		if ct.Slug == "" {
			ct.Slug = ct.Name
		}
	}
	for i := range c.Site.Taxonomies {
		c.Site.Taxonomies[i].Slug = strings.Trim(strings.TrimSpace(c.Site.Taxonomies[i].Slug), "/")
	}
	for i := range c.Site.Categories {
		c.Site.Categories[i].Slug = strings.TrimSpace(c.Site.Categories[i].Slug)
		c.Site.Categories[i].Parent = strings.TrimSpace(c.Site.Categories[i].Parent)
	}
	c.Probe.UserAgent = strings.TrimSpace(c.Probe.UserAgent)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.Settings.normalise()
	if len(c.Settings.PostTypes) > 0 {
		c.Settings.PostTypes = dedupeLower(c.Settings.PostTypes)
	}
	if len(c.Settings.PostTypeArchives) > 0 {
		c.Settings.PostTypeArchives = dedupeLower(c.Settings.PostTypeArchives)
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}
