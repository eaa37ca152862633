// Package resolver turns a request path into an ordered breadcrumb trail.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"breadcrumbs/internal/config"
	"breadcrumbs/internal/extract"
	"breadcrumbs/internal/metrics"
	"breadcrumbs/pkg/types"
)

// DefaultMaxDepth caps the number of items in a trail.
const DefaultMaxDepth = 10

// Prober reports the reachability of a URL. current is the absolute URL of the page
// being rendered.
type Prober interface {
	Check(ctx context.Context, target, current string) types.ProbeResult
}

// TitleSource fetches a page's display title.
type TitleSource interface {
	Title(ctx context.Context, target string) (string, bool)
}

// Options wires a Resolver.
type Options struct {
	HomeURL      string
	CategoryBase string
	Settings     config.Settings
	Directory    Directory
	Prober       Prober
	Titles       TitleSource
	MaxDepth     int
	// Budget caps the wall-clock time of one pass; zero disables it.
	Budget       time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Resolver builds breadcrumb trails. It holds an immutable settings snapshot and is
// safe for concurrent use; per-request state lives in a pass.
type Resolver struct {
	domainRoot   string
	homeURL      string
	installPath  string
	categoryBase string
	settings     config.Settings
	dir          Directory
	prober       Prober
	titles       TitleSource
	maxDepth     int
	budget       time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New validates opts and constructs a Resolver.
func New(opts Options) (*Resolver, error) {
	home, err := url.Parse(strings.TrimSpace(opts.HomeURL))
	if err != nil || home.Scheme == "" || home.Host == "" {
		return nil, fmt.Errorf("home url must be absolute (got %q)", opts.HomeURL)
	}
	if opts.Directory == nil {
		opts.Directory = NewStaticDirectory(config.SiteConfig{})
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settings.EnableScraping && (opts.Prober == nil || opts.Titles == nil) {
		return nil, errors.New("scraping enabled without a prober and title source")
	}
	base := strings.Trim(opts.CategoryBase, "/")
	if base == "" {
		base = "category"
	}
	installPath := strings.TrimRight(home.EscapedPath(), "/")
	domainRoot := home.Scheme + "://" + home.Host
	return &Resolver{
		domainRoot:   domainRoot,
		homeURL:      domainRoot + installPath,
		installPath:  installPath,
		categoryBase: base,
		settings:     opts.Settings.Clone(),
		dir:          opts.Directory,
		prober:       opts.Prober,
		titles:       opts.Titles,
		maxDepth:     opts.MaxDepth,
		budget:       opts.Budget,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}, nil
}

// Settings returns a copy of the resolver's settings snapshot.
func (r *Resolver) Settings() config.Settings {
	return r.settings.Clone()
}

// DomainRoot is the scheme and host of the site, without any install path.
func (r *Resolver) DomainRoot() string {
	return r.domainRoot
}

// pass is the state of one resolution call. visited guards against scraping the
// same URL twice within the pass.
type pass struct {
	id         string
	segments   []string
	currentURL string
	docTitle   string
	visited    map[string]struct{}
	logger     *slog.Logger
}

func (r *Resolver) newPass(req types.ResolveRequest) *pass {
	segments := types.Segments(req.Path)
	id := uuid.NewString()
	return &pass{
		id:         id,
		segments:   segments,
		currentURL: r.currentURL(req, segments),
		docTitle:   req.DocumentTitle,
		visited:    make(map[string]struct{}),
		logger:     r.logger.With("resolve_id", id, "path", req.Path),
	}
}

// currentURL is the request's own absolute URL, derived from the path when the
// host did not supply it.
func (r *Resolver) currentURL(req types.ResolveRequest, segments []string) string {
	if req.CurrentURL != "" {
		return req.CurrentURL
	}
	if len(segments) == 0 {
		return r.domainRoot + "/"
	}
	return r.domainRoot + "/" + strings.Join(segments, "/") + "/"
}

func (r *Resolver) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.budget > 0 {
		return context.WithTimeout(ctx, r.budget)
	}
	return context.WithCancel(ctx)
}

func (r *Resolver) finish(p *pass, start time.Time, trail types.Trail) types.Trail {
	trail = trail.Truncate(r.maxDepth).Renumber()
	r.metrics.ObserveResolve(time.Since(start), len(trail))
	p.logger.Debug("resolved trail", "items", len(trail), "elapsed_ms", time.Since(start).Milliseconds())
	return trail
}

// HomeItem is the trail's first entry, pointing at the domain root.
func (r *Resolver) HomeItem() types.BreadcrumbItem {
	return types.BreadcrumbItem{
		Title:    r.settings.HomeText,
		URL:      r.domainRoot + "/",
		Position: 1,
	}
}

func (r *Resolver) seed() types.Trail {
	trail := make(types.Trail, 0, r.maxDepth)
	if r.settings.ShowHome {
		trail = append(trail, r.HomeItem())
	}
	return trail
}

// Resolve walks the request path segment by segment, labelling each prefix with the
// first strategy that yields a title: a page at the accumulated path, a top-level
// page named by the segment, a content-type archive, a taxonomy, a scraped title, the
// document title for the last segment, and finally the formatted slug. Network
// failures degrade to later strategies; resolution itself never fails.
func (r *Resolver) Resolve(ctx context.Context, req types.ResolveRequest) types.Trail {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, cancel := r.begin(ctx)
	defer cancel()

	p := r.newPass(req)
	trail := r.seed()
	if len(p.segments) == 0 && r.installPath == "" {
		return r.finish(p, start, trail)
	}

	for i, segment := range p.segments {
		if len(trail) >= r.maxDepth {
			break
		}
		accumulated := "/" + strings.Join(p.segments[:i+1], "/")
		target := r.domainRoot + accumulated + "/"
		title, strategy := r.label(ctx, p, segment, accumulated, target, i == len(p.segments)-1)
		p.logger.Debug("segment resolved", "segment", segment, "url", target, "strategy", strategy)
		trail = append(trail, types.BreadcrumbItem{Title: title, URL: target})
	}
	return r.finish(p, start, trail)
}

func (r *Resolver) label(ctx context.Context, p *pass, segment, accumulated, target string, last bool) (string, string) {
	if page, ok := r.dir.PageByPath(accumulated); ok && page.Published && page.Title != "" {
		return page.Title, "page_path"
	}
	if page, ok := r.dir.PageByPath("/" + segment); ok && page.Published && page.Title != "" {
		return page.Title, "page_slug"
	}
	for _, ct := range r.dir.ContentTypes() {
		if ct.HasArchive && ct.Slug == segment && ct.Label != "" {
			return ct.Label, "archive"
		}
	}
	for _, tx := range r.dir.Taxonomies() {
		if tx.Slug == segment && tx.Label != "" {
			return tx.Label, "taxonomy"
		}
	}
	if r.settings.EnableScraping {
		if title, ok := r.scrape(ctx, p, target); ok {
			return title, "scrape"
		}
	}
	if last && strings.TrimSpace(p.docTitle) != "" {
		return extract.FirstPart(p.docTitle), "document_title"
	}
	return FormatSlug(segment), "slug"
}

func (r *Resolver) scrape(ctx context.Context, p *pass, target string) (string, bool) {
	if _, seen := p.visited[target]; seen {
		return "", false
	}
	p.visited[target] = struct{}{}
	if ctx.Err() != nil {
		return "", false
	}
	return r.titles.Title(ctx, target)
}

// FormatSlug turns a URL segment into a label: percent-decoding, replacing
// hyphens and underscores with spaces, and upper-casing the first letter of each
// word.
func FormatSlug(segment string) string {
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	var b strings.Builder
	b.Grow(len(segment))
	upper := true
	for _, r := range segment {
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
		} else {
			b.WriteRune(r)
		}
		upper = r == ' ' || r == '\t' || r == '\n'
	}
	return b.String()
}
