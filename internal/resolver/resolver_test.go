package resolver

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadcrumbs/internal/config"
	"breadcrumbs/pkg/types"
)

type stubProber struct {
	mu      sync.Mutex
	results map[string]types.ProbeResult
	calls   []string
}

func (s *stubProber) Check(_ context.Context, target, _ string) types.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, target)
	if res, ok := s.results[target]; ok {
		return res
	}
	return types.ProbeResult{Status: 200}
}

type stubTitles struct {
	mu     sync.Mutex
	titles map[string]string
	calls  []string
	block  bool
}

func (s *stubTitles) Title(ctx context.Context, target string) (string, bool) {
	s.mu.Lock()
	s.calls = append(s.calls, target)
	title, ok := s.titles[target]
	block := s.block
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return "", false
	}
	return title, ok
}

func scrapingOff() config.Settings {
	s := config.DefaultSettings()
	s.EnableScraping = false
	return s
}

func newResolver(t *testing.T, opts Options) *Resolver {
	t.Helper()
	if opts.HomeURL == "" {
		opts.HomeURL = "https://example.com/"
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func status(n int) *int { return &n }

func TestResolveEndToEndWithoutScraping(t *testing.T) {
	r := newResolver(t, Options{Settings: scrapingOff()})

	got := r.Resolve(context.Background(), types.ResolveRequest{Path: "/blog/2024/hello-world/"})
	want := types.Trail{
		{Title: "Home", URL: "https://example.com/", Position: 1},
		{Title: "Blog", URL: "https://example.com/blog/", Position: 2},
		{Title: "2024", URL: "https://example.com/blog/2024/", Position: 3},
		{Title: "Hello World", URL: "https://example.com/blog/2024/hello-world/", Position: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatSlug(t *testing.T) {
	assert.Equal(t, "My Custom Page", FormatSlug("my-custom_page"))
	assert.Equal(t, "2024", FormatSlug("2024"))
	assert.Equal(t, "Already Upper", FormatSlug("Already-Upper"))
	assert.Equal(t, "Café Menu", FormatSlug("caf%C3%A9-menu"))
	assert.Equal(t, "Über Uns", FormatSlug("über-uns"))
}

func TestResolveSlugFallback(t *testing.T) {
	r := newResolver(t, Options{Settings: scrapingOff()})
	got := r.Resolve(context.Background(), types.ResolveRequest{Path: "/my-custom_page"})
	require.Len(t, got, 2)
	assert.Equal(t, "My Custom Page", got[1].Title)
}

func TestResolveDepthBoundAndPositions(t *testing.T) {
	r := newResolver(t, Options{Settings: scrapingOff()})
	var parts []string
	for i := 0; i < 15; i++ {
		parts = append(parts, "level")
	}
	got := r.Resolve(context.Background(), types.ResolveRequest{Path: "/" + strings.Join(parts, "/") + "/"})
	require.Len(t, got, DefaultMaxDepth)
	for i, item := range got {
		assert.Equal(t, i+1, item.Position)
	}
	assert.Equal(t, "https://example.com/", got[0].URL, "earliest items are kept")
}

func TestResolveRootShortCircuit(t *testing.T) {
	titles := &stubTitles{}
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: &stubProber{}, Titles: titles})

	got := r.Resolve(context.Background(), types.ResolveRequest{Path: "/"})
	assert.Equal(t, types.Trail{{Title: "Home", URL: "https://example.com/", Position: 1}}, got)
	assert.Empty(t, titles.calls)

	noHome := config.DefaultSettings()
	noHome.ShowHome = false
	r = newResolver(t, Options{Settings: noHome, Prober: &stubProber{}, Titles: titles})
	assert.Empty(t, r.Resolve(context.Background(), types.ResolveRequest{Path: ""}))
}

func TestResolveSubdirectoryInstallWalksFullPath(t *testing.T) {
	r := newResolver(t, Options{HomeURL: "https://example.com/wp/", Settings: scrapingOff()})
	got := r.Resolve(context.Background(), types.ResolveRequest{Path: "/wp/about/"})
	want := types.Trail{
		{Title: "Home", URL: "https://example.com/", Position: 1},
		{Title: "Wp", URL: "https://example.com/wp/", Position: 2},
		{Title: "About", URL: "https://example.com/wp/about/", Position: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveCascadeOrder(t *testing.T) {
	site := config.SiteConfig{
		Pages: []config.PageConfig{
			{Path: "/docs/guide", Title: "The Guide"},
			{Path: "/guide", Title: "Top Guide"},
			{Path: "/products", Title: "Products Page"},
			{Path: "/drafts", Title: "Hidden", Draft: true},
		},
		ContentTypes: []config.ContentTypeConfig{
			{Name: "product", Label: "Product Catalog", Slug: "products", HasArchive: true},
			{Name: "event", Label: "Events", Slug: "events", HasArchive: true},
			{Name: "note", Label: "Note Archive", Slug: "notes"},
		},
		Taxonomies: []config.TaxonomyConfig{{Name: "genre", Label: "Genres", Slug: "genre"}},
	}
	titles := &stubTitles{titles: map[string]string{
		"https://example.com/docs/":   "Documentation",
		"https://example.com/drafts/": "Scraped Drafts",
	}}
	r := newResolver(t, Options{
		Settings:  config.DefaultSettings(),
		Directory: NewStaticDirectory(site),
		Prober:    &stubProber{},
		Titles:    titles,
	})
	ctx := context.Background()

	cases := []struct {
		path string
		want []string
	}{
		{"/docs/guide/", []string{"Documentation", "The Guide"}},
		{"/docs/guide/intro/", []string{"Documentation", "The Guide", "Intro"}},
		{"/x/guide/", []string{"X", "Top Guide"}},
		{"/products/", []string{"Products Page"}},
		{"/events/", []string{"Events"}},
		{"/notes/", []string{"Notes"}},
		{"/genre/", []string{"Genres"}},
		{"/drafts/", []string{"Scraped Drafts"}},
	}
	for _, tc := range cases {
		trail := r.Resolve(ctx, types.ResolveRequest{Path: tc.path})
		var got []string
		for _, item := range trail[1:] {
			got = append(got, item.Title)
		}
		assert.Equal(t, tc.want, got, tc.path)
	}
}

func TestResolveScrapesCurrentPageAndFallsBackToDocumentTitle(t *testing.T) {
	titles := &stubTitles{titles: map[string]string{}}
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: &stubProber{}, Titles: titles})

	got := r.Resolve(context.Background(), types.ResolveRequest{
		Path:          "/shop/blue-widget/",
		DocumentTitle: "Blue Widget – Acme Store",
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Shop", got[1].Title, "document title applies to the last segment only")
	assert.Equal(t, "Blue Widget", got[2].Title)
	assert.Contains(t, titles.calls, "https://example.com/shop/blue-widget/")
}

func TestDocumentTitleKeepsHyphenatedName(t *testing.T) {
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: &stubProber{}, Titles: &stubTitles{titles: map[string]string{}}})

	got := r.Resolve(context.Background(), types.ResolveRequest{
		Path:          "/blog/well-known-post/",
		DocumentTitle: "Well-Known Post | My Blog",
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Well-Known Post", got[2].Title)
}

func TestScrapeDedupesWithinPass(t *testing.T) {
	titles := &stubTitles{titles: map[string]string{"https://example.com/a/": "Alpha"}}
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: &stubProber{}, Titles: titles})
	p := r.newPass(types.ResolveRequest{Path: "/a/"})

	title, ok := r.scrape(context.Background(), p, "https://example.com/a/")
	assert.True(t, ok)
	assert.Equal(t, "Alpha", title)
	_, ok = r.scrape(context.Background(), p, "https://example.com/a/")
	assert.False(t, ok)
	assert.Len(t, titles.calls, 1)

	fresh := r.newPass(types.ResolveRequest{Path: "/a/"})
	_, ok = r.scrape(context.Background(), fresh, "https://example.com/a/")
	assert.True(t, ok, "visited set does not outlive its pass")
}

func TestResolveIsIdempotent(t *testing.T) {
	titles := &stubTitles{titles: map[string]string{"https://example.com/blog/": "Our Blog"}}
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: &stubProber{}, Titles: titles})
	req := types.ResolveRequest{Path: "/blog/2024/hello-world/"}

	first := r.Resolve(context.Background(), req)
	second := r.Resolve(context.Background(), req)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("trails differ (-first +second):\n%s", diff)
	}
}

func TestResolveBudgetDegradesToSlugs(t *testing.T) {
	titles := &stubTitles{block: true}
	r := newResolver(t, Options{
		Settings: config.DefaultSettings(),
		Prober:   &stubProber{},
		Titles:   titles,
		Budget:   20 * time.Millisecond,
	})

	start := time.Now()
	got := r.Resolve(context.Background(), types.ResolveRequest{Path: "/a/b/c/"})
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, got, 4)
	assert.Equal(t, "C", got[3].Title)
	assert.Len(t, titles.calls, 1, "later segments skip scraping once the budget is spent")
}

func TestResolveChainRedirectSubstitution(t *testing.T) {
	prober := &stubProber{results: map[string]types.ProbeResult{
		"https://x/old": {Status: 301, RedirectTo: "https://x/new"},
	}}
	r := newResolver(t, Options{HomeURL: "https://x/", Settings: config.DefaultSettings(), Prober: prober, Titles: &stubTitles{}})

	got := r.ResolveChain(context.Background(), types.ResolveRequest{Path: "/new/post/"}, []Crumb{{Title: "Old", URL: "https://x/old"}})
	want := types.Trail{
		{Title: "Home", URL: "https://x/", Position: 1},
		{Title: "Old", URL: "https://x/new", Position: 2, Status: status(301)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveChainExpectedURLFallback(t *testing.T) {
	prober := &stubProber{results: map[string]types.ProbeResult{
		"https://example.com/category/news/": {Status: 404},
		"https://example.com/news/":          {Status: 302, RedirectTo: "https://example.com/latest/"},
		"https://example.com/gone/":          {Status: 0},
		"https://example.com/news/story/":    {Status: 404},
	}}
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: prober, Titles: &stubTitles{}})
	req := types.ResolveRequest{Path: "/news/story/"}

	got := r.ResolveChain(context.Background(), req, []Crumb{
		{Title: "News", URL: "https://example.com/category/news/", CategoryLink: true},
		{Title: "Gone", URL: "https://example.com/gone/"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "https://example.com/latest/", got[1].URL, "alternative redirect is followed")
	assert.Equal(t, 302, *got[1].Status)
	assert.Equal(t, "https://example.com/gone/", got[2].URL, "unreachable alternative keeps the computed url")
	assert.Equal(t, 0, *got[2].Status)
}

func TestResolveChainStripsCategoryBase(t *testing.T) {
	prober := &stubProber{}
	r := newResolver(t, Options{Settings: config.DefaultSettings(), Prober: prober, Titles: &stubTitles{}})

	got := r.ResolveChain(context.Background(), types.ResolveRequest{Path: "/tech/go/post/"}, []Crumb{
		{Title: "Tech", URL: "https://example.com/category/tech/", CategoryLink: true},
		{Title: "Go", URL: "https://example.com/category/tech/go/", CategoryLink: true},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "https://example.com/tech/", got[1].URL)
	assert.Equal(t, "https://example.com/tech/go/", got[2].URL)
}

func TestResolveChainWithoutScrapingSkipsProbes(t *testing.T) {
	prober := &stubProber{}
	r := newResolver(t, Options{Settings: scrapingOff(), Prober: prober})
	got := r.ResolveChain(context.Background(), types.ResolveRequest{Path: "/a/"}, []Crumb{{Title: "A", URL: "https://example.com/category/a/"}})
	require.Len(t, got, 2)
	assert.Nil(t, got[1].Status)
	assert.Empty(t, prober.calls)
}

func TestResolvePageAndCategory(t *testing.T) {
	site := config.SiteConfig{
		Pages: []config.PageConfig{
			{Path: "/about", Title: "About"},
			{Path: "/about/team", Title: "Team", Parent: "/about"},
			{Path: "/about/team/leads", Title: "Leads", Parent: "/about/team"},
			{Path: "/loop", Title: "Loop", Parent: "/loop"},
		},
		Categories: []config.CategoryConfig{
			{Slug: "tech", Name: "Technology"},
			{Slug: "go", Name: "Go", Parent: "tech"},
			{Slug: "ext", Name: "External", Link: "https://blog.example.com/ext/"},
		},
	}
	r := newResolver(t, Options{Settings: scrapingOff(), Directory: NewStaticDirectory(site)})
	ctx := context.Background()

	trail, ok := r.ResolvePage(ctx, types.ResolveRequest{Path: "/about/team/leads/"}, "/about/team/leads")
	require.True(t, ok)
	var titles, urls []string
	for _, item := range trail {
		titles = append(titles, item.Title)
		urls = append(urls, item.URL)
	}
	assert.Equal(t, []string{"Home", "About", "Team", "Leads"}, titles)
	assert.Equal(t, "https://example.com/about/team/leads/", urls[3])

	trail, ok = r.ResolvePage(ctx, types.ResolveRequest{Path: "/loop/"}, "/loop")
	require.True(t, ok)
	assert.Len(t, trail, 2)

	_, ok = r.ResolvePage(ctx, types.ResolveRequest{}, "/missing")
	assert.False(t, ok)

	trail, ok = r.ResolveCategory(ctx, types.ResolveRequest{Path: "/category/tech/go/"}, "go")
	require.True(t, ok)
	require.Len(t, trail, 3)
	assert.Equal(t, "https://example.com/category/tech/", trail[1].URL)
	assert.Equal(t, "https://example.com/category/tech/go/", trail[2].URL)

	trail = r.ResolvePost(ctx, types.ResolveRequest{Path: "/ext/hello/", DocumentTitle: "Hello | Blog"}, "", "ext")
	require.Len(t, trail, 3)
	assert.Equal(t, "https://blog.example.com/ext/", trail[1].URL)
	assert.Equal(t, "Hello", trail[2].Title)
	assert.Equal(t, "https://example.com/ext/hello/", trail[2].URL)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{HomeURL: "/relative"})
	require.Error(t, err)

	_, err = New(Options{HomeURL: "https://example.com", Settings: config.DefaultSettings()})
	require.Error(t, err, "scraping needs collaborators")
}
