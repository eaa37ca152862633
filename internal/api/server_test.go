package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadcrumbs/internal/cache"
	"breadcrumbs/internal/config"
	"breadcrumbs/internal/metrics"
	"breadcrumbs/internal/resolver"
)

func testSite() config.SiteConfig {
	return config.SiteConfig{
		Pages: []config.PageConfig{
			{Path: "/about", Title: "About Us"},
			{Path: "/about/team", Title: "Team", Parent: "/about"},
		},
		Categories: []config.CategoryConfig{
			{Slug: "tech", Name: "Technology"},
			{Slug: "go", Name: "Go", Parent: "tech"},
		},
	}
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.EnableScraping = false
	return s
}

func newTestServer(t *testing.T, upstream *url.URL) (*Server, *cache.MemoryStore) {
	t.Helper()
	store, err := cache.NewMemoryStore(100, nil)
	require.NoError(t, err)
	dir := resolver.NewStaticDirectory(testSite())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server, err := NewServer(Options{
		Settings: testSettings(),
		Build: func(s config.Settings) (*resolver.Resolver, error) {
			return resolver.New(resolver.Options{
				HomeURL:   "https://example.com/",
				Settings:  s,
				Directory: dir,
				Logger:    logger,
			})
		},
		Store:    store,
		Metrics:  metrics.New(),
		Upstream: upstream,
		Version:  "test",
		Logger:   logger,
	})
	require.NoError(t, err)
	return server, store
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) BreadcrumbResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp BreadcrumbResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestServerHandlers(t *testing.T) {
	server, _ := newTestServer(t, nil)

	assertRoute(t, server, http.MethodGet, "/health", http.StatusOK, "application/json")
	assertRoute(t, server, http.MethodGet, "/openapi.yaml", http.StatusOK, "application/yaml")
	assertRoute(t, server, http.MethodGet, "/docs", http.StatusOK, "text/html; charset=utf-8")
	assertRoute(t, server, http.MethodGet, "/api/settings/fields", http.StatusOK, "application/json")
	assertRoute(t, server, http.MethodGet, "/metrics", http.StatusOK, "")
}

func TestDocsListsRoutes(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rr := do(t, server, http.MethodGet, "/docs", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "KSPB Breadcrumbs test")
	for _, route := range docRoutes {
		assert.Contains(t, body, "<code>"+route.Path+"</code>")
	}
}

func TestBreadcrumbsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp := decode(t, do(t, server, http.MethodGet, "/api/breadcrumbs?path=/blog/2024/hello-world/", nil))
	assert.True(t, resp.Displayed)
	require.Len(t, resp.Trail, 4)
	assert.Equal(t, "Hello World", resp.Trail[3].Title)
	assert.Contains(t, resp.HTML, `class="kspb-breadcrumbs classic"`)
	require.NotNil(t, resp.JSONLD)
	assert.Len(t, resp.JSONLD.ItemListElement, 4)

	rr := do(t, server, http.MethodGet, "/api/breadcrumbs?path=/blog/&format=html", nil)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "<nav"))

	rr = do(t, server, http.MethodGet, "/api/breadcrumbs", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBreadcrumbsSuppressed(t *testing.T) {
	server, _ := newTestServer(t, nil)

	bot := url.QueryEscape(config.DefaultUserAgent)
	resp := decode(t, do(t, server, http.MethodGet, "/api/breadcrumbs?path=/blog/&user_agent="+bot, nil))
	assert.False(t, resp.Displayed)
	assert.Empty(t, resp.Trail)
	assert.Nil(t, resp.JSONLD)

	form := url.Values{"position": {"top"}, "pattern": {"classic"}, "font_size": {"14"}, "home_text": {"Home"}, "separator": {">"}, "show_home": {"1"}}
	rr := do(t, server, http.MethodPost, "/api/settings", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp = decode(t, do(t, server, http.MethodGet, "/api/breadcrumbs?path=/tag/go/&kind=tag", nil))
	assert.False(t, resp.Displayed, "show_on_tag was switched off by the full form")
}

func TestPageAndCategoryEndpoints(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp := decode(t, do(t, server, http.MethodGet, "/api/breadcrumbs/page?path=/about/team/", nil))
	var titles []string
	for _, item := range resp.Trail {
		titles = append(titles, item.Title)
	}
	assert.Equal(t, []string{"Home", "About Us", "Team"}, titles)

	rr := do(t, server, http.MethodGet, "/api/breadcrumbs/page?path=/nowhere/", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	resp = decode(t, do(t, server, http.MethodGet, "/api/breadcrumbs/category/go?path=/category/tech/go/", nil))
	require.Len(t, resp.Trail, 3)
	assert.Equal(t, "https://example.com/category/tech/go/", resp.Trail[2].URL)

	rr = do(t, server, http.MethodGet, "/api/breadcrumbs/category/none?path=/x/", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChainEndpointsSkipBotRequests(t *testing.T) {
	server, _ := newTestServer(t, nil)

	for _, target := range []string{
		"/api/breadcrumbs/page?path=/about/team/",
		"/api/breadcrumbs/category/go?path=/category/tech/go/",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("User-Agent", config.DefaultUserAgent)
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, req)

		resp := decode(t, rr)
		assert.False(t, resp.Displayed, target)
		assert.Empty(t, resp.Trail, target)
		assert.Nil(t, resp.JSONLD, target)
	}
}

func TestPreviewAppliesOverrides(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rr := do(t, server, http.MethodGet, "/api/breadcrumbs/preview?pattern=rounded&separator=%C2%BB&font_size=20", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	nav := doc.Find("nav.kspb-breadcrumbs.rounded")
	require.Equal(t, 1, nav.Length())
	style, _ := nav.Attr("style")
	assert.Equal(t, "font-size:20px;", style)
	assert.Equal(t, 4, doc.Find("li.kspb-item").Length())
	assert.Equal(t, "»", doc.Find("span.kspb-separator").First().Text())

	current := do(t, server, http.MethodGet, "/api/settings", nil)
	var settings config.Settings
	require.NoError(t, json.Unmarshal(current.Body.Bytes(), &settings))
	assert.Equal(t, config.PatternClassic, settings.Pattern, "preview does not persist")
}

func TestUpdateSettingsSwapsResolver(t *testing.T) {
	server, _ := newTestServer(t, nil)
	before := server.Resolver()

	form := url.Values{
		"position": {"bottom"}, "pattern": {"modern"}, "font_size": {"18"},
		"home_text": {"Start"}, "separator": {"/"}, "show_home": {"1"}, "show_breadcrumbs_all": {"1"},
	}
	rr := do(t, server, http.MethodPost, "/api/settings", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotSame(t, before, server.Resolver())

	resp := decode(t, do(t, server, http.MethodGet, "/api/breadcrumbs?path=/x/", nil))
	assert.Equal(t, "Start", resp.Trail[0].Title)
	assert.Contains(t, resp.HTML, "kspb-breadcrumbs modern")

	bad := url.Values{"font_size": {"14"}, "pattern": {"classic"}, "position": {"top"}, "separator": {strings.Repeat("x", 40)}}
	rr = do(t, server, http.MethodPost, "/api/settings", strings.NewReader(bad.Encode()))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClearCache(t *testing.T) {
	server, store := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cache.StatusKey("https://example.com/a/"), []byte(`{"status":200}`), 0))
	require.NoError(t, store.Set(ctx, cache.TitleKey("https://example.com/a/"), []byte("A"), 0))
	require.NoError(t, store.Set(ctx, "unrelated", []byte("x"), 0))

	rr := do(t, server, http.MethodPost, "/api/cache/clear", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ClearCacheResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Deleted)
	assert.Equal(t, 1, store.Len())

	rr = do(t, server, http.MethodPost, "/api/cache/clear", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Deleted)
}

func TestProxyInjectsBreadcrumbs(t *testing.T) {
	var sawEncoding string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawEncoding = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Post | Site</title></head><body><main><p>hi</p></main></body></html>`)
	}))
	defer upstream.Close()
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	server, _ := newTestServer(t, target)
	front := httptest.NewServer(server)
	defer front.Close()

	req, err := http.NewRequest(http.MethodGet, front.URL+"/blog/post/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, sawEncoding)
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("main > nav.kspb-breadcrumbs").Length())
	assert.Equal(t, "Post", doc.Find("li.kspb-item").Last().Text())
	assert.Equal(t, 1, doc.Find(`head script[type="application/ld+json"]`).Length())
}

func assertRoute(t *testing.T, h http.Handler, method, path string, wantStatus int, wantContentType string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d (body=%s)", method, path, wantStatus, rr.Code, rr.Body.String())
	}
	if wantContentType != "" {
		if got := rr.Header().Get("Content-Type"); got != wantContentType {
			t.Fatalf("%s %s: expected content-type %s, got %s", method, path, wantContentType, got)
		}
	}
	if rr.Body.Len() == 0 {
		t.Fatalf("%s %s: expected non-empty body", method, path)
	}
}
