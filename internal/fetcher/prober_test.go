package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breadcrumbs/internal/cache"
	"breadcrumbs/internal/config"
	"breadcrumbs/pkg/types"
)

func newStatusCache(t *testing.T) *cache.StatusCache {
	t.Helper()
	store, err := cache.NewMemoryStore(0, nil)
	require.NoError(t, err)
	return cache.NewStatusCache(store, time.Hour)
}

func TestProberSelfCheckSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(ProberOptions{Client: srv.Client(), Statuses: newStatusCache(t)})
	got := p.Check(context.Background(), srv.URL+"/about/", srv.URL+"/about")
	assert.Equal(t, types.ProbeResult{Status: http.StatusOK}, got)
	assert.Zero(t, hits.Load())
}

func TestProberReportsRawRedirectAndCaches(t *testing.T) {
	var hits atomic.Int32
	var gotUA, gotMethod atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotUA.Store(r.UserAgent())
		gotMethod.Store(r.Method)
		http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	opts := ProberOptionsFromConfig(config.Default().Probe)
	opts.Statuses = newStatusCache(t)
	p := NewProber(opts)

	ctx := context.Background()
	got := p.Check(ctx, srv.URL+"/old/", srv.URL+"/")
	assert.Equal(t, types.ProbeResult{Status: 301, RedirectTo: srv.URL + "/new/"}, got)
	assert.Equal(t, config.DefaultUserAgent, gotUA.Load())
	assert.Equal(t, http.MethodHead, gotMethod.Load())

	again := p.Check(ctx, srv.URL+"/old/", srv.URL+"/")
	assert.Equal(t, got, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProberAcceptsSelfSignedCertificates(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p := NewProber(ProberOptionsFromConfig(config.Default().Probe))
	got := p.Check(context.Background(), srv.URL+"/", "")
	assert.Equal(t, http.StatusOK, got.Status)
}

func TestProberNetworkFailureIsCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL + "/gone/"
	srv.Close()

	statuses := newStatusCache(t)
	p := NewProber(ProberOptions{Statuses: statuses})
	got := p.Check(context.Background(), target, "")
	assert.Equal(t, types.ProbeResult{}, got)

	cached, ok := statuses.Get(context.Background(), target)
	require.True(t, ok)
	assert.Zero(t, cached.Status)
}

func TestProberCancelledContextIsNotCached(t *testing.T) {
	statuses := newStatusCache(t)
	p := NewProber(ProberOptions{Statuses: statuses})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := p.Check(ctx, "http://example.invalid/", "")
	assert.Zero(t, got.Status)
	_, ok := statuses.Get(context.Background(), "http://example.invalid/")
	assert.False(t, ok)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestProberRetriesNetworkFailures(t *testing.T) {
	var calls atomic.Int32
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: http.NoBody, Request: r}, nil
	})}

	p := NewProber(ProberOptions{Client: client, MaxRetries: 2, RetryBackoff: time.Millisecond})
	got := p.Check(context.Background(), "https://example.com/a/", "")
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	p = NewProber(ProberOptions{Client: client})
	got = p.Check(context.Background(), "https://example.com/b/", "")
	assert.Zero(t, got.Status, "no retries by default")
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolveLocation(t *testing.T) {
	base := mustParse(t, "https://example.com/a/b/")
	assert.Equal(t, "https://example.com/new/", resolveLocation(base, "/new/"))
	assert.Equal(t, "https://example.com/new", resolveLocation(base, "new"))
	assert.Equal(t, "https://other.test/x", resolveLocation(base, "https://other.test/x"))
}

func TestSameURL(t *testing.T) {
	assert.True(t, SameURL("https://x/a/", "https://x/a"))
	assert.True(t, SameURL("https://x/a", "https://x/a"))
	assert.False(t, SameURL("https://x/a", "https://x/b"))
	assert.False(t, SameURL("", ""))
}
