package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"breadcrumbs/internal/cache"
	"breadcrumbs/internal/config"
	"breadcrumbs/internal/metrics"
	"breadcrumbs/internal/render"
	"breadcrumbs/internal/resolver"
	"breadcrumbs/internal/schema"
	"breadcrumbs/internal/site"
	"breadcrumbs/internal/visibility"
	"breadcrumbs/pkg/types"
)

// BuildFunc constructs a resolver for a settings snapshot.
type BuildFunc func(config.Settings) (*resolver.Resolver, error)

// Options wires a Server.
type Options struct {
	Settings config.Settings
	Build    BuildFunc
	Store    cache.Store
	Metrics  *metrics.Metrics
	// Upstream, when set, receives every request no API route matches; its HTML
	// responses get breadcrumbs injected.
	Upstream *url.URL
	Version  string
	Logger   *slog.Logger
}

// Server exposes the breadcrumb API and, optionally, a breadcrumb-injecting proxy.
type Server struct {
	current atomic.Pointer[resolver.Resolver]
	build   BuildFunc
	store   cache.Store
	metrics *metrics.Metrics
	version string
	logger  *slog.Logger
	router  chi.Router
}

// NewServer builds the initial resolver and wires the routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Build == nil {
		return nil, errors.New("api: resolver builder is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r, err := opts.Build(opts.Settings)
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}
	s := &Server{
		build:   opts.Build,
		store:   opts.Store,
		metrics: opts.Metrics,
		version: opts.Version,
		logger:  opts.Logger,
		router:  chi.NewRouter(),
	}
	s.current.Store(r)
	s.routes(opts.Upstream)
	return s, nil
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Resolver returns the resolver serving the current settings.
func (s *Server) Resolver() *resolver.Resolver {
	return s.current.Load()
}

func (s *Server) routes(upstream *url.URL) {
	s.router.Use(chiMiddleware.RequestID)
	s.router.Use(chiMiddleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/openapi.yaml", s.handleOpenAPI)
	s.router.Get("/docs", s.handleDocs)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/breadcrumbs", s.handleBreadcrumbs)
		r.Get("/breadcrumbs/page", s.handlePage)
		r.Get("/breadcrumbs/category/{slug}", s.handleCategory)
		r.Get("/breadcrumbs/preview", s.handlePreview)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
		r.Get("/settings/fields", s.handleFields)
		r.Post("/cache/clear", s.handleClearCache)
	})

	if upstream != nil {
		s.router.NotFound(site.Inject(newProxy(upstream), site.InjectOptions{
			Trails:  trailSource{s},
			Version: s.version,
			Logger:  s.logger,
		}).ServeHTTP)
	}
}

// trailSource reads through whichever resolver is current at request time.
type trailSource struct{ s *Server }

func (t trailSource) Resolve(ctx context.Context, req types.ResolveRequest) types.Trail {
	return t.s.Resolver().Resolve(ctx, req)
}

func (t trailSource) Settings() config.Settings {
	return t.s.Resolver().Settings()
}

// newProxy forwards to upstream and asks for identity encoding so HTML responses
// can be rewritten.
func newProxy(upstream *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Header.Del("Accept-Encoding")
		r.Host = upstream.Host
	}
	return proxy
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	req, err := resolveRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := s.Resolver()
	settings := res.Settings()

	// A request from our own bot is a probe of a page we are rendering.
	if site.IsBot(req.UserAgent) || !visibility.ShouldDisplay(req.Kind, req.PostType, settings) {
		writeSuppressed(w)
		return
	}
	s.writeTrail(w, r, res.Resolve(r.Context(), req), settings)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, err := resolveRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if site.IsBot(req.UserAgent) {
		writeSuppressed(w)
		return
	}
	pagePath := r.URL.Query().Get("page")
	if pagePath == "" {
		pagePath = req.Path
	}
	res := s.Resolver()
	trail, ok := res.ResolvePage(r.Context(), req, pagePath)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown page %q", pagePath), http.StatusNotFound)
		return
	}
	s.writeTrail(w, r, trail, res.Settings())
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	slug, err := url.PathUnescape(chi.URLParam(r, "slug"))
	if err != nil {
		http.Error(w, "invalid category slug", http.StatusBadRequest)
		return
	}
	req, err := resolveRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if site.IsBot(req.UserAgent) {
		writeSuppressed(w)
		return
	}
	res := s.Resolver()
	trail, ok := res.ResolveCategory(r.Context(), req, slug)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown category %q", slug), http.StatusNotFound)
		return
	}
	s.writeTrail(w, r, trail, res.Settings())
}

// writeSuppressed answers with an empty, undisplayed trail.
func writeSuppressed(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, BreadcrumbResponse{Trail: types.Trail{}})
}

// handlePreview renders the sample trail with the current settings overlaid by any
// option present in the query string.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	settings := config.ApplyForm(s.Resolver().Settings(), r.URL.Query())
	if err := settings.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(render.String(site.SampleTrail(settings.HomeText), render.OptionsFrom(settings))))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Resolver().Settings())
}

// handleUpdateSettings takes a full settings form, validates it and swaps in a
// resolver built from the result.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, fmt.Sprintf("invalid form payload: %v", err), http.StatusBadRequest)
		return
	}
	settings := config.SubmitForm(s.Resolver().Settings(), r.PostForm)
	if err := settings.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	next, err := s.build(settings)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.current.Store(next)
	s.logger.Info("settings updated", "request_id", chiMiddleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusOK, next.Settings())
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Fields)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, ClearCacheResponse{})
		return
	}
	deleted, err := cache.ClearAll(r.Context(), s.store)
	if err != nil {
		s.logger.Error("clear cache failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("cache cleared", "deleted", deleted)
	writeJSON(w, http.StatusOK, ClearCacheResponse{Deleted: deleted})
}

func (s *Server) writeTrail(w http.ResponseWriter, r *http.Request, trail types.Trail, settings config.Settings) {
	if trail == nil {
		trail = types.Trail{}
	}
	resp := BreadcrumbResponse{Trail: trail, Displayed: true}
	if len(trail) > 0 {
		resp.HTML = render.String(trail, render.OptionsFrom(settings))
		list := schema.FromTrail(trail)
		resp.JSONLD = &list
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(resp.HTML))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveRequest reads the per-request inputs from the query string and headers.
func resolveRequest(r *http.Request) (types.ResolveRequest, error) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		return types.ResolveRequest{}, errors.New("path query parameter is required")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ua := q.Get("user_agent")
	if ua == "" {
		ua = r.UserAgent()
	}
	return types.ResolveRequest{
		Path:          path,
		CurrentURL:    q.Get("current_url"),
		DocumentTitle: q.Get("document_title"),
		UserAgent:     ua,
		Kind:          visibility.ParseKind(q.Get("kind")),
		PostType:      q.Get("post_type"),
	}, nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
