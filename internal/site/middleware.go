package site

import (
	"bytes"
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"breadcrumbs/internal/config"
	"breadcrumbs/internal/render"
	"breadcrumbs/internal/schema"
	"breadcrumbs/internal/visibility"
	"breadcrumbs/pkg/types"
)

// Upstream pages may classify themselves with these response headers.
const (
	HeaderPageKind = "X-Page-Kind"
	HeaderPostType = "X-Post-Type"
)

// Trails resolves the breadcrumb trail for a request under the settings it reports.
type Trails interface {
	Resolve(ctx context.Context, req types.ResolveRequest) types.Trail
	Settings() config.Settings
}

// InjectOptions configures Inject.
type InjectOptions struct {
	Trails Trails
	// Version is reported in the creator-credit block when it is enabled.
	Version string
	// ContentSelectors are tried in order to find the element that receives the
	// markup.
	ContentSelectors []string
	Logger           *slog.Logger
}

var defaultContentSelectors = []string{"main", "article", "body"}

// Inject wraps next and rewrites successful HTML responses: the rendered trail is
// placed into the page content and its JSON-LD into <head>. Requests from our own
// bot and responses that are not plain, uncompressed HTML pass through untouched.
func Inject(next http.Handler, opts InjectOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.ContentSelectors) == 0 {
		opts.ContentSelectors = defaultContentSelectors
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsBot(r.UserAgent()) || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		rec := &recorder{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(rec, r)

		body := rec.body.Bytes()
		if rec.status == http.StatusOK && isPlainHTML(rec.header) {
			if rewritten, ok := opts.rewrite(r, rec.header, body); ok {
				body = rewritten
				rec.header.Set("Content-Length", strconv.Itoa(len(body)))
			}
		}

		dst := w.Header()
		for k, v := range rec.header {
			dst[k] = v
		}
		w.WriteHeader(rec.status)
		_, _ = w.Write(body)
	})
}

func (o InjectOptions) rewrite(r *http.Request, header http.Header, body []byte) ([]byte, bool) {
	settings := o.Trails.Settings()
	kind := visibility.ParseKind(header.Get(HeaderPageKind))
	postType := header.Get(HeaderPostType)
	if !visibility.ShouldDisplay(kind, postType, settings) {
		return nil, false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		o.Logger.Warn("parse upstream html failed", "path", r.URL.Path, "error", err)
		return nil, false
	}

	trail := o.Trails.Resolve(r.Context(), types.ResolveRequest{
		Path:          r.URL.Path,
		CurrentURL:    requestURL(r),
		DocumentTitle: strings.TrimSpace(doc.Find("title").First().Text()),
		UserAgent:     r.UserAgent(),
		Kind:          kind,
		PostType:      postType,
	})
	if len(trail) == 0 {
		return nil, false
	}

	head := doc.Find("head").First()
	if settings.ShowCreatorCredit {
		if script, err := schema.Script(schema.Credit(o.Version)); err == nil {
			appendNode(head, script)
		}
	}
	script, err := schema.TrailScript(trail)
	if err != nil {
		o.Logger.Warn("build json-ld failed", "path", r.URL.Path, "error", err)
	} else {
		appendNode(head, script)
	}

	if target := o.contentTarget(doc); target != nil {
		opts := render.OptionsFrom(settings)
		switch settings.Position {
		case config.PositionTop:
			prependNode(target, render.Node(trail, opts))
		case config.PositionBottom:
			appendNode(target, render.Node(trail, opts))
		case config.PositionBoth:
			prependNode(target, render.Node(trail, opts))
			appendNode(target, render.Node(trail, opts))
		}
	}

	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		o.Logger.Warn("render rewritten html failed", "path", r.URL.Path, "error", err)
		return nil, false
	}
	return []byte(out), true
}

func (o InjectOptions) contentTarget(doc *goquery.Document) *goquery.Selection {
	for _, sel := range o.ContentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

func appendNode(s *goquery.Selection, n *html.Node) {
	if n == nil || s.Length() == 0 {
		return
	}
	s.AppendNodes(n)
}

func prependNode(s *goquery.Selection, n *html.Node) {
	if n == nil || s.Length() == 0 {
		return
	}
	s.PrependNodes(n)
}

func isPlainHTML(h http.Header) bool {
	if enc := h.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + r.URL.EscapedPath()
}

// recorder buffers a downstream response so it can be rewritten.
type recorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}
