package types

import (
	"net/url"
	"strings"
)

// BreadcrumbItem is a single entry of a resolved trail.
type BreadcrumbItem struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Position int    `json:"position"`
	// Status is the HTTP status observed by the prober, when the item was probed.
	Status *int `json:"status,omitempty"`
}

// Trail is the ordered breadcrumb sequence for one page.
type Trail []BreadcrumbItem

// Renumber rewrites positions so they are contiguous starting at 1.
func (t Trail) Renumber() Trail {
	for i := range t {
		t[i].Position = i + 1
	}
	return t
}

// Truncate keeps at most max leading items.
func (t Trail) Truncate(max int) Trail {
	if max <= 0 || len(t) <= max {
		return t
	}
	return t[:max]
}

// ProbeResult is the outcome of an existence check against a URL.
type ProbeResult struct {
	// Status is 0 on network failure, otherwise the HTTP status code.
	Status     int    `json:"status"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// Reachable reports whether the probed URL answered 200 or a redirect.
func (p ProbeResult) Reachable() bool {
	return p.Status == 200 || p.IsRedirect()
}

// IsRedirect reports a 301/302 answer.
func (p ProbeResult) IsRedirect() bool {
	return p.Status == 301 || p.Status == 302
}

// Missing reports a 404 or an unknown (network failure) outcome.
func (p ProbeResult) Missing() bool {
	return p.Status == 404 || p.Status == 0
}

// PageKind classifies the page being rendered for visibility decisions.
type PageKind string

const (
	PageFront           PageKind = "front_page"
	PageSingular        PageKind = "singular"
	PagePostTypeArchive PageKind = "post_type_archive"
	PageCategory        PageKind = "category"
	PageTag             PageKind = "tag"
	PageDate            PageKind = "date"
	PageAuthor          PageKind = "author"
	PageHomePosts       PageKind = "home_posts"
	PageArchive         PageKind = "archive"
	PageOther           PageKind = "other"
)

// ResolveRequest carries the per-request inputs that a host would otherwise read
// from its request environment.
type ResolveRequest struct {
	// Path is the request path, e.g. /blog/2024/post/.
	Path string `json:"path"`
	// CurrentURL is the absolute URL of the page being rendered. Derived from the
	// site root and Path when empty.
	CurrentURL string `json:"current_url,omitempty"`
	// DocumentTitle is the host's own title for the current page, if known.
	DocumentTitle string   `json:"document_title,omitempty"`
	UserAgent     string   `json:"user_agent,omitempty"`
	Kind          PageKind `json:"kind,omitempty"`
	// PostType names the content type for singular pages and post type archives.
	PostType string `json:"post_type,omitempty"`
}

// Segments splits a request path into its non-empty, still percent-encoded
// components. A query string or fragment is ignored.
func Segments(path string) []string {
	if u, err := url.Parse(path); err == nil {
		path = u.EscapedPath()
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		segments = append(segments, p)
	}
	return segments
}
