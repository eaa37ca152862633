// Package render turns a breadcrumb trail into navigation markup.
package render

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"breadcrumbs/internal/config"
	"breadcrumbs/pkg/types"
)

const (
	homeIcon   = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="#1976d2" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M3 12L12 3l9 9"/><path d="M9 21V9h6v12"/></svg>`
	folderIcon = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="#ff9800" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M3 7h5l2 3h11v9a2 2 0 0 1-2 2H5a2 2 0 0 1-2-2V7z"/></svg>`
	pageIcon   = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="#43a047" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><rect x="4" y="4" width="16" height="16" rx="2"/><line x1="8" y1="8" x2="16" y2="8"/><line x1="8" y1="12" x2="16" y2="12"/><line x1="8" y1="16" x2="12" y2="16"/></svg>`
)

// AriaLabel names the navigation landmark.
const AriaLabel = "Breadcrumb"

// Options are the display settings the markup depends on.
type Options struct {
	Separator string
	Pattern   string
	FontSize  int
}

// OptionsFrom picks the display options out of a settings snapshot.
func OptionsFrom(s config.Settings) Options {
	return Options{Separator: s.Separator, Pattern: s.Pattern, FontSize: s.FontSize}
}

func (o Options) withDefaults() Options {
	if o.Separator == "" {
		o.Separator = ">"
	}
	switch o.Pattern {
	case config.PatternClassic, config.PatternModern, config.PatternRounded:
	default:
		o.Pattern = config.PatternClassic
	}
	if o.FontSize < 10 || o.FontSize > 24 {
		o.FontSize = 14
	}
	return o
}

// Node builds the nav element for trail. An empty trail yields nil.
func Node(trail types.Trail, opts Options) *html.Node {
	if len(trail) == 0 {
		return nil
	}
	opts = opts.withDefaults()

	nav := element(atom.Nav,
		html.Attribute{Key: "class", Val: "kspb-breadcrumbs " + opts.Pattern},
		html.Attribute{Key: "aria-label", Val: AriaLabel},
		html.Attribute{Key: "style", Val: "font-size:" + strconv.Itoa(opts.FontSize) + "px;"},
	)
	list := element(atom.Ol, html.Attribute{Key: "class", Val: "kspb-list"})
	nav.AppendChild(list)

	for i, item := range trail {
		list.AppendChild(itemNode(item, iconFor(i, len(trail)), opts.Separator, i == len(trail)-1))
	}
	return nav
}

// String renders trail to markup. An empty trail yields "".
func String(trail types.Trail, opts Options) string {
	n := Node(trail, opts)
	if n == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

func itemNode(item types.BreadcrumbItem, icon, separator string, last bool) *html.Node {
	li := element(atom.Li, html.Attribute{Key: "class", Val: "kspb-item"})

	iconSpan := element(atom.Span, html.Attribute{Key: "class", Val: "kspb-icon"})
	for _, n := range parseIcon(icon) {
		iconSpan.AppendChild(n)
	}
	li.AppendChild(iconSpan)

	if href, ok := safeHref(item.URL); ok {
		a := element(atom.A, html.Attribute{Key: "href", Val: href})
		a.AppendChild(text(item.Title))
		li.AppendChild(a)
	} else {
		span := element(atom.Span, html.Attribute{Key: "class", Val: "kspb-nolink"})
		span.AppendChild(text(item.Title))
		li.AppendChild(span)
	}

	if !last {
		sep := element(atom.Span, html.Attribute{Key: "class", Val: "kspb-separator"})
		sep.AppendChild(text(separator))
		li.AppendChild(sep)
	}
	return li
}

func iconFor(index, total int) string {
	switch {
	case index == 0:
		return homeIcon
	case index == total-1:
		return pageIcon
	default:
		return folderIcon
	}
}

// parseIcon yields fresh nodes on every call; a node can only have one parent.
func parseIcon(svg string) []*html.Node {
	ctx := &html.Node{Type: html.ElementNode, Data: "span", DataAtom: atom.Span}
	nodes, err := html.ParseFragment(strings.NewReader(svg), ctx)
	if err != nil {
		return nil
	}
	return nodes
}

// safeHref rejects empty URLs and schemes that could execute script.
func safeHref(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return raw, true
	default:
		return "", false
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a, Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
