package resolver

import (
	"context"
	"strings"
	"time"

	"breadcrumbs/internal/extract"
	"breadcrumbs/pkg/types"
)

// Crumb is a candidate ancestor whose URL was computed from local data and may not
// match what the site actually serves.
type Crumb struct {
	Title string
	URL   string
	// CategoryLink marks URLs built with the category base, which sites often strip
	// from their public permalinks.
	CategoryLink bool
}

// ResolveChain turns an explicit ancestor chain into a trail. With scraping enabled
// every crumb is probed: a 301/302 with a target replaces the URL, and a missing
// URL (404 or unreachable) is swapped for the URL made of the request path's
// segments at the same depth when that one answers.
func (r *Resolver) ResolveChain(ctx context.Context, req types.ResolveRequest, chain []Crumb) types.Trail {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, cancel := r.begin(ctx)
	defer cancel()

	p := r.newPass(req)
	trail := r.seed()
	for i, c := range chain {
		if len(trail) >= r.maxDepth {
			break
		}
		trail = append(trail, r.verify(ctx, p, c, i+1))
	}
	return r.finish(p, start, trail)
}

func (r *Resolver) verify(ctx context.Context, p *pass, c Crumb, depth int) types.BreadcrumbItem {
	item := types.BreadcrumbItem{Title: c.Title, URL: c.URL}
	if !r.settings.EnableScraping {
		return item
	}

	result := r.prober.Check(ctx, c.URL, p.currentURL)
	status := result.Status
	expected := p.expectedURL(r.domainRoot, depth)

	switch {
	case result.IsRedirect() && result.RedirectTo != "":
		item.URL = result.RedirectTo
	case expected != "" && (result.Missing() || r.baseStripped(c, expected)):
		alt := r.prober.Check(ctx, expected, p.currentURL)
		if alt.Reachable() {
			item.URL = expected
			status = alt.Status
			if alt.IsRedirect() && alt.RedirectTo != "" {
				item.URL = alt.RedirectTo
			}
		}
	}
	p.logger.Debug("chain item verified", "title", c.Title, "computed", c.URL, "url", item.URL, "status", status)
	item.Status = &status
	return item
}

// baseStripped reports a category URL carrying the category base where the request
// path at that depth does not.
func (r *Resolver) baseStripped(c Crumb, expected string) bool {
	if !c.CategoryLink || c.URL == expected {
		return false
	}
	base := "/" + r.categoryBase + "/"
	return strings.Contains(c.URL, base) && !strings.Contains(expected, base)
}

// expectedURL is the URL formed by the first depth request segments.
func (p *pass) expectedURL(domainRoot string, depth int) string {
	if depth <= 0 || depth > len(p.segments) {
		return ""
	}
	return domainRoot + "/" + strings.Join(p.segments[:depth], "/") + "/"
}

// ResolvePage builds the trail of a static page from its parent chain.
func (r *Resolver) ResolvePage(ctx context.Context, req types.ResolveRequest, pagePath string) (types.Trail, bool) {
	page, ok := r.dir.PageByPath(pagePath)
	if !ok {
		return nil, false
	}
	var chain []Crumb
	for _, ancestor := range PageAncestors(r.dir, page.Path, r.maxDepth) {
		chain = append(chain, Crumb{Title: ancestor.Title, URL: r.pageURL(ancestor)})
	}
	chain = append(chain, Crumb{Title: page.Title, URL: r.pageURL(page)})
	return r.ResolveChain(ctx, req, chain), true
}

// ResolveCategory builds the trail of a category archive from its parent chain.
func (r *Resolver) ResolveCategory(ctx context.Context, req types.ResolveRequest, slug string) (types.Trail, bool) {
	if _, ok := r.dir.Category(slug); !ok {
		return nil, false
	}
	return r.ResolveChain(ctx, req, r.categoryCrumbs(slug)), true
}

// ResolvePost builds the trail of a single post filed under categorySlug; the post
// itself is the last crumb and uses the request's own URL.
func (r *Resolver) ResolvePost(ctx context.Context, req types.ResolveRequest, title, categorySlug string) types.Trail {
	segments := types.Segments(req.Path)
	chain := r.categoryCrumbs(categorySlug)
	if title == "" && req.DocumentTitle != "" {
		title = extract.FirstPart(req.DocumentTitle)
	}
	if title == "" && len(segments) > 0 {
		title = FormatSlug(segments[len(segments)-1])
	}
	chain = append(chain, Crumb{Title: title, URL: r.currentURL(req, segments)})
	return r.ResolveChain(ctx, req, chain)
}

func (r *Resolver) categoryCrumbs(slug string) []Crumb {
	ancestors := CategoryAncestors(r.dir, slug, r.maxDepth)
	crumbs := make([]Crumb, 0, len(ancestors))
	for i, cat := range ancestors {
		link := cat.Link
		if link == "" {
			slugs := make([]string, 0, i+1)
			for _, a := range ancestors[:i+1] {
				slugs = append(slugs, a.Slug)
			}
			link = r.homeURL + "/" + r.categoryBase + "/" + strings.Join(slugs, "/") + "/"
		}
		crumbs = append(crumbs, Crumb{Title: cat.Name, URL: link, CategoryLink: true})
	}
	return crumbs
}

func (r *Resolver) pageURL(page Page) string {
	return r.homeURL + strings.TrimRight(page.Path, "/") + "/"
}
