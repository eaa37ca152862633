package resolver

import (
	"strings"

	"breadcrumbs/internal/config"
)

// Page is a static page known to the site.
type Page struct {
	Path      string
	Title     string
	Parent    string
	Published bool
}

// ContentType is a registered content type that may expose a listing archive.
type ContentType struct {
	Name       string
	Label      string
	Slug       string
	HasArchive bool
}

// Taxonomy is a registered taxonomy with a listing slug.
type Taxonomy struct {
	Name  string
	Label string
	Slug  string
}

// Category is one node of the category tree.
type Category struct {
	Slug   string
	Name   string
	Parent string
	Link   string
}

// Directory answers the resolver's internal entity lookups.
type Directory interface {
	// PageByPath looks a page up by its full path, e.g. "/about/team".
	PageByPath(path string) (Page, bool)
	ContentTypes() []ContentType
	Taxonomies() []Taxonomy
	Category(slug string) (Category, bool)
}

// StaticDirectory is a Directory built once from configuration.
type StaticDirectory struct {
	pages        map[string]Page
	contentTypes []ContentType
	taxonomies   []Taxonomy
	categories   map[string]Category
}

// NewStaticDirectory indexes the entities listed in the site section.
func NewStaticDirectory(site config.SiteConfig) *StaticDirectory {
	d := &StaticDirectory{
		pages:      make(map[string]Page, len(site.Pages)),
		categories: make(map[string]Category, len(site.Categories)),
	}
	for _, p := range site.Pages {
		d.pages[normalisePath(p.Path)] = Page{
			Path:      normalisePath(p.Path),
			Title:     p.Title,
			Parent:    p.Parent,
			Published: !p.Draft,
		}
	}
	for _, ct := range site.ContentTypes {
		d.contentTypes = append(d.contentTypes, ContentType{
			Name:       ct.Name,
			Label:      ct.Label,
			Slug:       ct.Slug,
			HasArchive: ct.HasArchive,
		})
	}
	for _, tx := range site.Taxonomies {
		d.taxonomies = append(d.taxonomies, Taxonomy{Name: tx.Name, Label: tx.Label, Slug: tx.Slug})
	}
	for _, c := range site.Categories {
		d.categories[c.Slug] = Category{Slug: c.Slug, Name: c.Name, Parent: c.Parent, Link: c.Link}
	}
	return d
}

func (d *StaticDirectory) PageByPath(path string) (Page, bool) {
	p, ok := d.pages[normalisePath(path)]
	return p, ok
}

func (d *StaticDirectory) ContentTypes() []ContentType {
	return d.contentTypes
}

func (d *StaticDirectory) Taxonomies() []Taxonomy {
	return d.taxonomies
}

func (d *StaticDirectory) Category(slug string) (Category, bool) {
	c, ok := d.categories[slug]
	return c, ok
}

func normalisePath(p string) string {
	return "/" + strings.Trim(p, "/")
}

// PageAncestors returns the parent chain of the page at path, root first and
// excluding the page itself. Parent cycles end the walk; only the first limit
// entries are kept.
func PageAncestors(dir Directory, path string, limit int) []Page {
	var chain []Page
	seen := map[string]struct{}{normalisePath(path): {}}
	page, ok := dir.PageByPath(path)
	for ok && page.Parent != "" {
		parentPath := normalisePath(page.Parent)
		if _, loop := seen[parentPath]; loop {
			break
		}
		seen[parentPath] = struct{}{}
		page, ok = dir.PageByPath(parentPath)
		if ok {
			chain = append(chain, page)
		}
	}
	reverse(chain)
	return truncate(chain, limit)
}

// CategoryAncestors returns the category chain ending at slug, root first, keeping
// at most limit entries.
func CategoryAncestors(dir Directory, slug string, limit int) []Category {
	var chain []Category
	seen := map[string]struct{}{}
	for slug != "" {
		if _, loop := seen[slug]; loop {
			break
		}
		seen[slug] = struct{}{}
		cat, ok := dir.Category(slug)
		if !ok {
			break
		}
		chain = append(chain, cat)
		slug = cat.Parent
	}
	reverse(chain)
	return truncate(chain, limit)
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
