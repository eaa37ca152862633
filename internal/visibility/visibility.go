// Package visibility decides whether breadcrumbs are shown for a page.
package visibility

import (
	"breadcrumbs/internal/config"
	"breadcrumbs/pkg/types"
)

// ShouldDisplay reports whether the resolver should run for a page of the given
// kind. postType names the content type for singular pages and post type
// archives.
func ShouldDisplay(kind types.PageKind, postType string, s config.Settings) bool {
	if s.ShowBreadcrumbsAll {
		return true
	}
	switch kind {
	case types.PageFront:
		return s.ShowOnFrontPage
	case types.PageSingular:
		return s.HasPostType(postType)
	case types.PagePostTypeArchive:
		return s.HasPostTypeArchive(postType)
	case types.PageCategory:
		return s.ShowOnCategory
	case types.PageTag:
		return s.ShowOnTag
	case types.PageDate:
		return s.ShowOnDate
	case types.PageAuthor:
		return s.ShowOnAuthor
	case types.PageHomePosts:
		return s.ShowOnHomePosts
	default:
		return false
	}
}

// ParseKind maps a query value onto a PageKind; unknown values become PageOther.
func ParseKind(raw string) types.PageKind {
	switch k := types.PageKind(raw); k {
	case types.PageFront, types.PageSingular, types.PagePostTypeArchive, types.PageCategory,
		types.PageTag, types.PageDate, types.PageAuthor, types.PageHomePosts, types.PageArchive:
		return k
	default:
		return types.PageOther
	}
}
