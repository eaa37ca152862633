package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"breadcrumbs/internal/config"
	"breadcrumbs/pkg/types"
)

func TestShouldDisplay(t *testing.T) {
	base := config.DefaultSettings()
	base.ShowBreadcrumbsAll = false
	base.PostTypes = []string{"post", "page"}
	base.PostTypeArchives = []string{"product"}
	base.ShowOnTag = false

	cases := []struct {
		name     string
		kind     types.PageKind
		postType string
		mutate   func(*config.Settings)
		want     bool
	}{
		{name: "front page off by default", kind: types.PageFront, want: false},
		{name: "front page enabled", kind: types.PageFront, mutate: func(s *config.Settings) { s.ShowOnFrontPage = true }, want: true},
		{name: "singular listed type", kind: types.PageSingular, postType: "post", want: true},
		{name: "singular unlisted type", kind: types.PageSingular, postType: "event", want: false},
		{name: "post type archive listed", kind: types.PagePostTypeArchive, postType: "product", want: true},
		{name: "post type archive unlisted", kind: types.PagePostTypeArchive, postType: "post", want: false},
		{name: "category", kind: types.PageCategory, want: true},
		{name: "tag disabled", kind: types.PageTag, want: false},
		{name: "date", kind: types.PageDate, want: true},
		{name: "author", kind: types.PageAuthor, want: true},
		{name: "home posts", kind: types.PageHomePosts, want: true},
		{name: "other archive", kind: types.PageArchive, want: false},
		{name: "unknown kind", kind: types.PageOther, want: false},
		{name: "show all overrides", kind: types.PageOther, mutate: func(s *config.Settings) { s.ShowBreadcrumbsAll = true }, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := base.Clone()
			if tc.mutate != nil {
				tc.mutate(&s)
			}
			assert.Equal(t, tc.want, ShouldDisplay(tc.kind, tc.postType, s))
		})
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, types.PageSingular, ParseKind("singular"))
	assert.Equal(t, types.PageOther, ParseKind("bogus"))
	assert.Equal(t, types.PageOther, ParseKind(""))
}
