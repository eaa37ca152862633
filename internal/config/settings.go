package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Position values for where breadcrumbs are inserted relative to page content.
const (
	PositionTop    = "top"
	PositionBottom = "bottom"
	PositionBoth   = "both"
)

// Visual pattern class names.
const (
	PatternClassic = "classic"
	PatternModern  = "modern"
	PatternRounded = "rounded"
)

// Settings is the operator-facing option set read by the resolver, renderer, and
// display rules. A resolution pass reads one immutable snapshot.
type Settings struct {
	Position           string   `yaml:"position" json:"position" validate:"oneof=top bottom both"`
	ShowBreadcrumbsAll bool     `yaml:"show_breadcrumbs_all" json:"show_breadcrumbs_all"`
	PostTypes          []string `yaml:"post_types" json:"post_types"`
	PostTypeArchives   []string `yaml:"post_type_archives" json:"post_type_archives"`
	ShowHome           bool     `yaml:"show_home" json:"show_home"`
	HomeText           string   `yaml:"home_text" json:"home_text" validate:"max=200"`
	Separator          string   `yaml:"separator" json:"separator" validate:"max=32"`
	Pattern            string   `yaml:"pattern" json:"pattern" validate:"oneof=classic modern rounded"`
	FontSize           int      `yaml:"font_size" json:"font_size" validate:"min=10,max=24"`
	ShowOnFrontPage    bool     `yaml:"show_on_front_page" json:"show_on_front_page"`
	EnableScraping     bool     `yaml:"enable_scraping" json:"enable_scraping"`
	ShowOnCategory     bool     `yaml:"show_on_category" json:"show_on_category"`
	ShowOnTag          bool     `yaml:"show_on_tag" json:"show_on_tag"`
	ShowOnDate         bool     `yaml:"show_on_date" json:"show_on_date"`
	ShowOnAuthor       bool     `yaml:"show_on_author" json:"show_on_author"`
	ShowOnHomePosts    bool     `yaml:"show_on_home_posts" json:"show_on_home_posts"`
	ShowCreatorCredit  bool     `yaml:"show_creator_credit" json:"show_creator_credit"`
}

// DefaultSettings mirrors the option defaults of a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Position:           PositionTop,
		ShowBreadcrumbsAll: true,
		PostTypes:          []string{},
		PostTypeArchives:   []string{},
		ShowHome:           true,
		HomeText:           "Home",
		Separator:          ">",
		Pattern:            PatternClassic,
		FontSize:           14,
		EnableScraping:     true,
		ShowOnCategory:     true,
		ShowOnTag:          true,
		ShowOnDate:         true,
		ShowOnAuthor:       true,
		ShowOnHomePosts:    true,
	}
}

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks option values against their allowed ranges.
func (s Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate settings: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("settings.%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Clone returns a deep copy safe to hand to a concurrent reader.
func (s Settings) Clone() Settings {
	out := s
	out.PostTypes = append([]string(nil), s.PostTypes...)
	out.PostTypeArchives = append([]string(nil), s.PostTypeArchives...)
	return out
}

// HasPostType reports whether singular views of postType display breadcrumbs.
func (s Settings) HasPostType(postType string) bool {
	return containsFold(s.PostTypes, postType)
}

// HasPostTypeArchive reports whether the listing archive of postType displays breadcrumbs.
func (s Settings) HasPostTypeArchive(postType string) bool {
	return containsFold(s.PostTypeArchives, postType)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func (s *Settings) normalise() {
	s.Position = strings.ToLower(strings.TrimSpace(s.Position))
	s.Pattern = strings.ToLower(strings.TrimSpace(s.Pattern))
	s.HomeText = sanitizeText(s.HomeText)
	s.Separator = sanitizeText(s.Separator)
	if s.PostTypes == nil {
		s.PostTypes = []string{}
	}
	if s.PostTypeArchives == nil {
		s.PostTypeArchives = []string{}
	}
}
