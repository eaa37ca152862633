package config

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// FieldKind identifies the input control of an option.
type FieldKind string

const (
	FieldSelect        FieldKind = "select"
	FieldNumber        FieldKind = "number"
	FieldText          FieldKind = "text"
	FieldCheckbox      FieldKind = "checkbox"
	FieldCheckboxGroup FieldKind = "checkbox_group"
)

// Field describes one operator-editable option and how raw form input is sanitised
// into Settings.
type Field struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Kind    FieldKind `json:"type"`
	Options []string  `json:"options,omitempty"`
	Min     int       `json:"min,omitempty"`
	Max     int       `json:"max,omitempty"`

	apply func(s *Settings, raw []string)
}

// Fields is the option table. Order matches the settings form.
var Fields = []Field{
	selectField("position", "Breadcrumb Position", []string{PositionTop, PositionBottom, PositionBoth}, func(s *Settings) *string { return &s.Position }),
	selectField("pattern", "Breadcrumb Pattern", []string{PatternClassic, PatternModern, PatternRounded}, func(s *Settings) *string { return &s.Pattern }),
	numberField("font_size", "Font Size (px)", 10, 24, func(s *Settings) *int { return &s.FontSize }),
	textField("home_text", "Home Text", func(s *Settings) *string { return &s.HomeText }),
	textField("separator", "Separator", func(s *Settings) *string { return &s.Separator }),
	checkboxField("show_home", "Show Home Link", func(s *Settings) *bool { return &s.ShowHome }),
	checkboxField("enable_scraping", "Enable Title Scraping", func(s *Settings) *bool { return &s.EnableScraping }),
	checkboxField("show_breadcrumbs_all", "Show On All Pages", func(s *Settings) *bool { return &s.ShowBreadcrumbsAll }),
	checkboxField("show_on_front_page", "Show On Front Page", func(s *Settings) *bool { return &s.ShowOnFrontPage }),
	checkboxField("show_on_category", "Show On Category Archives", func(s *Settings) *bool { return &s.ShowOnCategory }),
	checkboxField("show_on_tag", "Show On Tag Archives", func(s *Settings) *bool { return &s.ShowOnTag }),
	checkboxField("show_on_date", "Show On Date Archives", func(s *Settings) *bool { return &s.ShowOnDate }),
	checkboxField("show_on_author", "Show On Author Archives", func(s *Settings) *bool { return &s.ShowOnAuthor }),
	checkboxField("show_on_home_posts", "Show On Posts Page", func(s *Settings) *bool { return &s.ShowOnHomePosts }),
	checkboxField("show_creator_credit", "Show Creator Credit", func(s *Settings) *bool { return &s.ShowCreatorCredit }),
	groupField("post_types", "Post Types", func(s *Settings) *[]string { return &s.PostTypes }),
	groupField("post_type_archives", "Post Type Archives", func(s *Settings) *[]string { return &s.PostTypeArchives }),
}

// LookupField returns the descriptor for name.
func LookupField(name string) (Field, bool) {
	for _, f := range Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ApplyForm overlays the fields present in values onto base. Absent fields keep
// their base value; values outside a field's allowed set are ignored.
func ApplyForm(base Settings, values url.Values) Settings {
	out := base.Clone()
	for _, f := range Fields {
		raw, ok := values[f.Name]
		if !ok {
			// checkbox groups are also submitted as name[]
			raw, ok = values[f.Name+"[]"]
		}
		if !ok {
			continue
		}
		f.apply(&out, raw)
	}
	return out
}

// SubmitForm applies a full form submission onto base: unchecked checkboxes and
// empty checkbox groups are absent from the payload and therefore switch off.
func SubmitForm(base Settings, values url.Values) Settings {
	out := ApplyForm(base, values)
	for _, f := range Fields {
		if _, ok := values[f.Name]; ok {
			continue
		}
		if _, ok := values[f.Name+"[]"]; ok {
			continue
		}
		switch f.Kind {
		case FieldCheckbox, FieldCheckboxGroup:
			f.apply(&out, nil)
		}
	}
	return out
}

func selectField(name, label string, options []string, target func(*Settings) *string) Field {
	return Field{
		Name:    name,
		Label:   label,
		Kind:    FieldSelect,
		Options: options,
		apply: func(s *Settings, raw []string) {
			if len(raw) == 0 {
				return
			}
			v := strings.ToLower(strings.TrimSpace(raw[0]))
			if slices.Contains(options, v) {
				*target(s) = v
			}
		},
	}
}

func numberField(name, label string, lo, hi int, target func(*Settings) *int) Field {
	return Field{
		Name:  name,
		Label: label,
		Kind:  FieldNumber,
		Min:   lo,
		Max:   hi,
		apply: func(s *Settings, raw []string) {
			if len(raw) == 0 {
				return
			}
			n, err := strconv.Atoi(strings.TrimSpace(raw[0]))
			if err != nil {
				return
			}
			if n < 0 {
				n = -n
			}
			*target(s) = min(max(n, lo), hi)
		},
	}
}

func textField(name, label string, target func(*Settings) *string) Field {
	return Field{
		Name:  name,
		Label: label,
		Kind:  FieldText,
		apply: func(s *Settings, raw []string) {
			if len(raw) == 0 {
				return
			}
			*target(s) = sanitizeText(raw[0])
		},
	}
}

func checkboxField(name, label string, target func(*Settings) *bool) Field {
	return Field{
		Name:  name,
		Label: label,
		Kind:  FieldCheckbox,
		apply: func(s *Settings, raw []string) {
			if len(raw) == 0 {
				*target(s) = false
				return
			}
			switch strings.ToLower(strings.TrimSpace(raw[0])) {
			case "", "0", "false", "off", "no":
				*target(s) = false
			default:
				*target(s) = true
			}
		},
	}
}

func groupField(name, label string, target func(*Settings) *[]string) Field {
	return Field{
		Name:  name,
		Label: label,
		Kind:  FieldCheckboxGroup,
		apply: func(s *Settings, raw []string) {
			var parts []string
			for _, r := range raw {
				parts = append(parts, strings.Split(r, ",")...)
			}
			cleaned := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = sanitizeKey(p); p != "" {
					cleaned = append(cleaned, p)
				}
			}
			*target(s) = dedupeLower(cleaned)
		},
	}
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
	keyPattern   = regexp.MustCompile(`[^a-z0-9_\-]`)
)

// sanitizeText strips markup and collapses whitespace.
func sanitizeText(v string) string {
	v = tagPattern.ReplaceAllString(v, "")
	v = spacePattern.ReplaceAllString(v, " ")
	return strings.TrimSpace(v)
}

func sanitizeKey(v string) string {
	return keyPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(v)), "")
}
