// Package site places rendered breadcrumbs into host pages.
package site

import (
	"strings"

	"breadcrumbs/internal/config"
	"breadcrumbs/pkg/types"
)

// IsBot reports a request made by our own prober or scraper. Such requests must not
// trigger breadcrumb generation, or a self-probe would recurse.
func IsBot(userAgent string) bool {
	return strings.Contains(userAgent, config.BotMarker)
}

// Insert places markup before, after, or around content. Unknown positions leave
// content untouched.
func Insert(content, markup, position string) string {
	if markup == "" {
		return content
	}
	switch position {
	case config.PositionTop:
		return markup + content
	case config.PositionBottom:
		return content + markup
	case config.PositionBoth:
		return markup + content + markup
	default:
		return content
	}
}

// SampleTrail is a fixed four-level trail used to preview display settings.
func SampleTrail(homeText string) types.Trail {
	if homeText == "" {
		homeText = "Home"
	}
	return types.Trail{
		{Title: homeText, URL: "#", Position: 1},
		{Title: "Parent Page", URL: "#", Position: 2},
		{Title: "Child Page", URL: "#", Position: 3},
		{Title: "Grandchild Page", URL: "#", Position: 4},
	}
}
