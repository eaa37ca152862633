package api

import (
	"breadcrumbs/internal/schema"
	"breadcrumbs/pkg/types"
)

// BreadcrumbResponse is the payload of the breadcrumb endpoints.
type BreadcrumbResponse struct {
	Trail     types.Trail            `json:"trail"`
	// Displayed is false when visibility rules or the bot guard suppressed the trail.
	Displayed bool                   `json:"displayed"`
	HTML      string                 `json:"html,omitempty"`
	JSONLD    *schema.BreadcrumbList `json:"json_ld,omitempty"`
}

// ClearCacheResponse reports how many cache entries were removed.
type ClearCacheResponse struct {
	Deleted int `json:"deleted"`
}
