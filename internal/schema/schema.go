// Package schema serialises breadcrumb trails as schema.org JSON-LD.
package schema

import (
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"breadcrumbs/pkg/types"
)

const schemaContext = "https://schema.org"

// ListItem is one element of a BreadcrumbList.
type ListItem struct {
	Type     string `json:"@type"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Item     string `json:"item,omitempty"`
}

// BreadcrumbList is the schema.org BreadcrumbList object.
type BreadcrumbList struct {
	Context         string     `json:"@context"`
	Type            string     `json:"@type"`
	ItemListElement []ListItem `json:"itemListElement"`
}

// SoftwareApplication credits the software that produced the markup.
type SoftwareApplication struct {
	Context             string `json:"@context"`
	Type                string `json:"@type"`
	Name                string `json:"name"`
	ApplicationCategory string `json:"applicationCategory"`
	SoftwareVersion     string `json:"softwareVersion,omitempty"`
	URL                 string `json:"url,omitempty"`
}

// FromTrail maps each trail item to a ListItem, keeping its position.
func FromTrail(trail types.Trail) BreadcrumbList {
	items := make([]ListItem, 0, len(trail))
	for _, item := range trail {
		items = append(items, ListItem{
			Type:     "ListItem",
			Position: item.Position,
			Name:     item.Title,
			Item:     item.URL,
		})
	}
	return BreadcrumbList{Context: schemaContext, Type: "BreadcrumbList", ItemListElement: items}
}

// Credit describes this software for the optional creator-credit block.
func Credit(version string) SoftwareApplication {
	return SoftwareApplication{
		Context:             schemaContext,
		Type:                "SoftwareApplication",
		Name:                "KSPB Breadcrumbs",
		ApplicationCategory: "WebApplication",
		SoftwareVersion:     version,
	}
}

// Script wraps v in a <script type="application/ld+json"> element.
func Script(v any) (*html.Node, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json-ld: %w", err)
	}
	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "type", Val: "application/ld+json"}},
	}
	// encoding/json escapes <, > and & so the payload cannot close the script element.
	script.AppendChild(&html.Node{Type: html.TextNode, Data: string(data)})
	return script, nil
}

// TrailScript is Script(FromTrail(trail)); an empty trail yields nil.
func TrailScript(trail types.Trail) (*html.Node, error) {
	if len(trail) == 0 {
		return nil, nil
	}
	return Script(FromTrail(trail))
}
