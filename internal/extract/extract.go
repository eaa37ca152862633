// Package extract pulls a human-readable title out of raw page markup.
package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// TitleSeparators are tried in order; the first one present in a <title> splits it.
var TitleSeparators = []string{"|", "-", "–", "—", ":", "»", "·"}

// DocumentSeparators split a host-supplied document title for the current page.
var DocumentSeparators = []string{"|", "-", "–", "—", "»"}

const minTitleLen = 3

// Title returns the best-effort title of an HTML document: the <title> with any
// site-name suffix removed, then og:title, then the first <h1>. Malformed markup
// yields ("", false).
func Title(html []byte) (string, bool) {
	if len(bytes.TrimSpace(html)) == 0 {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", false
	}
	return FromDocument(doc)
}

// FromDocument runs the title cascade over an already parsed document.
func FromDocument(doc *goquery.Document) (string, bool) {
	if sel := doc.Find("title").First(); sel.Length() > 0 {
		title := splitTitle(collapse(sel.Text()))
		if acceptable(title) {
			return title, true
		}
	}

	if content, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		og := strings.TrimSpace(content)
		if acceptable(og) {
			return og, true
		}
	}

	if sel := doc.Find("h1").First(); sel.Length() > 0 {
		h1 := collapse(sel.Text())
		if acceptable(h1) {
			return h1, true
		}
	}
	return "", false
}

// splitTitle cuts a "Page | Site" style title at the first separator present,
// preferring the left part unless it is too short to be meaningful.
func splitTitle(title string) string {
	for _, sep := range TitleSeparators {
		if !strings.Contains(title, sep) {
			continue
		}
		parts := strings.Split(title, sep)
		left := strings.TrimSpace(parts[0])
		if utf8.RuneCountInString(left) < minTitleLen && len(parts) > 1 {
			return strings.TrimSpace(parts[1])
		}
		return left
	}
	return title
}

// FirstPart cuts a document title at the first separator present, in
// DocumentSeparators order, and returns the trimmed left part. An empty left part
// moves on to the next separator; with no usable split the collapsed title is
// returned.
func FirstPart(title string) string {
	title = collapse(title)
	for _, sep := range DocumentSeparators {
		left, _, found := strings.Cut(title, sep)
		if !found {
			continue
		}
		if left = strings.TrimSpace(left); left != "" {
			return left
		}
	}
	return title
}

func acceptable(v string) bool {
	return utf8.RuneCountInString(v) >= minTitleLen
}

func collapse(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
