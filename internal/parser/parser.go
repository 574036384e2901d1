// Package parser extracts structured content from rendered email HTML:
// subject, preheader, body paragraphs, CTAs, and the raw outbound link set.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tradu/emailqc/internal/model"
)

// linkAttrs are checked in priority order on every element; all qualifying
// values are collected so a real destination survives a tracking-pixel href.
var linkAttrs = []string{"href", "data-href", "data-url", "data-saferedirecturl"}

// ignoredLinkTags are structural elements whose href-like attributes are not
// outbound email links.
var ignoredLinkTags = map[string]bool{
	"base":   true,
	"link":   true,
	"meta":   true,
	"script": true,
	"style":  true,
}

// Parse extracts an EmailPreview from arbitrary email HTML. It never fails on
// malformed markup; fields degrade to empty values instead.
func Parse(html string) model.EmailPreview {
	htmlToParse := html
	var embeddedSubject string
	var hasEmbedded bool

	if inline, ok := extractInlineMessage(html); ok {
		htmlToParse = inline.body
		embeddedSubject = inline.subject
		hasEmbedded = true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlToParse))
	if err != nil {
		return model.EmailPreview{BodyParagraphs: []string{}, CTAs: []model.CTA{}, Links: []string{}}
	}

	doc.Find("script, style, noscript, svg").Remove()

	preview := model.EmailPreview{
		Subject:        extractSubject(doc),
		Preheader:      extractPreheader(doc),
		BodyParagraphs: extractBodyParagraphs(doc),
		CTAs:           extractCTAs(doc),
		Links:          extractLinks(doc),
	}

	if hasEmbedded && embeddedSubject != "" {
		preview.Subject = collapseWhitespace(embeddedSubject)
	}

	return preview
}

func collapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func extractSubject(doc *goquery.Document) string {
	for _, sel := range []string{
		"meta[name='subject']",
		"meta[name='og:title']",
		"meta[property='og:title']",
	} {
		if content, ok := doc.Find(sel).Attr("content"); ok {
			if cleaned := collapseWhitespace(content); cleaned != "" {
				return cleaned
			}
		}
	}

	return collapseWhitespace(doc.Find("title").First().Text())
}

// hiddenStyleMarkers identify inline styles that visually hide an element.
// Preheaders are conventionally hidden text at the top of the body.
var hiddenStyleMarkers = []string{
	"display:none",
	"opacity:0",
	"visibility:hidden",
	"max-height:0",
	"font-size:1px",
}

func isHiddenStyle(style string) bool {
	compact := strings.ReplaceAll(strings.ToLower(style), " ", "")
	for _, marker := range hiddenStyleMarkers {
		if strings.Contains(compact, marker) {
			return true
		}
	}
	return false
}

func extractPreheader(doc *goquery.Document) string {
	for _, sel := range []string{"meta[name='preheader']", "meta[name='preview_text']"} {
		if content, ok := doc.Find(sel).Attr("content"); ok {
			if cleaned := collapseWhitespace(content); cleaned != "" {
				return cleaned
			}
		}
	}

	var preheader string
	doc.Find("body *[style]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if !isHiddenStyle(style) {
			return true
		}
		text := collapseWhitespace(s.Text())
		if len(text) > 5 && len(text) < 200 {
			preheader = text
			return false
		}
		return true
	})

	return preheader
}

func extractBodyParagraphs(doc *goquery.Document) []string {
	paragraphs := []string{}
	seen := map[string]bool{}

	doc.Find("body").Find("p, li, td, span, div").Each(func(_ int, s *goquery.Selection) {
		// Skip containers with nested blocks so the same text is not captured
		// at multiple levels, unless the container is a paragraph element.
		if s.Find("p, li, td, span, div").Length() > 0 && !s.Is("p") {
			return
		}

		text := collapseWhitespace(s.Text())
		if len(text) < 2 || seen[text] {
			return
		}

		seen[text] = true
		paragraphs = append(paragraphs, text)
	})

	return paragraphs
}

func extractCTAs(doc *goquery.Document) []model.CTA {
	ctas := []model.CTA{}
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}

		label := collapseWhitespace(s.Text())
		if label == "" {
			return
		}

		key := label + "::" + href
		if seen[key] {
			return
		}

		seen[key] = true
		ctas = append(ctas, model.CTA{Label: label, Href: href})
	})

	return ctas
}

func extractLinks(doc *goquery.Document) []string {
	links := []string{}
	seen := map[string]bool{}

	doc.Find("[href], [data-href], [data-url], [data-saferedirecturl]").Each(func(_ int, s *goquery.Selection) {
		if len(s.Nodes) > 0 && ignoredLinkTags[strings.ToLower(s.Nodes[0].Data)] {
			return
		}

		for _, attr := range linkAttrs {
			value := strings.TrimSpace(s.AttrOr(attr, ""))
			if value == "" {
				continue
			}
			if strings.HasPrefix(strings.ToLower(value), "javascript:") {
				continue
			}
			if seen[value] {
				continue
			}
			seen[value] = true
			links = append(links, value)
		}
	})

	return links
}
