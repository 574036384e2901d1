// Package copydoc handles the approved copy document: link extraction from
// its HTML rendition and the fallback preview synthesized from it when the
// real email preview cannot be fetched.
package copydoc

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tradu/emailqc/internal/model"
)

// ExtractLinksFromHTML pulls every anchor with a non-empty href out of
// copy-doc HTML. Malformed HTML yields an empty set.
func ExtractLinksFromHTML(docHTML string) []model.CopyDocLink {
	if strings.TrimSpace(docHTML) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + docHTML + "</body>"))
	if err != nil {
		return nil
	}

	var links []model.CopyDocLink
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		links = append(links, model.CopyDocLink{
			Href:  href,
			Label: strings.TrimSpace(s.Text()),
		})
	})

	return links
}

// SanitizeLinks trims hrefs and labels and drops entries without an href.
func SanitizeLinks(links []model.CopyDocLink) []model.CopyDocLink {
	cleaned := make([]model.CopyDocLink, 0, len(links))
	for _, link := range links {
		href := strings.TrimSpace(link.Href)
		if href == "" {
			continue
		}
		cleaned = append(cleaned, model.CopyDocLink{
			Href:  href,
			Label: strings.TrimSpace(link.Label),
		})
	}
	return cleaned
}

// FallbackPreviewHTML synthesizes an HTML document from the copy document so
// a run can continue when the real preview cannot be fetched. Raw copy-doc
// HTML is preferred; otherwise the plain text is split into paragraphs.
func FallbackPreviewHTML(copyDocText, copyDocHTML string) string {
	const head = `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>Fallback preview</title></head><body>`
	const tail = `</body></html>`

	if trimmed := strings.TrimSpace(copyDocHTML); trimmed != "" {
		return head + trimmed + tail
	}

	var paragraphs []string
	for _, segment := range splitParagraphs(copyDocText) {
		paragraphs = append(paragraphs, "<p>"+html.EscapeString(segment)+"</p>")
	}

	body := "<p>(No preview content available)</p>"
	if len(paragraphs) > 0 {
		body = strings.Join(paragraphs, "\n")
	}

	return head + body + tail
}

// splitParagraphs breaks plain text on blank lines.
func splitParagraphs(text string) []string {
	var segments []string
	current := []string{}

	flush := func() {
		joined := strings.TrimSpace(strings.Join(current, "\n"))
		if joined != "" {
			segments = append(segments, joined)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return segments
}
