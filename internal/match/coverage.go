package match

import (
	"net/url"
	"strings"

	"github.com/tradu/emailqc/internal/model"
)

// NormalizedHref holds the comparison forms of a link. Base drops the query;
// WithSearch keeps it. Both are lower-cased with trailing path slashes
// stripped, for comparison only; reported values stay verbatim.
type NormalizedHref struct {
	Base       string
	WithSearch string
}

// NormalizeHref derives the comparison forms of an href. Returns false for
// values with nothing comparable left after trimming.
func NormalizeHref(value string) (NormalizedHref, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return NormalizedHref{}, false
	}

	parsed, err := url.Parse(trimmed)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		path := strings.TrimRight(parsed.EscapedPath(), "/")
		if path == "" {
			path = "/"
		}
		base := strings.ToLower(parsed.Scheme + "://" + parsed.Host + path)
		search := ""
		if parsed.RawQuery != "" {
			search = strings.ToLower("?" + parsed.RawQuery)
		}
		return NormalizedHref{Base: base, WithSearch: base + search}, true
	}

	// Relative or otherwise unparseable hrefs: strip the fragment, split off
	// the query, and compare the remaining path form.
	withoutHash := strings.TrimSpace(strings.SplitN(trimmed, "#", 2)[0])
	pathPart, searchPart, hasSearch := strings.Cut(withoutHash, "?")
	base := strings.ToLower(strings.TrimRight(pathPart, "/"))
	if base == "" && strings.HasPrefix(trimmed, "/") {
		base = "/"
	}
	search := ""
	if hasSearch && searchPart != "" {
		search = "?" + strings.ToLower(searchPart)
	}
	if base == "" && search == "" {
		return NormalizedHref{}, false
	}
	return NormalizedHref{Base: base, WithSearch: base + search}, true
}

// CoverageMatch records a copy-doc link found in the email, carrying the
// email URL that satisfied it.
type CoverageMatch struct {
	Href       string `json:"href"`
	Label      string `json:"label"`
	MatchedURL string `json:"matchedUrl"`
}

// CoverageResult is the outcome of copy-doc link coverage matching.
type CoverageResult struct {
	Matched []CoverageMatch     `json:"matched"`
	Missing []model.CopyDocLink `json:"missing"`
}

// EvaluateCopyDocCoverage compares links asserted by the copy document
// against links actually present in the email. Trailing slashes are
// insignificant; query strings distinguish links only when both sides carry
// one.
func EvaluateCopyDocCoverage(copyDocLinks []model.CopyDocLink, emailLinks []string) CoverageResult {
	result := CoverageResult{Matched: []CoverageMatch{}, Missing: []model.CopyDocLink{}}
	if len(copyDocLinks) == 0 {
		return result
	}

	// First-writer-wins lookup of both normalized forms.
	emailByForm := map[string]string{}
	insert := func(key, href string) {
		if key == "" {
			return
		}
		if _, exists := emailByForm[key]; !exists {
			emailByForm[key] = href
		}
	}
	for _, href := range emailLinks {
		normalized, ok := NormalizeHref(href)
		if !ok {
			continue
		}
		insert(normalized.WithSearch, href)
		insert(normalized.Base, href)
	}

	for _, link := range copyDocLinks {
		normalized, ok := NormalizeHref(link.Href)
		if !ok {
			continue
		}

		emailHref, found := emailByForm[normalized.WithSearch]
		if !found {
			emailHref, found = emailByForm[normalized.Base]
		}

		if found {
			result.Matched = append(result.Matched, CoverageMatch{
				Href:       link.Href,
				Label:      link.Label,
				MatchedURL: emailHref,
			})
		} else {
			result.Missing = append(result.Missing, link)
		}
	}

	return result
}
