package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradu/emailqc/internal/model"
)

func TestMatchesPattern(t *testing.T) {
	cases := []struct {
		link      string
		pattern   string
		matchType model.MatchType
		want      bool
	}{
		{"https://www.tradu.com/cfd", "tradu.com", model.MatchContains, true},
		{"https://www.tradu.com/cfd", "TRADU.COM", model.MatchContains, true},
		{"https://www.tradu.com/cfd", "https://www.tradu.com", model.MatchStartsWith, true},
		{"https://www.tradu.com/cfd", "/cfd", model.MatchEndsWith, true},
		{"https://www.tradu.com/cfd", "https://www.tradu.com/cfd", model.MatchExact, true},
		{"https://www.tradu.com/cfd", "https://www.tradu.com/fx", model.MatchExact, false},
		{"https://other.com", "tradu.com", model.MatchContains, false},
	}
	for _, tc := range cases {
		got := matchesPattern(tc.link, tc.pattern, tc.matchType)
		assert.Equal(t, tc.want, got, "%s %s %s", tc.link, tc.matchType, tc.pattern)
	}
}

func TestEvaluateLinkRules(t *testing.T) {
	rules := []model.LinkRule{
		{ID: "r1", Kind: "risk_disclosure", HrefPattern: "/risk", MatchType: model.MatchEndsWith, Active: true},
		{ID: "r2", Kind: "unsubscribe", HrefPattern: "unsubscribe", Active: true},
		{ID: "r3", Kind: "terms", HrefPattern: "/terms", MatchType: model.MatchEndsWith, Active: true},
		{ID: "r4", Kind: "inactive", HrefPattern: "whatever", Active: false},
		{ID: "r5", Kind: "blank", HrefPattern: "   ", Active: true},
	}
	links := []string{
		"  https://www.tradu.com/risk  ",
		"https://email.tradu.com/unsubscribe?uid=1",
	}

	result := EvaluateLinkRules(rules, links)

	require.Len(t, result.Matched, 2)
	assert.Equal(t, "r1", result.Matched[0].RuleID)
	assert.Equal(t, "https://www.tradu.com/risk", result.Matched[0].MatchedURL)
	assert.Equal(t, "r2", result.Matched[1].RuleID)
	// An empty match type defaults to contains.
	assert.Equal(t, model.MatchContains, result.Matched[1].MatchType)

	require.Len(t, result.Missing, 1)
	assert.Equal(t, "r3", result.Missing[0].RuleID)
}

func TestEvaluateLinkRules_NoRules(t *testing.T) {
	result := EvaluateLinkRules(nil, []string{"https://www.tradu.com"})
	assert.Empty(t, result.Matched)
	assert.Empty(t, result.Missing)
	assert.NotNil(t, result.Matched)
	assert.NotNil(t, result.Missing)
}

func TestNormalizeHref(t *testing.T) {
	cases := []struct {
		in     string
		base   string
		search string
		ok     bool
	}{
		{"https://www.tradu.com/cfd/", "https://www.tradu.com/cfd", "", true},
		{"HTTPS://WWW.TRADU.COM/CFD", "https://www.tradu.com/cfd", "", true},
		{"https://www.tradu.com", "https://www.tradu.com/", "", true},
		{"https://www.tradu.com/cfd?a=1", "https://www.tradu.com/cfd", "?a=1", true},
		{"/promo/march/", "/promo/march", "", true},
		{"/promo#section", "/promo", "", true},
		{"   ", "", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeHref(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		if !ok {
			continue
		}
		assert.Equal(t, tc.base, got.Base, tc.in)
		assert.Equal(t, tc.base+tc.search, got.WithSearch, tc.in)
	}
}

func TestEvaluateCopyDocCoverage(t *testing.T) {
	copyDocLinks := []model.CopyDocLink{
		{Href: "https://www.tradu.com/cfd/", Label: "CFD page"},
		{Href: "https://www.tradu.com/promo?code=MAR26", Label: "March promo"},
		{Href: "https://www.tradu.com/missing", Label: "Not in email"},
	}
	emailLinks := []string{
		"https://www.tradu.com/cfd",
		"https://www.tradu.com/promo?code=mar26",
	}

	result := EvaluateCopyDocCoverage(copyDocLinks, emailLinks)

	require.Len(t, result.Matched, 2)
	assert.Equal(t, "CFD page", result.Matched[0].Label)
	assert.Equal(t, "https://www.tradu.com/cfd", result.Matched[0].MatchedURL)
	assert.Equal(t, "March promo", result.Matched[1].Label)

	require.Len(t, result.Missing, 1)
	assert.Equal(t, "Not in email", result.Missing[0].Label)
}

func TestEvaluateCopyDocCoverage_QueryFallsBackToBase(t *testing.T) {
	// A copy doc link with tracking params still matches the email link
	// sharing its base form.
	copyDocLinks := []model.CopyDocLink{
		{Href: "https://www.tradu.com/cfd?utm_source=doc", Label: "CFD"},
	}
	emailLinks := []string{"https://www.tradu.com/cfd"}

	result := EvaluateCopyDocCoverage(copyDocLinks, emailLinks)
	require.Len(t, result.Matched, 1)
	assert.Empty(t, result.Missing)
}

func TestEvaluateCopyDocCoverage_Empty(t *testing.T) {
	result := EvaluateCopyDocCoverage(nil, []string{"https://www.tradu.com"})
	assert.Empty(t, result.Matched)
	assert.Empty(t, result.Missing)
}
