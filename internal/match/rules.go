// Package match evaluates declarative link rules and copy-document link
// coverage against the link set resolved from an email.
package match

import (
	"strings"

	"github.com/tradu/emailqc/internal/model"
)

// RuleMatch records a link rule satisfied by an email link.
type RuleMatch struct {
	RuleID      string          `json:"ruleId"`
	Kind        string          `json:"kind"`
	HrefPattern string          `json:"hrefPattern"`
	MatchType   model.MatchType `json:"matchType"`
	MatchedURL  string          `json:"matchedUrl"`
}

// RuleMiss records a link rule no email link satisfied.
type RuleMiss struct {
	RuleID      string          `json:"ruleId"`
	Kind        string          `json:"kind"`
	HrefPattern string          `json:"hrefPattern"`
	MatchType   model.MatchType `json:"matchType"`
}

// RuleResult is the outcome of evaluating link rules, preserving rule
// declaration order within each set.
type RuleResult struct {
	Matched []RuleMatch `json:"matched"`
	Missing []RuleMiss  `json:"missing"`
}

func matchesPattern(link, pattern string, matchType model.MatchType) bool {
	value := strings.ToLower(link)
	matcher := strings.ToLower(pattern)

	switch matchType {
	case model.MatchStartsWith:
		return strings.HasPrefix(value, matcher)
	case model.MatchEndsWith:
		return strings.HasSuffix(value, matcher)
	case model.MatchExact:
		return value == matcher
	default:
		return strings.Contains(value, matcher)
	}
}

// EvaluateLinkRules tests every active rule against the email links. The
// first matching link satisfies a rule; there is no multiplicity tracking.
func EvaluateLinkRules(rules []model.LinkRule, emailLinks []string) RuleResult {
	cleaned := make([]string, 0, len(emailLinks))
	for _, href := range emailLinks {
		if trimmed := strings.TrimSpace(href); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}

	result := RuleResult{Matched: []RuleMatch{}, Missing: []RuleMiss{}}

	for _, rule := range rules {
		if !rule.Active {
			continue
		}

		matchType := rule.MatchType
		if matchType == "" {
			matchType = model.MatchContains
		}

		pattern := strings.TrimSpace(rule.HrefPattern)
		if pattern == "" {
			continue
		}

		matchedURL := ""
		for _, link := range cleaned {
			if matchesPattern(link, pattern, matchType) {
				matchedURL = link
				break
			}
		}

		if matchedURL != "" {
			result.Matched = append(result.Matched, RuleMatch{
				RuleID:      rule.ID,
				Kind:        rule.Kind,
				HrefPattern: pattern,
				MatchType:   matchType,
				MatchedURL:  matchedURL,
			})
		} else {
			result.Missing = append(result.Missing, RuleMiss{
				RuleID:      rule.ID,
				Kind:        rule.Kind,
				HrefPattern: pattern,
				MatchType:   matchType,
			})
		}
	}

	return result
}
