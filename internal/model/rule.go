package model

// MatchType selects how a link rule pattern is tested against an email link.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchExact      MatchType = "exact"
)

// LinkRule requires a link matching HrefPattern to be present in the email.
// A nil-equivalent (empty) Silo applies the rule to every silo.
type LinkRule struct {
	ID          string    `json:"id"`
	Entity      string    `json:"entity"`
	Silo        string    `json:"silo,omitempty"`
	EmailType   string    `json:"emailType"`
	Kind        string    `json:"kind"`
	MatchType   MatchType `json:"matchType"`
	HrefPattern string    `json:"hrefPattern"`
	Active      bool      `json:"active"`
}

// RiskRule is a required risk warning for an entity/silo combination.
type RiskRule struct {
	ID         string `json:"id"`
	Entity     string `json:"entity"`
	SiloFilter string `json:"siloFilter,omitempty"`
	Text       string `json:"text"`
	Active     bool   `json:"active"`
}

// DisclaimerRule is a required disclaimer for an entity/silo/email type.
type DisclaimerRule struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Silo      string `json:"silo,omitempty"`
	EmailType string `json:"emailType"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	Active    bool   `json:"active"`
}

// KeywordRule demands RequiredText whenever Keyword appears in the email.
type KeywordRule struct {
	ID           string `json:"id"`
	Keyword      string `json:"keyword"`
	RequiredText string `json:"requiredText"`
	Active       bool   `json:"active"`
}

// AdditionalRule is a free-form compliance requirement scoped to a topic.
type AdditionalRule struct {
	ID     string `json:"id"`
	Topic  string `json:"topic"`
	Silo   string `json:"silo"`
	Entity string `json:"entity"`
	Text   string `json:"text"`
	Links  any    `json:"links,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Active bool   `json:"active"`
}
