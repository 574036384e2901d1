// Package qcmodel invokes the content-validation model that compares a
// parsed email preview against the approved copy document and compliance
// rules. The model's reasoning is opaque; only its I/O contract is enforced
// here.
package qcmodel

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tradu/emailqc/internal/model"
)

// KeywordRulePayload is a keyword rule as submitted to the model.
type KeywordRulePayload struct {
	Keyword      string `json:"keyword"`
	RequiredText string `json:"requiredText"`
}

// AdditionalRulePayload is an additional rule as submitted to the model.
type AdditionalRulePayload struct {
	Topic  string `json:"topic"`
	Silo   string `json:"silo"`
	Entity string `json:"entity"`
	Text   string `json:"text"`
	Links  any    `json:"links,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

// Input is the full context handed to the model for one run.
type Input struct {
	Entity           string                  `json:"entity"`
	Silo             string                  `json:"silo"`
	EmailType        string                  `json:"email_type"`
	RiskRules        []string                `json:"risk_rules"`
	DisclaimerRules  []string                `json:"disclaimer_rules"`
	KeywordRules     []KeywordRulePayload    `json:"keyword_rules"`
	AdditionalRules  []AdditionalRulePayload `json:"additional_rules"`
	BrazePreviewURL  string                  `json:"braze_preview_url"`
	ParsedEmail      model.EmailPreview      `json:"parsed_email"`
	RawHTML          string                  `json:"raw_html"`
	CopyDocumentText string                  `json:"copy_document_text"`
}

// OutputCheck is one finding reported by the model.
type OutputCheck struct {
	Type    model.CheckType `json:"type"`
	Name    string          `json:"name"`
	Pass    bool            `json:"pass"`
	Details any             `json:"details,omitempty"`
}

// Output is the model's verdict for one run.
type Output struct {
	SummaryPass  bool          `json:"summary_pass"`
	ModelVersion string        `json:"model_version"`
	Checks       []OutputCheck `json:"checks"`
}

// Validate enforces the output contract: a version tag and well-formed
// checks limited to the model's check-type vocabulary.
func (o *Output) Validate() error {
	if o.ModelVersion == "" {
		return eris.New("qcmodel: output missing model_version")
	}
	for i, check := range o.Checks {
		if check.Name == "" {
			return eris.Errorf("qcmodel: check %d missing name", i)
		}
		if !model.ModelCheckTypes[check.Type] {
			return eris.Errorf("qcmodel: check %d has unexpected type %q", i, check.Type)
		}
	}
	return nil
}

// Client reviews one email QC run. Implementations must return an Output
// that already passed Validate.
type Client interface {
	Review(ctx context.Context, input Input) (*Output, error)
}
