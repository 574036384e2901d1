package model

// CTA is a call-to-action anchor with visible label text and a destination.
type CTA struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// EmailPreview is the structured content extracted from a rendered email.
// Built once per parse and not mutated afterwards.
type EmailPreview struct {
	Subject        string   `json:"subject,omitempty"`
	Preheader      string   `json:"preheader,omitempty"`
	BodyParagraphs []string `json:"bodyParagraphs"`
	CTAs           []CTA    `json:"ctas"`
	Links          []string `json:"links"`
}

// CopyDocLink is a link asserted by the approved copy document.
type CopyDocLink struct {
	Href  string `json:"href"`
	Label string `json:"label"`
}
