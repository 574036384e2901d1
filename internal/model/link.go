package model

// ProbeNote is the closed vocabulary of link verification outcomes.
type ProbeNote string

const (
	NoteNoResponse              ProbeNote = "no_response"
	NoteRedirectMissingLocation ProbeNote = "redirect_missing_location"
	NoteDevDomainDetected       ProbeNote = "dev_domain_detected"
	NoteUnapprovedDomain        ProbeNote = "unapproved_domain"
	NoteHTTPError               ProbeNote = "http_error"
	NoteTooManyRedirects        ProbeNote = "too_many_redirects"
	NoteNonHTTPLink             ProbeNote = "non_http_link"
	NoteInvalidURL              ProbeNote = "invalid_url"
	NoteUnsupportedProtocol     ProbeNote = "unsupported_protocol"
	NoteSkippedMockMode         ProbeNote = "link_check_skipped_mock_mode"
)

// LinkProbeResult is the outcome of verifying a single outbound link.
// URL always carries the original input; FinalURL the last resolved hop.
type LinkProbeResult struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"statusCode,omitempty"`
	OK         bool      `json:"ok"`
	Redirected bool      `json:"redirected,omitempty"`
	FinalURL   string    `json:"finalUrl,omitempty"`
	Notes      ProbeNote `json:"notes,omitempty"`
}
