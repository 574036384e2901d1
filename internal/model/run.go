package model

import "time"

// RunStage represents the current processing stage of a QC run.
type RunStage string

const (
	RunStageQueued          RunStage = "queued"
	RunStageFetchingPreview RunStage = "fetching_preview"
	RunStageParsingPreview  RunStage = "parsing_preview"
	RunStageLoadingRules    RunStage = "loading_rules"
	RunStageRunningModel    RunStage = "running_model"
	RunStageCheckingLinks   RunStage = "checking_links"
	RunStageSavingResults   RunStage = "saving_results"
	RunStageCompleted       RunStage = "completed"
	RunStageFailed          RunStage = "failed"
)

// Terminal reports whether the stage is a final state.
func (s RunStage) Terminal() bool {
	return s == RunStageCompleted || s == RunStageFailed
}

// CheckType classifies a single QC check result.
type CheckType string

const (
	CheckTypeContentMismatch    CheckType = "content_mismatch"
	CheckTypeSubjectPreheader   CheckType = "subject_preheader"
	CheckTypeDisclaimer         CheckType = "disclaimer"
	CheckTypeKeywordDisclaimer  CheckType = "keyword_disclaimer"
	CheckTypeLinkRequirement    CheckType = "link_requirement"
	CheckTypeSystemNotice       CheckType = "system_notice"
	CheckTypeFetchFailure       CheckType = "fetch_failure"
)

// ModelCheckTypes are the check types the content-validation model may emit.
var ModelCheckTypes = map[CheckType]bool{
	CheckTypeContentMismatch:   true,
	CheckTypeSubjectPreheader:  true,
	CheckTypeDisclaimer:        true,
	CheckTypeKeywordDisclaimer: true,
}

// CheckResult is a single pass/fail finding attached to a run.
// Details holds any JSON-compatible value and is persisted verbatim.
type CheckResult struct {
	ID      string    `json:"id,omitempty"`
	Type    CheckType `json:"type"`
	Name    string    `json:"name"`
	Pass    bool      `json:"pass"`
	Details any       `json:"details,omitempty"`
}

// QcRun is one audit of a marketing email against compliance rules and the
// approved copy document. Mutated only by the pipeline; terminal once the
// stage reaches completed or failed.
type QcRun struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Status       RunStage          `json:"status"`
	BrazeURL     string            `json:"brazeUrl"`
	CopyDocText  string            `json:"copyDocText"`
	CopyDocHTML  string            `json:"copyDocHtml,omitempty"`
	CopyDocLinks []CopyDocLink     `json:"copyDocLinks,omitempty"`
	Silo         string            `json:"silo"`
	Entity       string            `json:"entity"`
	EmailType    string            `json:"emailType"`
	SummaryPass  *bool             `json:"summaryPass,omitempty"`
	ModelVersion string            `json:"modelVersion,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	FinishedAt   *time.Time        `json:"finishedAt,omitempty"`
	Checks       []CheckResult     `json:"checks,omitempty"`
	Links        []LinkProbeResult `json:"links,omitempty"`
}

// EmailTypes enumerates the accepted email type values.
var EmailTypes = map[string]bool{
	"marketing":     true,
	"transactional": true,
}
