// Package progress maps a run's stage and elapsed time to the completion
// percentage surfaced to polling clients.
package progress

import (
	"time"

	"github.com/tradu/emailqc/internal/model"
)

// Stages is the ordered processing sequence. A run advances through it
// monotonically or jumps straight to failed.
var Stages = []model.RunStage{
	model.RunStageQueued,
	model.RunStageFetchingPreview,
	model.RunStageParsingPreview,
	model.RunStageLoadingRules,
	model.RunStageRunningModel,
	model.RunStageCheckingLinks,
	model.RunStageSavingResults,
	model.RunStageCompleted,
}

// StageMeta describes a stage for display alongside the polled status.
type StageMeta struct {
	Stage       model.RunStage `json:"stage"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
}

var stageMeta = map[model.RunStage]StageMeta{
	model.RunStageQueued:          {model.RunStageQueued, "Queued", "Preparing to kick off this QC run."},
	model.RunStageFetchingPreview: {model.RunStageFetchingPreview, "Capturing preview", "Fetching the Braze preview to inspect what actually shipped."},
	model.RunStageParsingPreview:  {model.RunStageParsingPreview, "Parsing email", "Breaking the HTML into subject, preheader, body copy, CTAs, and links."},
	model.RunStageLoadingRules:    {model.RunStageLoadingRules, "Loading guardrails", "Pulling the latest risk, keyword, and disclaimer rules for this silo/entity combo."},
	model.RunStageRunningModel:    {model.RunStageRunningModel, "Comparing copy", "Comparing preview content against the approved copy doc line by line."},
	model.RunStageCheckingLinks:   {model.RunStageCheckingLinks, "Following links", "Testing every link for redirects, status codes, and domain matches."},
	model.RunStageSavingResults:   {model.RunStageSavingResults, "Packaging report", "Compiling findings so everything can be reviewed in one place."},
	model.RunStageCompleted:       {model.RunStageCompleted, "Ready for review", "QC run is complete. All checks and links are available."},
	model.RunStageFailed:          {model.RunStageFailed, "Run failed", "Something prevented this QC run from finishing."},
}

// Meta returns display metadata for a stage. Unknown stages fall back to the
// queued entry.
func Meta(stage model.RunStage) StageMeta {
	if m, ok := stageMeta[stage]; ok {
		return m
	}
	return stageMeta[model.RunStageQueued]
}

// stageDuration caps the elapsed-time share of the progress scale.
const stageDuration = 30 * time.Second

// StageIndex returns the ordinal of a stage within the sequence. Failed maps
// past the end; unknown stages map to zero.
func StageIndex(stage model.RunStage) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	if stage == model.RunStageFailed {
		return len(Stages)
	}
	return 0
}

// StageProgress yields a 0-100 completion value. 80% of the scale is the
// stage's ordinal fraction of the sequence; the remaining 20% grows linearly
// with elapsed time up to stageDuration. Terminal stages always report 100.
func StageProgress(stage model.RunStage, elapsed time.Duration) int {
	if stage == model.RunStageFailed || stage == model.RunStageCompleted {
		return 100
	}

	total := len(Stages) - 1
	if total <= 0 {
		return 0
	}

	base := float64(StageIndex(stage)) / float64(total) * 80
	timePart := float64(elapsed) / float64(stageDuration) * 20
	if timePart > 20 {
		timePart = 20
	}
	if timePart < 0 {
		timePart = 0
	}

	p := int(base + timePart + 0.5)
	if p > 100 {
		p = 100
	}
	return p
}
