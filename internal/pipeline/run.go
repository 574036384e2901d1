// Package pipeline orchestrates the staged processing of a QC run: preview
// fetch, email parsing, rule loading, model review, link verification, and
// result persistence.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tradu/emailqc/internal/copydoc"
	"github.com/tradu/emailqc/internal/linkcheck"
	"github.com/tradu/emailqc/internal/match"
	"github.com/tradu/emailqc/internal/model"
	"github.com/tradu/emailqc/internal/parser"
	"github.com/tradu/emailqc/internal/preview"
	"github.com/tradu/emailqc/internal/store"
	"github.com/tradu/emailqc/pkg/qcmodel"
)

// PreviewFetcher retrieves rendered preview HTML for a run.
type PreviewFetcher interface {
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// LinkChecker probes a set of URLs and reports per-link verdicts.
type LinkChecker interface {
	CheckAll(ctx context.Context, urls []string) []model.LinkProbeResult
}

// Job carries everything needed to process one accepted run. Preview links
// come from the submission, not the stored run: the dashboard fetches the
// Braze preview client-side and submits the links it saw.
type Job struct {
	RunID             string
	BrazeURL          string
	CopyDocText       string
	CopyDocHTML       string
	CopyDocLinks      []model.CopyDocLink
	EmailPreviewLinks []string
	Silo              string
	Entity            string
	EmailType         string
}

// Pipeline drives a QC run through its stages.
type Pipeline struct {
	store     store.Store
	fetcher   PreviewFetcher
	checker   LinkChecker
	model     qcmodel.Client
	mockModel bool
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, fetcher PreviewFetcher, checker LinkChecker, modelClient qcmodel.Client, mockModel bool) *Pipeline {
	return &Pipeline{
		store:     st,
		fetcher:   fetcher,
		checker:   checker,
		model:     modelClient,
		mockModel: mockModel,
	}
}

// Process executes the full stage sequence for a run. Preview fetch failures
// degrade to a fallback rendering of the copy document; any other failure
// marks the run failed with a single diagnostic check.
func (p *Pipeline) Process(ctx context.Context, job Job) error {
	log := zap.L().With(zap.String("run_id", job.RunID), zap.String("entity", job.Entity), zap.String("silo", job.Silo))
	log.Info("pipeline: starting run")

	if err := p.process(ctx, job, log); err != nil {
		log.Error("pipeline: run failed", zap.Error(err))
		diagnostic := model.CheckResult{
			Type:    model.CheckTypeSystemNotice,
			Name:    "Run failed",
			Pass:    false,
			Details: describeRunError(err),
		}
		if failErr := p.store.FailRun(ctx, job.RunID, diagnostic); failErr != nil {
			log.Error("pipeline: failed to record run failure", zap.Error(failErr))
		}
		return err
	}

	log.Info("pipeline: run complete")
	return nil
}

func (p *Pipeline) process(ctx context.Context, job Job, log *zap.Logger) error {
	setStage := func(stage model.RunStage) {
		if err := p.store.UpdateRunStage(ctx, job.RunID, stage); err != nil {
			log.Warn("pipeline: failed to update stage", zap.String("stage", string(stage)), zap.Error(err))
		}
	}

	var additionalChecks []model.CheckResult

	setStage(model.RunStageFetchingPreview)
	html, err := p.fetcher.Fetch(ctx, job.BrazeURL)
	if err != nil {
		log.Warn("pipeline: preview fetch failed, using copy document fallback", zap.Error(err))
		html = copydoc.FallbackPreviewHTML(job.CopyDocText, job.CopyDocHTML)
		additionalChecks = append(additionalChecks, previewFallbackCheck(p.mockModel, err))
	}

	setStage(model.RunStageParsingPreview)
	parsedEmail := parser.Parse(html)
	emailLinks := MergeLinks(parsedEmail.Links, job.EmailPreviewLinks)

	setStage(model.RunStageLoadingRules)
	rules, err := p.loadRules(ctx, job)
	if err != nil {
		return err
	}

	setStage(model.RunStageRunningModel)
	verdict, err := p.model.Review(ctx, qcmodel.Input{
		Entity:           job.Entity,
		Silo:             job.Silo,
		EmailType:        job.EmailType,
		RiskRules:        ruleTexts(rules.risk),
		DisclaimerRules:  disclaimerTexts(rules.disclaimer),
		KeywordRules:     keywordPayloads(rules.keyword),
		AdditionalRules:  additionalPayloads(rules.additional),
		BrazePreviewURL:  job.BrazeURL,
		ParsedEmail:      parsedEmail,
		RawHTML:          html,
		CopyDocumentText: job.CopyDocText,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: model review")
	}

	if p.mockModel {
		additionalChecks = append(additionalChecks, model.CheckResult{
			Type:    model.CheckTypeDisclaimer,
			Name:    "Mock QC mode",
			Pass:    true,
			Details: "QC model ran in mock mode; results are generated locally for development.",
		})
	}

	setStage(model.RunStageCheckingLinks)
	var linkResults []model.LinkProbeResult
	if p.mockModel {
		linkResults = skippedLinkResults(emailLinks)
	} else {
		linkResults = p.checker.CheckAll(ctx, emailLinks)
	}

	if len(rules.link) > 0 {
		requirement := match.EvaluateLinkRules(rules.link, emailLinks)
		additionalChecks = append(additionalChecks, model.CheckResult{
			Type: model.CheckTypeLinkRequirement,
			Name: "Link requirements",
			Pass: len(requirement.Missing) == 0,
			Details: map[string]any{
				"evaluated": len(rules.link),
				"matched":   requirement.Matched,
				"missing":   requirement.Missing,
			},
		})
	}

	if len(job.CopyDocLinks) > 0 {
		coverage := match.EvaluateCopyDocCoverage(job.CopyDocLinks, emailLinks)
		additionalChecks = append(additionalChecks, model.CheckResult{
			Type: model.CheckTypeLinkRequirement,
			Name: "Copy doc link coverage",
			Pass: len(coverage.Missing) == 0,
			Details: map[string]any{
				"copyDocLinks": len(job.CopyDocLinks),
				"matched":      coverage.Matched,
				"missing":      coverage.Missing,
			},
		})
	}

	setStage(model.RunStageSavingResults)
	checks := make([]model.CheckResult, 0, len(verdict.Checks)+len(additionalChecks))
	for _, check := range verdict.Checks {
		checks = append(checks, model.CheckResult{
			Type:    check.Type,
			Name:    check.Name,
			Pass:    check.Pass,
			Details: check.Details,
		})
	}
	checks = append(checks, additionalChecks...)

	err = p.store.FinalizeRun(ctx, job.RunID, store.RunResult{
		SummaryPass:  verdict.SummaryPass,
		ModelVersion: verdict.ModelVersion,
		Checks:       checks,
		Links:        linkResults,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: save results")
	}

	return nil
}

// loadedRules bundles every rule set consulted during a run.
type loadedRules struct {
	risk       []model.RiskRule
	disclaimer []model.DisclaimerRule
	keyword    []model.KeywordRule
	additional []model.AdditionalRule
	link       []model.LinkRule
}

func (p *Pipeline) loadRules(ctx context.Context, job Job) (*loadedRules, error) {
	rules := &loadedRules{}
	var err error

	if rules.risk, err = p.store.RiskRules(ctx, job.Entity, job.Silo); err != nil {
		return nil, eris.Wrap(err, "pipeline: load risk rules")
	}
	if rules.disclaimer, err = p.store.DisclaimerRules(ctx, job.Entity, job.Silo, job.EmailType); err != nil {
		return nil, eris.Wrap(err, "pipeline: load disclaimer rules")
	}
	if rules.keyword, err = p.store.KeywordRules(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: load keyword rules")
	}
	if rules.additional, err = p.store.AdditionalRules(ctx, job.Entity, job.Silo); err != nil {
		return nil, eris.Wrap(err, "pipeline: load additional rules")
	}
	if rules.link, err = p.store.LinkRules(ctx, job.Entity, job.Silo, job.EmailType); err != nil {
		return nil, eris.Wrap(err, "pipeline: load link rules")
	}

	return rules, nil
}

// MergeLinks combines parsed preview links with submitted preview links,
// trimming whitespace and keeping first-seen order without duplicates.
func MergeLinks(primary, secondary []string) []string {
	seen := map[string]bool{}
	merged := make([]string, 0, len(primary)+len(secondary))
	for _, href := range append(append([]string{}, primary...), secondary...) {
		trimmed := strings.TrimSpace(href)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		merged = append(merged, trimmed)
	}
	return merged
}

func previewFallbackCheck(mockModel bool, fetchErr error) model.CheckResult {
	if mockModel {
		return model.CheckResult{
			Type:    model.CheckTypeSystemNotice,
			Name:    "Preview fallback",
			Pass:    false,
			Details: "Braze preview could not be fetched. Generated fallback HTML from the copy document instead.",
		}
	}
	return model.CheckResult{
		Type:    model.CheckTypeFetchFailure,
		Name:    "Preview fetch failed",
		Pass:    false,
		Details: fmt.Sprintf("Failed to load Braze preview: %s", fetchErr.Error()),
	}
}

func skippedLinkResults(urls []string) []model.LinkProbeResult {
	results := make([]model.LinkProbeResult, 0, len(urls))
	for _, href := range urls {
		results = append(results, model.LinkProbeResult{
			URL:   href,
			OK:    true,
			Notes: model.NoteSkippedMockMode,
		})
	}
	return results
}

func describeRunError(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func ruleTexts(rules []model.RiskRule) []string {
	texts := make([]string, 0, len(rules))
	for _, r := range rules {
		texts = append(texts, r.Text)
	}
	return texts
}

func disclaimerTexts(rules []model.DisclaimerRule) []string {
	texts := make([]string, 0, len(rules))
	for _, r := range rules {
		texts = append(texts, r.Text)
	}
	return texts
}

func keywordPayloads(rules []model.KeywordRule) []qcmodel.KeywordRulePayload {
	payloads := make([]qcmodel.KeywordRulePayload, 0, len(rules))
	for _, r := range rules {
		payloads = append(payloads, qcmodel.KeywordRulePayload{
			Keyword:      r.Keyword,
			RequiredText: r.RequiredText,
		})
	}
	return payloads
}

func additionalPayloads(rules []model.AdditionalRule) []qcmodel.AdditionalRulePayload {
	payloads := make([]qcmodel.AdditionalRulePayload, 0, len(rules))
	for _, r := range rules {
		payloads = append(payloads, qcmodel.AdditionalRulePayload{
			Topic:  r.Topic,
			Silo:   r.Silo,
			Entity: r.Entity,
			Text:   r.Text,
			Links:  r.Links,
			Notes:  r.Notes,
		})
	}
	return payloads
}

// interface conformance
var (
	_ PreviewFetcher = (*preview.Fetcher)(nil)
	_ LinkChecker    = (*linkcheck.Checker)(nil)
)
