// Package store persists QC runs and serves read-only compliance rule
// queries behind a single interface with SQLite and Postgres backends.
package store

import (
	"context"
	"time"

	"github.com/tradu/emailqc/internal/model"
)

// NewRun carries the validated submission payload for run creation.
type NewRun struct {
	Name         string              `json:"name,omitempty"`
	BrazeURL     string              `json:"brazeUrl"`
	CopyDocText  string              `json:"copyDocText"`
	CopyDocHTML  string              `json:"copyDocHtml,omitempty"`
	CopyDocLinks []model.CopyDocLink `json:"copyDocLinks,omitempty"`
	Silo         string              `json:"silo"`
	Entity       string              `json:"entity"`
	EmailType    string              `json:"emailType"`
}

// RunResult is everything written atomically when a run completes.
type RunResult struct {
	SummaryPass  bool
	ModelVersion string
	Checks       []model.CheckResult
	Links        []model.LinkProbeResult
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Silo     string     `json:"silo,omitempty"`
	Entity   string     `json:"entity,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Page     int        `json:"page,omitempty"`
	PageSize int        `json:"pageSize,omitempty"`
}

// Store defines persistence for the QC pipeline. Rule tables are read-only
// to the core; their contents are owned by the external rule store.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, submission NewRun) (*model.QcRun, error)
	UpdateRunStage(ctx context.Context, runID string, stage model.RunStage) error
	FinalizeRun(ctx context.Context, runID string, result RunResult) error
	FailRun(ctx context.Context, runID string, diagnostic model.CheckResult) error
	UpdateRunName(ctx context.Context, runID, name string) (*model.QcRun, error)
	GetRun(ctx context.Context, runID string) (*model.QcRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.QcRun, int, error)

	// Rules
	RiskRules(ctx context.Context, entity, silo string) ([]model.RiskRule, error)
	DisclaimerRules(ctx context.Context, entity, silo, emailType string) ([]model.DisclaimerRule, error)
	KeywordRules(ctx context.Context) ([]model.KeywordRule, error)
	AdditionalRules(ctx context.Context, entity, silo string) ([]model.AdditionalRule, error)
	LinkRules(ctx context.Context, entity, silo, emailType string) ([]model.LinkRule, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Seed(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: not found" }
