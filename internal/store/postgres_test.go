package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradu/emailqc/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM qc_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO qc_runs`).
		WithArgs(pgxmock.AnyArg(), nil, "queued",
			"https://dashboard.braze.eu/preview/abc123", "Trade CFDs with Tradu.", nil,
			pgxmock.AnyArg(), "CFD", "UK", "marketing", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), NewRun{
		BrazeURL:    "https://dashboard.braze.eu/preview/abc123",
		CopyDocText: "Trade CFDs with Tradu.",
		Silo:        "CFD",
		Entity:      "UK",
		EmailType:   "marketing",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStageQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE qc_runs SET status = \$1 WHERE id = \$2`).
		WithArgs("checking_links", "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStage(context.Background(), "missing-run", model.RunStageCheckingLinks)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinalizeRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE qc_runs SET status = \$1, summary_pass = \$2, model_version = \$3, finished_at = \$4 WHERE id = \$5`).
		WithArgs("completed", true, "claude-sonnet-4-5", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"qc_checks"},
		[]string{"id", "run_id", "type", "name", "pass", "details"}).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"qc_links"},
		[]string{"id", "run_id", "url", "status_code", "ok", "redirected", "final_url", "notes"}).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.FinalizeRun(context.Background(), "run-1", RunResult{
		SummaryPass:  true,
		ModelVersion: "claude-sonnet-4-5",
		Checks: []model.CheckResult{
			{Type: model.CheckTypeDisclaimer, Name: "Risk warning present", Pass: true},
		},
		Links: []model.LinkProbeResult{
			{URL: "https://tradu.com/cfd", StatusCode: 200, OK: true},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinalizeRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE qc_runs SET status = \$1, summary_pass = \$2`).
		WithArgs("completed", false, "mock-v1", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.FinalizeRun(context.Background(), "missing-run", RunResult{ModelVersion: "mock-v1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE qc_runs SET status = \$1, finished_at = \$2 WHERE id = \$3`).
		WithArgs("failed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO qc_checks`).
		WithArgs(pgxmock.AnyArg(), "run-1", "system_notice", "Run failed", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.FailRun(context.Background(), "run-1", model.CheckResult{
		Type: model.CheckTypeSystemNotice,
		Name: "Run failed",
		Pass: false,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM qc_runs WHERE 1=1 AND silo = \$1`).
		WithArgs("CFD").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT .+ FROM qc_runs WHERE 1=1 AND silo = \$1 ORDER BY started_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("CFD", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "status", "braze_url", "copy_doc_text", "copy_doc_html", "copy_doc_links",
			"silo", "entity", "email_type", "summary_pass", "model_version", "started_at", "finished_at",
		}))

	runs, total, err := s.ListRuns(context.Background(), RunFilter{Silo: "CFD"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Seed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Disclaimer rules upsert.
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_disclaimer_rules"},
		[]string{"id", "entity", "silo", "email_type", "kind", "text", "active"}).
		WillReturnResult(int64(len(seedDisclaimerRules)))
	mock.ExpectExec(`INSERT INTO "disclaimer_rules"`).
		WillReturnResult(pgxmock.NewResult("INSERT", int64(len(seedDisclaimerRules))))
	mock.ExpectCommit()

	// Keyword rules upsert.
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_keyword_rules"},
		[]string{"id", "keyword", "required_text", "active"}).
		WillReturnResult(int64(len(seedKeywordRules)))
	mock.ExpectExec(`INSERT INTO "keyword_rules"`).
		WillReturnResult(pgxmock.NewResult("INSERT", int64(len(seedKeywordRules))))
	mock.ExpectCommit()

	err := s.Seed(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
