package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tradu/emailqc/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS qc_runs (
	id             TEXT PRIMARY KEY,
	name           TEXT,
	status         TEXT NOT NULL DEFAULT 'queued',
	braze_url      TEXT NOT NULL,
	copy_doc_text  TEXT NOT NULL,
	copy_doc_html  TEXT,
	copy_doc_links TEXT,
	silo           TEXT NOT NULL,
	entity         TEXT NOT NULL,
	email_type     TEXT NOT NULL DEFAULT 'marketing',
	summary_pass   INTEGER,
	model_version  TEXT,
	started_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at    DATETIME
);

CREATE TABLE IF NOT EXISTS qc_checks (
	id      TEXT PRIMARY KEY,
	run_id  TEXT NOT NULL REFERENCES qc_runs(id),
	type    TEXT NOT NULL,
	name    TEXT NOT NULL,
	pass    INTEGER NOT NULL,
	details TEXT
);

CREATE TABLE IF NOT EXISTS qc_links (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES qc_runs(id),
	url         TEXT NOT NULL,
	status_code INTEGER,
	ok          INTEGER NOT NULL DEFAULT 0,
	redirected  INTEGER NOT NULL DEFAULT 0,
	final_url   TEXT,
	notes       TEXT
);

CREATE TABLE IF NOT EXISTS risk_rules (
	id          TEXT PRIMARY KEY,
	entity      TEXT NOT NULL,
	silo_filter TEXT,
	text        TEXT NOT NULL,
	active      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS disclaimer_rules (
	id         TEXT PRIMARY KEY,
	entity     TEXT NOT NULL,
	silo       TEXT,
	email_type TEXT NOT NULL DEFAULT 'marketing',
	kind       TEXT NOT NULL,
	text       TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS keyword_rules (
	id            TEXT PRIMARY KEY,
	keyword       TEXT NOT NULL,
	required_text TEXT NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS additional_rules (
	id     TEXT PRIMARY KEY,
	topic  TEXT NOT NULL,
	silo   TEXT NOT NULL,
	entity TEXT NOT NULL,
	text   TEXT NOT NULL,
	links  TEXT,
	notes  TEXT,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS link_rules (
	id           TEXT PRIMARY KEY,
	entity       TEXT NOT NULL,
	silo         TEXT,
	email_type   TEXT NOT NULL DEFAULT 'marketing',
	kind         TEXT NOT NULL,
	match_type   TEXT NOT NULL DEFAULT 'contains',
	href_pattern TEXT NOT NULL,
	active       INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_qc_runs_status ON qc_runs(status);
CREATE INDEX IF NOT EXISTS idx_qc_runs_started_at ON qc_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_qc_checks_run_id ON qc_checks(run_id);
CREATE INDEX IF NOT EXISTS idx_qc_links_run_id ON qc_links(run_id);
CREATE INDEX IF NOT EXISTS idx_disclaimer_rules_entity ON disclaimer_rules(entity);
CREATE INDEX IF NOT EXISTS idx_link_rules_entity ON link_rules(entity);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, submission NewRun) (*model.QcRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var linksJSON any
	if len(submission.CopyDocLinks) > 0 {
		raw, err := json.Marshal(submission.CopyDocLinks)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal copy doc links")
		}
		linksJSON = string(raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO qc_runs (id, name, status, braze_url, copy_doc_text, copy_doc_html, copy_doc_links, silo, entity, email_type, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullIfEmpty(submission.Name), string(model.RunStageQueued),
		submission.BrazeURL, submission.CopyDocText, nullIfEmpty(submission.CopyDocHTML),
		linksJSON, submission.Silo, submission.Entity, submission.EmailType, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.QcRun{
		ID:           id,
		Name:         submission.Name,
		Status:       model.RunStageQueued,
		BrazeURL:     submission.BrazeURL,
		CopyDocText:  submission.CopyDocText,
		CopyDocHTML:  submission.CopyDocHTML,
		CopyDocLinks: submission.CopyDocLinks,
		Silo:         submission.Silo,
		Entity:       submission.Entity,
		EmailType:    submission.EmailType,
		StartedAt:    now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStage(ctx context.Context, runID string, stage model.RunStage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE qc_runs SET status = ? WHERE id = ?`,
		string(stage), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run stage %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FinalizeRun(ctx context.Context, runID string, result RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin finalize")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE qc_runs SET status = ?, summary_pass = ?, model_version = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStageCompleted), boolToInt(result.SummaryPass), result.ModelVersion, now, runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: finalize run")
	}
	if err := checkRowsAffected(res, runID); err != nil {
		return err
	}

	if err := insertChecksTx(ctx, tx, runID, result.Checks); err != nil {
		return err
	}
	if err := insertLinksTx(ctx, tx, runID, result.Links); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit finalize")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, diagnostic model.CheckResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin fail")
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE qc_runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(model.RunStageFailed), now, runID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: fail run")
	}
	if err := checkRowsAffected(res, runID); err != nil {
		return err
	}

	if err := insertChecksTx(ctx, tx, runID, []model.CheckResult{diagnostic}); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit fail")
}

func insertChecksTx(ctx context.Context, tx *sql.Tx, runID string, checks []model.CheckResult) error {
	for _, check := range checks {
		var details any
		if check.Details != nil {
			raw, err := json.Marshal(check.Details)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal check details")
			}
			details = string(raw)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO qc_checks (id, run_id, type, name, pass, details) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, string(check.Type), check.Name, boolToInt(check.Pass), details,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert check")
		}
	}
	return nil
}

func insertLinksTx(ctx context.Context, tx *sql.Tx, runID string, links []model.LinkProbeResult) error {
	for _, link := range links {
		var statusCode any
		if link.StatusCode != 0 {
			statusCode = link.StatusCode
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO qc_links (id, run_id, url, status_code, ok, redirected, final_url, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, link.URL, statusCode,
			boolToInt(link.OK), boolToInt(link.Redirected),
			nullIfEmpty(link.FinalURL), nullIfEmpty(string(link.Notes)),
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert link")
		}
	}
	return nil
}

func (s *SQLiteStore) UpdateRunName(ctx context.Context, runID, name string) (*model.QcRun, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE qc_runs SET name = ? WHERE id = ?`,
		name, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update run name %s", runID)
	}
	if err := checkRowsAffected(res, runID); err != nil {
		return nil, err
	}
	return s.GetRun(ctx, runID)
}

const sqliteRunColumns = `id, name, status, braze_url, copy_doc_text, copy_doc_html, copy_doc_links, silo, entity, email_type, summary_pass, model_version, started_at, finished_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.QcRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM qc_runs WHERE id = ?`, runID,
	)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	checkRows, err := s.db.QueryContext(ctx,
		`SELECT id, type, name, pass, details FROM qc_checks WHERE run_id = ? ORDER BY name`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query checks")
	}
	defer checkRows.Close()
	for checkRows.Next() {
		check, err := scanCheck(checkRows)
		if err != nil {
			return nil, err
		}
		run.Checks = append(run.Checks, check)
	}
	if err := checkRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate checks")
	}

	linkRows, err := s.db.QueryContext(ctx,
		`SELECT url, status_code, ok, redirected, final_url, notes FROM qc_links WHERE run_id = ? ORDER BY url`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query links")
	}
	defer linkRows.Close()
	for linkRows.Next() {
		link, err := scanLink(linkRows)
		if err != nil {
			return nil, err
		}
		run.Links = append(run.Links, link)
	}
	if err := linkRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate links")
	}

	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.QcRun, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Silo != "" {
		where += ` AND silo = ?`
		args = append(args, filter.Silo)
	}
	if filter.Entity != "" {
		where += ` AND entity = ?`
		args = append(args, filter.Entity)
	}
	if filter.From != nil {
		where += ` AND started_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where += ` AND started_at <= ?`
		args = append(args, filter.To.UTC())
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qc_runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count runs")
	}

	take, skip := pageBounds(filter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM qc_runs`+where+` ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		append(args, take, skip)...,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.QcRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: iterate runs")
	}

	return runs, total, nil
}

func (s *SQLiteStore) RiskRules(ctx context.Context, entity, silo string) ([]model.RiskRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, silo_filter, text, active FROM risk_rules
		 WHERE entity = ? AND active = 1 AND (silo_filter IS NULL OR silo_filter = '' OR silo_filter = ?)
		 ORDER BY text`, entity, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query risk rules")
	}
	defer rows.Close()

	var rules []model.RiskRule
	for rows.Next() {
		var r model.RiskRule
		var siloFilter sql.NullString
		var active int
		if err := rows.Scan(&r.ID, &r.Entity, &siloFilter, &r.Text, &active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk rule")
		}
		r.SiloFilter = siloFilter.String
		r.Active = active != 0
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: iterate risk rules")
}

func (s *SQLiteStore) DisclaimerRules(ctx context.Context, entity, silo, emailType string) ([]model.DisclaimerRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, silo, email_type, kind, text, active FROM disclaimer_rules
		 WHERE entity = ? AND active = 1 AND email_type = ? AND (silo IS NULL OR silo = '' OR silo = ?)
		 ORDER BY silo, kind`, entity, emailType, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query disclaimer rules")
	}
	defer rows.Close()

	var rules []model.DisclaimerRule
	for rows.Next() {
		var r model.DisclaimerRule
		var ruleSilo sql.NullString
		var active int
		if err := rows.Scan(&r.ID, &r.Entity, &ruleSilo, &r.EmailType, &r.Kind, &r.Text, &active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan disclaimer rule")
		}
		r.Silo = ruleSilo.String
		r.Active = active != 0
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: iterate disclaimer rules")
}

func (s *SQLiteStore) KeywordRules(ctx context.Context) ([]model.KeywordRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, keyword, required_text, active FROM keyword_rules WHERE active = 1 ORDER BY keyword`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query keyword rules")
	}
	defer rows.Close()

	var rules []model.KeywordRule
	for rows.Next() {
		var r model.KeywordRule
		var active int
		if err := rows.Scan(&r.ID, &r.Keyword, &r.RequiredText, &active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan keyword rule")
		}
		r.Active = active != 0
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: iterate keyword rules")
}

func (s *SQLiteStore) AdditionalRules(ctx context.Context, entity, silo string) ([]model.AdditionalRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, topic, silo, entity, text, links, notes, active FROM additional_rules
		 WHERE entity = ? AND silo = ? AND active = 1 ORDER BY topic`, entity, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query additional rules")
	}
	defer rows.Close()

	var rules []model.AdditionalRule
	for rows.Next() {
		var r model.AdditionalRule
		var links, notes sql.NullString
		var active int
		if err := rows.Scan(&r.ID, &r.Topic, &r.Silo, &r.Entity, &r.Text, &links, &notes, &active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan additional rule")
		}
		if links.Valid && links.String != "" {
			var v any
			if err := json.Unmarshal([]byte(links.String), &v); err == nil {
				r.Links = v
			}
		}
		r.Notes = notes.String
		r.Active = active != 0
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: iterate additional rules")
}

func (s *SQLiteStore) LinkRules(ctx context.Context, entity, silo, emailType string) ([]model.LinkRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, silo, email_type, kind, match_type, href_pattern, active FROM link_rules
		 WHERE entity = ? AND active = 1 AND email_type = ? AND (silo IS NULL OR silo = '' OR silo = ?)
		 ORDER BY kind, href_pattern`, entity, emailType, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query link rules")
	}
	defer rows.Close()

	var rules []model.LinkRule
	for rows.Next() {
		var r model.LinkRule
		var ruleSilo sql.NullString
		var matchType string
		var active int
		if err := rows.Scan(&r.ID, &r.Entity, &ruleSilo, &r.EmailType, &r.Kind, &matchType, &r.HrefPattern, &active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link rule")
		}
		r.Silo = ruleSilo.String
		r.MatchType = model.MatchType(matchType)
		r.Active = active != 0
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "sqlite: iterate link rules")
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.QcRun, error) {
	var run model.QcRun
	var name, copyDocHTML, copyDocLinks, modelVersion sql.NullString
	var summaryPass sql.NullInt64
	var status string
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &name, &status, &run.BrazeURL, &run.CopyDocText,
		&copyDocHTML, &copyDocLinks, &run.Silo, &run.Entity, &run.EmailType,
		&summaryPass, &modelVersion, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Name = name.String
	run.Status = model.RunStage(status)
	run.CopyDocHTML = copyDocHTML.String
	run.ModelVersion = modelVersion.String
	if copyDocLinks.Valid && copyDocLinks.String != "" {
		_ = json.Unmarshal([]byte(copyDocLinks.String), &run.CopyDocLinks)
	}
	if summaryPass.Valid {
		pass := summaryPass.Int64 != 0
		run.SummaryPass = &pass
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	return &run, nil
}

func scanCheck(rows *sql.Rows) (model.CheckResult, error) {
	var check model.CheckResult
	var checkType string
	var pass int
	var details sql.NullString
	if err := rows.Scan(&check.ID, &checkType, &check.Name, &pass, &details); err != nil {
		return check, eris.Wrap(err, "sqlite: scan check")
	}
	check.Type = model.CheckType(checkType)
	check.Pass = pass != 0
	if details.Valid && details.String != "" {
		var v any
		if err := json.Unmarshal([]byte(details.String), &v); err == nil {
			check.Details = v
		} else {
			check.Details = details.String
		}
	}
	return check, nil
}

func scanLink(rows *sql.Rows) (model.LinkProbeResult, error) {
	var link model.LinkProbeResult
	var statusCode sql.NullInt64
	var ok, redirected int
	var finalURL, notes sql.NullString
	if err := rows.Scan(&link.URL, &statusCode, &ok, &redirected, &finalURL, &notes); err != nil {
		return link, eris.Wrap(err, "sqlite: scan link")
	}
	link.StatusCode = int(statusCode.Int64)
	link.OK = ok != 0
	link.Redirected = redirected != 0
	link.FinalURL = finalURL.String
	link.Notes = model.ProbeNote(notes.String)
	return link, nil
}

func pageBounds(filter RunFilter) (take, skip int) {
	take = filter.PageSize
	if take <= 0 {
		take = 20
	}
	if take > 100 {
		take = 100
	}
	if filter.Page > 1 {
		skip = (filter.Page - 1) * take
	}
	return take, skip
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, runID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}
