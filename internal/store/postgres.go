package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tradu/emailqc/internal/db"
	"github.com/tradu/emailqc/internal/model"
)

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO qc_runs (id, name, status, braze_url, copy_doc_text, copy_doc_html, copy_doc_links, silo, entity, email_type, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
	"update_run_stage": `UPDATE qc_runs SET status = $1 WHERE id = $2`,
	"update_run_name":  `UPDATE qc_runs SET name = $1 WHERE id = $2`,
	"get_run":          `SELECT ` + pgRunColumns + ` FROM qc_runs WHERE id = $1`,
	"get_run_checks":   `SELECT id, type, name, pass, details FROM qc_checks WHERE run_id = $1 ORDER BY name`,
	"get_run_links":    `SELECT url, status_code, ok, redirected, final_url, notes FROM qc_links WHERE run_id = $1 ORDER BY url`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS qc_runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name           TEXT,
	status         TEXT NOT NULL DEFAULT 'queued',
	braze_url      TEXT NOT NULL,
	copy_doc_text  TEXT NOT NULL,
	copy_doc_html  TEXT,
	copy_doc_links JSONB,
	silo           TEXT NOT NULL,
	entity         TEXT NOT NULL,
	email_type     TEXT NOT NULL DEFAULT 'marketing',
	summary_pass   BOOLEAN,
	model_version  TEXT,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS qc_checks (
	id      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id  TEXT NOT NULL REFERENCES qc_runs(id),
	type    TEXT NOT NULL,
	name    TEXT NOT NULL,
	pass    BOOLEAN NOT NULL,
	details JSONB
);

CREATE TABLE IF NOT EXISTS qc_links (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL REFERENCES qc_runs(id),
	url         TEXT NOT NULL,
	status_code INTEGER,
	ok          BOOLEAN NOT NULL DEFAULT false,
	redirected  BOOLEAN NOT NULL DEFAULT false,
	final_url   TEXT,
	notes       TEXT
);

CREATE TABLE IF NOT EXISTS risk_rules (
	id          TEXT PRIMARY KEY,
	entity      TEXT NOT NULL,
	silo_filter TEXT,
	text        TEXT NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS disclaimer_rules (
	id         TEXT PRIMARY KEY,
	entity     TEXT NOT NULL,
	silo       TEXT,
	email_type TEXT NOT NULL DEFAULT 'marketing',
	kind       TEXT NOT NULL,
	text       TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS keyword_rules (
	id            TEXT PRIMARY KEY,
	keyword       TEXT NOT NULL,
	required_text TEXT NOT NULL,
	active        BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS additional_rules (
	id     TEXT PRIMARY KEY,
	topic  TEXT NOT NULL,
	silo   TEXT NOT NULL,
	entity TEXT NOT NULL,
	text   TEXT NOT NULL,
	links  JSONB,
	notes  TEXT,
	active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS link_rules (
	id           TEXT PRIMARY KEY,
	entity       TEXT NOT NULL,
	silo         TEXT,
	email_type   TEXT NOT NULL DEFAULT 'marketing',
	kind         TEXT NOT NULL,
	match_type   TEXT NOT NULL DEFAULT 'contains',
	href_pattern TEXT NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_qc_runs_status ON qc_runs(status);
CREATE INDEX IF NOT EXISTS idx_qc_runs_started_at ON qc_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_qc_runs_silo_entity ON qc_runs(silo, entity);
CREATE INDEX IF NOT EXISTS idx_qc_checks_run_id ON qc_checks(run_id);
CREATE INDEX IF NOT EXISTS idx_qc_links_run_id ON qc_links(run_id);
CREATE INDEX IF NOT EXISTS idx_disclaimer_rules_entity ON disclaimer_rules(entity);
CREATE INDEX IF NOT EXISTS idx_link_rules_entity ON link_rules(entity);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, submission NewRun) (*model.QcRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var linksJSON []byte
	if len(submission.CopyDocLinks) > 0 {
		raw, err := json.Marshal(submission.CopyDocLinks)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal copy doc links")
		}
		linksJSON = raw
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO qc_runs (id, name, status, braze_url, copy_doc_text, copy_doc_html, copy_doc_links, silo, entity, email_type, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, nullIfEmpty(submission.Name), string(model.RunStageQueued),
		submission.BrazeURL, submission.CopyDocText, nullIfEmpty(submission.CopyDocHTML),
		linksJSON, submission.Silo, submission.Entity, submission.EmailType, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStage(ctx context.Context, runID string, stage model.RunStage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE qc_runs SET status = $1 WHERE id = $2`,
		string(stage), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run stage %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FinalizeRun(ctx context.Context, runID string, result RunResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin finalize")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE qc_runs SET status = $1, summary_pass = $2, model_version = $3, finished_at = $4 WHERE id = $5`,
		string(model.RunStageCompleted), result.SummaryPass, result.ModelVersion, now, runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: finalize run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}

	checkRows := make([][]any, 0, len(result.Checks))
	for _, check := range result.Checks {
		var details []byte
		if check.Details != nil {
			raw, err := json.Marshal(check.Details)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal check details")
			}
			details = raw
		}
		checkRows = append(checkRows, []any{
			uuid.New().String(), runID, string(check.Type), check.Name, check.Pass, details,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "qc_checks",
		[]string{"id", "run_id", "type", "name", "pass", "details"}, checkRows); err != nil {
		return eris.Wrap(err, "postgres: insert checks")
	}

	linkRows := make([][]any, 0, len(result.Links))
	for _, link := range result.Links {
		var statusCode any
		if link.StatusCode != 0 {
			statusCode = link.StatusCode
		}
		linkRows = append(linkRows, []any{
			uuid.New().String(), runID, link.URL, statusCode,
			link.OK, link.Redirected, nullIfEmpty(link.FinalURL), nullIfEmpty(string(link.Notes)),
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "qc_links",
		[]string{"id", "run_id", "url", "status_code", "ok", "redirected", "final_url", "notes"}, linkRows); err != nil {
		return eris.Wrap(err, "postgres: insert links")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit finalize")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, diagnostic model.CheckResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin fail")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE qc_runs SET status = $1, finished_at = $2 WHERE id = $3`,
		string(model.RunStageFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: fail run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}

	var details []byte
	if diagnostic.Details != nil {
		raw, err := json.Marshal(diagnostic.Details)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal diagnostic details")
		}
		details = raw
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO qc_checks (id, run_id, type, name, pass, details) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), runID, string(diagnostic.Type), diagnostic.Name, diagnostic.Pass, details,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert diagnostic check")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit fail")
}

func (s *PostgresStore) UpdateRunName(ctx context.Context, runID, name string) (*model.QcRun, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE qc_runs SET name = $1 WHERE id = $2`,
		name, runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update run name %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return s.GetRun(ctx, runID)
}

const pgRunColumns = `id, name, status, braze_url, copy_doc_text, copy_doc_html, copy_doc_links, silo, entity, email_type, summary_pass, model_version, started_at, finished_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.QcRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRunColumns+` FROM qc_runs WHERE id = $1`, runID,
	)

	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	checkRows, err := s.pool.Query(ctx,
		`SELECT id, type, name, pass, details FROM qc_checks WHERE run_id = $1 ORDER BY name`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query checks")
	}
	defer checkRows.Close()
	for checkRows.Next() {
		check, err := scanPgCheck(checkRows)
		if err != nil {
			return nil, err
		}
		run.Checks = append(run.Checks, check)
	}
	if err := checkRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate checks")
	}

	linkRows, err := s.pool.Query(ctx,
		`SELECT url, status_code, ok, redirected, final_url, notes FROM qc_links WHERE run_id = $1 ORDER BY url`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query links")
	}
	defer linkRows.Close()
	for linkRows.Next() {
		link, err := scanPgLink(linkRows)
		if err != nil {
			return nil, err
		}
		run.Links = append(run.Links, link)
	}
	if err := linkRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate links")
	}

	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.QcRun, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if filter.Silo != "" {
		where += ` AND silo = ` + arg(filter.Silo)
	}
	if filter.Entity != "" {
		where += ` AND entity = ` + arg(filter.Entity)
	}
	if filter.From != nil {
		where += ` AND started_at >= ` + arg(filter.From.UTC())
	}
	if filter.To != nil {
		where += ` AND started_at <= ` + arg(filter.To.UTC())
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM qc_runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count runs")
	}

	take, skip := pageBounds(filter)
	query := `SELECT ` + pgRunColumns + ` FROM qc_runs` + where +
		` ORDER BY started_at DESC LIMIT ` + arg(take) + ` OFFSET ` + arg(skip)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.QcRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: iterate runs")
	}

	return runs, total, nil
}

func (s *PostgresStore) RiskRules(ctx context.Context, entity, silo string) ([]model.RiskRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity, silo_filter, text, active FROM risk_rules
		 WHERE entity = $1 AND active AND (silo_filter IS NULL OR silo_filter = '' OR silo_filter = $2)
		 ORDER BY text`, entity, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query risk rules")
	}
	defer rows.Close()

	var rules []model.RiskRule
	for rows.Next() {
		var r model.RiskRule
		var siloFilter *string
		if err := rows.Scan(&r.ID, &r.Entity, &siloFilter, &r.Text, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk rule")
		}
		if siloFilter != nil {
			r.SiloFilter = *siloFilter
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: iterate risk rules")
}

func (s *PostgresStore) DisclaimerRules(ctx context.Context, entity, silo, emailType string) ([]model.DisclaimerRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity, silo, email_type, kind, text, active FROM disclaimer_rules
		 WHERE entity = $1 AND active AND email_type = $2 AND (silo IS NULL OR silo = '' OR silo = $3)
		 ORDER BY silo, kind`, entity, emailType, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query disclaimer rules")
	}
	defer rows.Close()

	var rules []model.DisclaimerRule
	for rows.Next() {
		var r model.DisclaimerRule
		var ruleSilo *string
		if err := rows.Scan(&r.ID, &r.Entity, &ruleSilo, &r.EmailType, &r.Kind, &r.Text, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan disclaimer rule")
		}
		if ruleSilo != nil {
			r.Silo = *ruleSilo
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: iterate disclaimer rules")
}

func (s *PostgresStore) KeywordRules(ctx context.Context) ([]model.KeywordRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, keyword, required_text, active FROM keyword_rules WHERE active ORDER BY keyword`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query keyword rules")
	}
	defer rows.Close()

	var rules []model.KeywordRule
	for rows.Next() {
		var r model.KeywordRule
		if err := rows.Scan(&r.ID, &r.Keyword, &r.RequiredText, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan keyword rule")
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: iterate keyword rules")
}

func (s *PostgresStore) AdditionalRules(ctx context.Context, entity, silo string) ([]model.AdditionalRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, topic, silo, entity, text, links, notes, active FROM additional_rules
		 WHERE entity = $1 AND silo = $2 AND active ORDER BY topic`, entity, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query additional rules")
	}
	defer rows.Close()

	var rules []model.AdditionalRule
	for rows.Next() {
		var r model.AdditionalRule
		var links []byte
		var notes *string
		if err := rows.Scan(&r.ID, &r.Topic, &r.Silo, &r.Entity, &r.Text, &links, &notes, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan additional rule")
		}
		if len(links) > 0 {
			var v any
			if err := json.Unmarshal(links, &v); err == nil {
				r.Links = v
			}
		}
		if notes != nil {
			r.Notes = *notes
		}
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: iterate additional rules")
}

func (s *PostgresStore) LinkRules(ctx context.Context, entity, silo, emailType string) ([]model.LinkRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity, silo, email_type, kind, match_type, href_pattern, active FROM link_rules
		 WHERE entity = $1 AND active AND email_type = $2 AND (silo IS NULL OR silo = '' OR silo = $3)
		 ORDER BY kind, href_pattern`, entity, emailType, silo,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query link rules")
	}
	defer rows.Close()

	var rules []model.LinkRule
	for rows.Next() {
		var r model.LinkRule
		var ruleSilo *string
		var matchType string
		if err := rows.Scan(&r.ID, &r.Entity, &ruleSilo, &r.EmailType, &r.Kind, &matchType, &r.HrefPattern, &r.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link rule")
		}
		if ruleSilo != nil {
			r.Silo = *ruleSilo
		}
		r.MatchType = model.MatchType(matchType)
		rules = append(rules, r)
	}
	return rules, eris.Wrap(rows.Err(), "postgres: iterate link rules")
}

// Seed bulk-upserts the baseline rule sets. Row ids are deterministic so
// repeated seeding converges instead of duplicating.
func (s *PostgresStore) Seed(ctx context.Context) error {
	discRows := make([][]any, 0, len(seedDisclaimerRules))
	for _, rule := range seedDisclaimerRules {
		discRows = append(discRows, []any{
			deterministicID("disc", rule.Entity, rule.Silo, rule.Kind),
			rule.Entity, nullIfEmpty(rule.Silo), rule.EmailType, rule.Kind, rule.Text, true,
		})
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "disclaimer_rules",
		Columns:      []string{"id", "entity", "silo", "email_type", "kind", "text", "active"},
		ConflictKeys: []string{"id"},
	}, discRows); err != nil {
		return eris.Wrap(err, "postgres: seed disclaimer rules")
	}

	kwRows := make([][]any, 0, len(seedKeywordRules))
	for _, rule := range seedKeywordRules {
		kwRows = append(kwRows, []any{
			deterministicID("kw", rule.Keyword),
			rule.Keyword, rule.RequiredText, true,
		})
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "keyword_rules",
		Columns:      []string{"id", "keyword", "required_text", "active"},
		ConflictKeys: []string{"id"},
	}, kwRows); err != nil {
		return eris.Wrap(err, "postgres: seed keyword rules")
	}

	return nil
}

func scanPgRun(row scanner) (*model.QcRun, error) {
	var run model.QcRun
	var name, copyDocHTML, modelVersion *string
	var copyDocLinks []byte
	var status string

	err := row.Scan(
		&run.ID, &name, &status, &run.BrazeURL, &run.CopyDocText,
		&copyDocHTML, &copyDocLinks, &run.Silo, &run.Entity, &run.EmailType,
		&run.SummaryPass, &modelVersion, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if name != nil {
		run.Name = *name
	}
	run.Status = model.RunStage(status)
	if copyDocHTML != nil {
		run.CopyDocHTML = *copyDocHTML
	}
	if modelVersion != nil {
		run.ModelVersion = *modelVersion
	}
	if len(copyDocLinks) > 0 {
		_ = json.Unmarshal(copyDocLinks, &run.CopyDocLinks)
	}

	return &run, nil
}

func scanPgCheck(rows pgx.Rows) (model.CheckResult, error) {
	var check model.CheckResult
	var checkType string
	var details []byte
	if err := rows.Scan(&check.ID, &checkType, &check.Name, &check.Pass, &details); err != nil {
		return check, eris.Wrap(err, "postgres: scan check")
	}
	check.Type = model.CheckType(checkType)
	if len(details) > 0 {
		var v any
		if err := json.Unmarshal(details, &v); err == nil {
			check.Details = v
		} else {
			check.Details = string(details)
		}
	}
	return check, nil
}

func scanPgLink(rows pgx.Rows) (model.LinkProbeResult, error) {
	var link model.LinkProbeResult
	var statusCode *int
	var finalURL, notes *string
	if err := rows.Scan(&link.URL, &statusCode, &link.OK, &link.Redirected, &finalURL, &notes); err != nil {
		return link, eris.Wrap(err, "postgres: scan link")
	}
	if statusCode != nil {
		link.StatusCode = *statusCode
	}
	if finalURL != nil {
		link.FinalURL = *finalURL
	}
	if notes != nil {
		link.Notes = model.ProbeNote(*notes)
	}
	return link, nil
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
