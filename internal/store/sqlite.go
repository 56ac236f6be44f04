package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/resilience"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL,
	line            TEXT NOT NULL,
	artifact_type   TEXT NOT NULL,
	artifact_text   TEXT NOT NULL DEFAULT '',
	evidence_source TEXT NOT NULL DEFAULT '',
	evidence_url    TEXT NOT NULL DEFAULT '',
	confidence_tier TEXT NOT NULL,
	mode            TEXT NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	generated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS site_cache (
	url        TEXT PRIMARY KEY,
	site       TEXT NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	lead           TEXT NOT NULL,
	result         TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_phase   TEXT NOT NULL DEFAULT '',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_results_company ON results(company);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_site_cache_expires_at ON site_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Results

func (s *SQLiteStore) SaveResult(ctx context.Context, r *model.Result) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (id, run_id, company, line, artifact_type, artifact_text, evidence_source,
		 evidence_url, confidence_tier, mode, attempts, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.Company, r.Line, string(r.ArtifactType), r.ArtifactText, r.EvidenceSource,
		r.EvidenceURL, string(r.ConfidenceTier), string(r.Mode), r.Attempts, r.GeneratedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert result")
}

const resultColumns = `id, run_id, company, line, artifact_type, artifact_text, evidence_source,
	evidence_url, confidence_tier, mode, attempts, generated_at`

func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: result %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan result")
	}
	return r, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE 1=1`
	var args []any

	if filter.Company != "" {
		query += ` AND company = ? COLLATE NOCASE`
		args = append(args, filter.Company)
	}
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	query += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

// Runs

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	run := newRun(source)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, summary, created_at, updated_at) VALUES (?, ?, ?, '{}', ?, ?)`,
		run.ID, run.Source, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary model.RunSummary, status model.RunStatus) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Site cache

func (s *SQLiteStore) GetCachedSite(ctx context.Context, siteURL string) (*CachedSite, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT url, site, cached_at, expires_at FROM site_cache WHERE url = ? AND expires_at > ?`,
		siteURL, time.Now().UTC(),
	)

	var cs CachedSite
	var siteJSON string
	err := row.Scan(&cs.URL, &siteJSON, &cs.CachedAt, &cs.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached site")
	}
	cs.Site = &model.Site{}
	if err := json.Unmarshal([]byte(siteJSON), cs.Site); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached site")
	}
	return &cs, nil
}

func (s *SQLiteStore) SetCachedSite(ctx context.Context, siteURL string, site *model.Site, ttl time.Duration) error {
	siteJSON, err := json.Marshal(site)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal site")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO site_cache (url, site, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET site = excluded.site, cached_at = excluded.cached_at,
		 expires_at = excluded.expires_at`,
		siteURL, string(siteJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached site")
}

func (s *SQLiteStore) DeleteExpiredSites(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM site_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired sites")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Dead letter queue

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	leadJSON, resultJSON, err := marshalDLQ(entry)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	var result sql.NullString
	if resultJSON != nil {
		result = sql.NullString{String: string(resultJSON), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, lead, result, error, error_type, failed_phase, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, failed_phase = excluded.failed_phase,
		   retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at,
		   last_failed_at = excluded.last_failed_at`,
		entry.ID, string(leadJSON), result, entry.Error, entry.ErrorType, entry.FailedPhase,
		entry.RetryCount, entry.MaxRetries, entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, lead, result, error, error_type, failed_phase, retry_count, max_retries,
	          next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close() //nolint:errcheck

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var leadJSON string
		var resultJSON sql.NullString
		if err := rows.Scan(&e.ID, &leadJSON, &resultJSON, &e.Error, &e.ErrorType, &e.FailedPhase,
			&e.RetryCount, &e.MaxRetries, &e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		var raw []byte
		if resultJSON.Valid {
			raw = []byte(resultJSON.String)
		}
		if err := unmarshalDLQ(&e, []byte(leadJSON), raw); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "store: %s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanResult(row scannable) (*model.Result, error) {
	var r model.Result
	err := row.Scan(&r.ID, &r.RunID, &r.Company, &r.Line, &r.ArtifactType, &r.ArtifactText,
		&r.EvidenceSource, &r.EvidenceURL, &r.ConfidenceTier, &r.Mode, &r.Attempts, &r.GeneratedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON string
	err := row.Scan(&r.ID, &r.Source, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan run")
	}
	if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run summary")
	}
	return &r, nil
}

func newRun(source string) *model.Run {
	now := time.Now().UTC()
	return &model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func marshalDLQ(entry resilience.DLQEntry) (leadJSON, resultJSON []byte, err error) {
	leadJSON, err = json.Marshal(entry.Lead)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal dlq lead")
	}
	if entry.Result != nil {
		resultJSON, err = json.Marshal(entry.Result)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal dlq result")
		}
	}
	return leadJSON, resultJSON, nil
}

func unmarshalDLQ(e *resilience.DLQEntry, leadJSON, resultJSON []byte) error {
	if err := json.Unmarshal(leadJSON, &e.Lead); err != nil {
		return eris.Wrap(err, "store: unmarshal dlq lead")
	}
	if len(resultJSON) > 0 {
		e.Result = &model.Result{}
		if err := json.Unmarshal(resultJSON, e.Result); err != nil {
			return eris.Wrap(err, "store: unmarshal dlq result")
		}
	}
	return nil
}
