package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/urban-health-lab/trauma-desert-cli/internal/model"
	"github.com/urban-health-lab/trauma-desert-cli/internal/validate"
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	study      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	rows         INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_tracts (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	geoid           TEXT NOT NULL,
	bivariate_class INTEGER NOT NULL,
	data            TEXT NOT NULL,
	PRIMARY KEY (run_id, geoid)
);

CREATE TABLE IF NOT EXISTS validation_checks (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	position INTEGER NOT NULL,
	category TEXT NOT NULL,
	name     TEXT NOT NULL,
	status   TEXT NOT NULL,
	message  TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_run_tracts_class ON run_tracts(run_id, bivariate_class);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, study string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, study, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, study, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Study:     study,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusComplete), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, study, status, summary, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, study, status, summary, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*Phase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &Phase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *PhaseResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, rows = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(result.Status), result.Rows, result.Error, time.Now().UTC(), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) ListPhases(ctx context.Context, runID string) ([]Phase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, rows, error, started_at, completed_at
		 FROM run_phases WHERE run_id = ? ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list phases for run %s", runID)
	}
	defer rows.Close()

	var phases []Phase
	for rows.Next() {
		var p Phase
		var completedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &p.Rows, &p.Error, &p.StartedAt, &completedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		if completedAt.Valid {
			p.CompletedAt = &completedAt.Time
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "sqlite: list phases iterate")
}

func (s *SQLiteStore) SaveTracts(ctx context.Context, runID string, tracts []model.ClassifiedTract) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save tracts")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO run_tracts (run_id, geoid, bivariate_class, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save tracts")
	}
	defer stmt.Close()

	for _, t := range tracts {
		data, err := json.Marshal(t)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal tract %s", t.GEOID)
		}
		if _, err := stmt.ExecContext(ctx, runID, t.GEOID, t.BivariateClass, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert tract %s", t.GEOID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save tracts")
}

func (s *SQLiteStore) GetTracts(ctx context.Context, runID string) ([]model.ClassifiedTract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM run_tracts WHERE run_id = ? ORDER BY geoid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tracts for run %s", runID)
	}
	defer rows.Close()

	var tracts []model.ClassifiedTract
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tract")
		}
		var t model.ClassifiedTract
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal tract")
		}
		tracts = append(tracts, t)
	}
	return tracts, eris.Wrap(rows.Err(), "sqlite: get tracts iterate")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, runID string, checks []validate.Check) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save report")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM validation_checks WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear report for run %s", runID)
	}
	for i, c := range checks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO validation_checks (run_id, position, category, name, status, message) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i, c.Category, c.Name, string(c.Status), c.Message,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert check %q", c.Name)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) ([]validate.Check, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, name, status, message FROM validation_checks WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report for run %s", runID)
	}
	defer rows.Close()

	var checks []validate.Check
	for rows.Next() {
		var c validate.Check
		var status string
		if err := rows.Scan(&c.Category, &c.Name, &status, &c.Message); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan check")
		}
		c.Status = validate.Status(status)
		checks = append(checks, c)
	}
	return checks, eris.Wrap(rows.Err(), "sqlite: get report iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Study, &r.Status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if summaryJSON.Valid && summaryJSON.String != "" {
		r.Summary = &RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
