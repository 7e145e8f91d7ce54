package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/choropleth/internal/model"
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
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	column_name TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	scheme      TEXT NOT NULL,
	k           INTEGER NOT NULL,
	k_effective INTEGER NOT NULL,
	edges       TEXT NOT NULL,
	counts      TEXT NOT NULL,
	dropped     INTEGER NOT NULL DEFAULT 0,
	min_value   REAL NOT NULL,
	max_value   REAL NOT NULL,
	degenerate  INTEGER NOT NULL DEFAULT 0,
	approximate INTEGER NOT NULL DEFAULT 0,
	gvf         REAL NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_assignments (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	feature_id TEXT NOT NULL,
	class      INTEGER NOT NULL,
	PRIMARY KEY (run_id, feature_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_column ON runs(column_name);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

const runColumns = `id, column_name, source, scheme, k, k_effective, edges, counts, dropped, min_value, max_value, degenerate, approximate, gvf, created_at`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)

	edges, counts, err := marshalRunArrays(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Column, run.Source, run.Scheme, run.K, run.KEffective, string(edges), string(counts),
		run.Dropped, run.Min, run.Max, run.Degenerate, run.Approximate, run.GVF, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

// GetRun returns the run or ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Column != "" {
		query += ` AND column_name = ?`
		args = append(args, filter.Column)
	}
	if filter.Scheme != "" {
		query += ` AND scheme = ?`
		args = append(args, filter.Scheme)
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
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
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveAssignments inserts the assignments in one transaction.
func (s *SQLiteStore) SaveAssignments(ctx context.Context, runID string, assignments []model.Assignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO run_assignments (run_id, feature_id, class) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare assignment insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, runID, a.FeatureID, a.Class); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert assignment %s", a.FeatureID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit assignments")
	}
	return int64(len(assignments)), nil
}

// GetAssignments returns the assignments of a run ordered by feature id.
func (s *SQLiteStore) GetAssignments(ctx context.Context, runID string) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature_id, class FROM run_assignments WHERE run_id = ? ORDER BY feature_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get assignments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.FeatureID, &a.Class); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get assignments iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var edges, counts string

	err := row.Scan(&r.ID, &r.Column, &r.Source, &r.Scheme, &r.K, &r.KEffective, &edges, &counts,
		&r.Dropped, &r.Min, &r.Max, &r.Degenerate, &r.Approximate, &r.GVF, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalRunArrays(&r, []byte(edges), []byte(counts)); err != nil {
		return nil, err
	}
	return &r, nil
}

// prepareRun fills in the ID and timestamp of a new run.
func prepareRun(run *model.Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

func marshalRunArrays(run *model.Run) ([]byte, []byte, error) {
	edges := run.Edges
	if edges == nil {
		edges = []float64{}
	}
	counts := run.Counts
	if counts == nil {
		counts = []int{}
	}
	e, err := json.Marshal(edges)
	if err != nil {
		return nil, nil, err
	}
	c, err := json.Marshal(counts)
	if err != nil {
		return nil, nil, err
	}
	return e, c, nil
}

func unmarshalRunArrays(r *model.Run, edges, counts []byte) error {
	if err := json.Unmarshal(edges, &r.Edges); err != nil {
		return eris.Wrap(err, "unmarshal edges")
	}
	if err := json.Unmarshal(counts, &r.Counts); err != nil {
		return eris.Wrap(err, "unmarshal counts")
	}
	return nil
}
