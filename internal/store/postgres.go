package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/choropleth/internal/db"
	"github.com/sells-group/choropleth/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// poolLimits resolves pool sizes, filling unset values with defaults of 10 max and 1 min.
// MinConns is capped at MaxConns.
func poolLimits(cfg *PoolConfig) (maxConns, minConns int32) {
	maxConns, minConns = 10, 1
	if cfg != nil {
		if cfg.MaxConns > 0 {
			maxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			minConns = cfg.MinConns
		}
	}
	return maxConns, min(minConns, maxConns)
}

const (
	sqlInsertRun = `INSERT INTO runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	sqlGetRun    = `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
)

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_run": sqlInsertRun,
	"get_run":    sqlGetRun,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns, pgxCfg.MinConns = poolLimits(poolCfg)
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migrate.
				var pgErr interface{ SQLState() string }
				if errors.As(err, &pgErr) && pgErr.SQLState() == "42P01" {
					continue
				}
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

// NewPostgresWithPool wraps an existing pool. The caller keeps ownership of it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	column_name TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	scheme      TEXT NOT NULL,
	k           INTEGER NOT NULL,
	k_effective INTEGER NOT NULL,
	edges       JSONB NOT NULL,
	counts      JSONB NOT NULL,
	dropped     INTEGER NOT NULL DEFAULT 0,
	min_value   DOUBLE PRECISION NOT NULL,
	max_value   DOUBLE PRECISION NOT NULL,
	degenerate  BOOLEAN NOT NULL DEFAULT false,
	approximate BOOLEAN NOT NULL DEFAULT false,
	gvf         DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_assignments (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	feature_id TEXT NOT NULL,
	class      INTEGER NOT NULL,
	PRIMARY KEY (run_id, feature_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_column ON runs(column_name);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts run.
func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)

	edges, counts, err := marshalRunArrays(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run")
	}

	_, err = s.pool.Exec(ctx, sqlInsertRun,
		run.ID, run.Column, run.Source, run.Scheme, run.K, run.KEffective, edges, counts,
		run.Dropped, run.Min, run.Max, run.Degenerate, run.Approximate, run.GVF, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

// GetRun returns the run or ErrNotFound.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, sqlGetRun, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Column != "" {
		query += fmt.Sprintf(` AND column_name = $%d`, argIdx)
		args = append(args, filter.Column)
		argIdx++
	}
	if filter.Scheme != "" {
		query += fmt.Sprintf(` AND scheme = $%d`, argIdx)
		args = append(args, filter.Scheme)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveAssignments loads the assignments with COPY.
func (s *PostgresStore) SaveAssignments(ctx context.Context, runID string, assignments []model.Assignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin save assignments")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`, runID).Scan(&exists); err != nil {
		return 0, eris.Wrapf(err, "postgres: check run %s", runID)
	}
	if !exists {
		return 0, eris.Wrapf(ErrNotFound, "postgres: save assignments %s", runID)
	}

	ids := make([]string, len(assignments))
	rows := make([][]any, len(assignments))
	for i, a := range assignments {
		ids[i] = a.FeatureID
		rows[i] = []any{runID, a.FeatureID, a.Class}
	}

	// Saving a feature again replaces its class.
	if _, err := tx.Exec(ctx,
		`DELETE FROM run_assignments WHERE run_id = $1 AND feature_id = ANY($2)`, runID, ids); err != nil {
		return 0, eris.Wrap(err, "postgres: clear assignments")
	}

	n, err := db.CopyFromTx(ctx, tx, "run_assignments", []string{"run_id", "feature_id", "class"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save assignments")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit assignments")
	}
	return n, nil
}

// GetAssignments returns the assignments of a run ordered by feature id.
func (s *PostgresStore) GetAssignments(ctx context.Context, runID string) ([]model.Assignment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT feature_id, class FROM run_assignments WHERE run_id = $1 ORDER BY feature_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get assignments")
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.FeatureID, &a.Class); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get assignments iterate")
}

func scanPostgresRun(row scannable) (*model.Run, error) {
	var r model.Run
	var edges, counts []byte

	err := row.Scan(&r.ID, &r.Column, &r.Source, &r.Scheme, &r.K, &r.KEffective, &edges, &counts,
		&r.Dropped, &r.Min, &r.Max, &r.Degenerate, &r.Approximate, &r.GVF, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalRunArrays(&r, edges, counts); err != nil {
		return nil, err
	}
	return &r, nil
}
