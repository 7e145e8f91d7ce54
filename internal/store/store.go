// Package store persists classification runs and per-feature class assignments.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Column string `json:"column,omitempty"`
	Scheme string `json:"scheme,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines persistence for classification runs.
type Store interface {
	// SaveRun inserts run, assigning ID and CreatedAt when they are unset.
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// SaveAssignments stores the class of every feature for an existing run.
	SaveAssignments(ctx context.Context, runID string, assignments []model.Assignment) (int64, error)
	GetAssignments(ctx context.Context, runID string) ([]model.Assignment, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// New opens the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{
			MaxConns: int32(cfg.MaxConns),
			MinConns: int32(cfg.MinConns),
		})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
