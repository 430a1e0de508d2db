package storage

import (
	"context"

	"orderflow-edge-lab/internal/domain"
)

// ConditionStatStore provides access to condition_stats storage.
type ConditionStatStore interface {
	// Insert adds a new stat. Returns ErrDuplicateKey if (run_id, condition, horizon) exists.
	Insert(ctx context.Context, s *domain.RunStat) error

	// InsertBulk adds multiple stats atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, stats []*domain.RunStat) error

	// GetByKey retrieves one stat. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, runID, condition string, horizon domain.Horizon) (*domain.RunStat, error)

	// GetByRun retrieves all stats of a run, ordered by condition ASC, horizon ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.RunStat, error)

	// GetByCondition retrieves a condition's stats across runs, ordered by run_id ASC, horizon ASC.
	GetByCondition(ctx context.Context, condition string) ([]*domain.RunStat, error)
}

// RunStore provides access to evaluation_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.EvaluationRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.EvaluationRun, error)

	// List retrieves all runs, ordered by started_at ASC, run_id ASC.
	List(ctx context.Context) ([]*domain.EvaluationRun, error)
}

// FeatureRowStore provides access to feature_rows storage.
// Rows are grouped by series (e.g. a symbol or a source file name).
type FeatureRowStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate (series, timestamp_ms).
	InsertBulk(ctx context.Context, series string, rows []*domain.FeatureRow) error

	// GetByTimeRange retrieves rows of a series within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, series string, start, end int64) ([]*domain.FeatureRow, error)
}
