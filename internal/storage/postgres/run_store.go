package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.EvaluationRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO evaluation_runs (
			run_id, started_at, source, row_count, synthetic,
			conditions, failed, records, data_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.StartedAt, r.Source, int32(r.RowCount), r.Synthetic,
		int32(r.Conditions), int32(r.Failed), int32(r.Records), r.DataVersion,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert evaluation run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.EvaluationRun, error) {
	query := `
		SELECT run_id, started_at, source, row_count, synthetic,
			conditions, failed, records, data_version
		FROM evaluation_runs
		WHERE run_id = $1
	`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get evaluation run: %w", err)
	}
	return r, nil
}

// List retrieves all runs, ordered by started_at, run_id.
func (s *RunStore) List(ctx context.Context) ([]*domain.EvaluationRun, error) {
	query := `
		SELECT run_id, started_at, source, row_count, synthetic,
			conditions, failed, records, data_version
		FROM evaluation_runs
		ORDER BY started_at ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list evaluation runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.EvaluationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluation runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.EvaluationRun, error) {
	var (
		r                                  domain.EvaluationRun
		rowCount, conditions, failed, recs int32
	)
	err := row.Scan(
		&r.RunID, &r.StartedAt, &r.Source, &rowCount, &r.Synthetic,
		&conditions, &failed, &recs, &r.DataVersion,
	)
	if err != nil {
		return nil, err
	}
	r.RowCount = int(rowCount)
	r.Conditions = int(conditions)
	r.Failed = int(failed)
	r.Records = int(recs)
	return &r, nil
}
