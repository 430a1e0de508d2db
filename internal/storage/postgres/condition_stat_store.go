package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

// ConditionStatStore implements storage.ConditionStatStore using PostgreSQL.
type ConditionStatStore struct {
	pool *Pool
}

// NewConditionStatStore creates a new ConditionStatStore.
func NewConditionStatStore(pool *Pool) *ConditionStatStore {
	return &ConditionStatStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ConditionStatStore = (*ConditionStatStore)(nil)

const insertConditionStat = `
	INSERT INTO condition_stats (
		run_id, condition_name, horizon_s,
		sample_count, win_rate, mean_bps, median_bps, std_bps,
		net_expectancy, expectancy, avg_win, avg_loss, kelly_fraction, sharpe,
		t_stat, p_value, is_significant, low_sample_flag,
		consistency_score, regime
	) VALUES (
		$1, $2, $3,
		$4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18,
		$19, $20
	)
`

const selectConditionStat = `
	SELECT
		run_id, condition_name, horizon_s,
		sample_count, win_rate, mean_bps, median_bps, std_bps,
		net_expectancy, expectancy, avg_win, avg_loss, kelly_fraction, sharpe,
		t_stat, p_value, is_significant, low_sample_flag,
		consistency_score, regime
	FROM condition_stats
`

func statArgs(s *domain.RunStat) []any {
	return []any{
		s.RunID, s.Condition, int32(s.Horizon),
		int32(s.SampleCount), s.WinRate, s.MeanBps, s.MedianBps, s.StdBps,
		s.NetExpectancy, s.Expectancy, s.AvgWin, s.AvgLoss, s.KellyFraction, s.Sharpe,
		s.TStat, s.PValue, s.IsSignificant, s.LowSampleFlag,
		s.ConsistencyScore, string(s.Regime),
	}
}

func insertError(err error, what string) error {
	switch {
	case isDuplicateKeyError(err):
		return storage.ErrDuplicateKey
	case isForeignKeyError(err):
		return fmt.Errorf("%w: unknown run_id", storage.ErrInvalidInput)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// Insert adds a new stat. Returns ErrDuplicateKey if (run_id, condition, horizon) exists.
func (s *ConditionStatStore) Insert(ctx context.Context, stat *domain.RunStat) error {
	if stat == nil || stat.RunID == "" || stat.Condition == "" || stat.Horizon <= 0 {
		return storage.ErrInvalidInput
	}

	if _, err := s.pool.Exec(ctx, insertConditionStat, statArgs(stat)...); err != nil {
		return insertError(err, "insert condition stat")
	}
	return nil
}

// InsertBulk adds multiple stats atomically. Fails entire batch on any duplicate.
func (s *ConditionStatStore) InsertBulk(ctx context.Context, stats []*domain.RunStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stat := range stats {
		if stat == nil || stat.RunID == "" || stat.Condition == "" || stat.Horizon <= 0 {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, insertConditionStat, statArgs(stat)...); err != nil {
			return insertError(err, "insert condition stat in bulk")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByKey retrieves one stat. Returns ErrNotFound if not exists.
func (s *ConditionStatStore) GetByKey(ctx context.Context, runID, condition string, horizon domain.Horizon) (*domain.RunStat, error) {
	query := selectConditionStat + `
		WHERE run_id = $1 AND condition_name = $2 AND horizon_s = $3
	`

	stat, err := scanConditionStat(s.pool.QueryRow(ctx, query, runID, condition, int32(horizon)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get condition stat by key: %w", err)
	}
	return stat, nil
}

// GetByRun retrieves all stats of a run, ordered by condition, horizon.
func (s *ConditionStatStore) GetByRun(ctx context.Context, runID string) ([]*domain.RunStat, error) {
	query := selectConditionStat + `
		WHERE run_id = $1
		ORDER BY condition_name ASC, horizon_s ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get condition stats by run: %w", err)
	}
	defer rows.Close()

	return scanConditionStats(rows)
}

// GetByCondition retrieves a condition's stats across runs, ordered by run, horizon.
func (s *ConditionStatStore) GetByCondition(ctx context.Context, condition string) ([]*domain.RunStat, error) {
	query := selectConditionStat + `
		WHERE condition_name = $1
		ORDER BY run_id ASC, horizon_s ASC
	`

	rows, err := s.pool.Query(ctx, query, condition)
	if err != nil {
		return nil, fmt.Errorf("get condition stats by condition: %w", err)
	}
	defer rows.Close()

	return scanConditionStats(rows)
}

// scanConditionStat scans a single row.
func scanConditionStat(row pgx.Row) (*domain.RunStat, error) {
	var (
		s       domain.RunStat
		horizon int32
		samples int32
		regime  string
	)
	err := row.Scan(
		&s.RunID, &s.Condition, &horizon,
		&samples, &s.WinRate, &s.MeanBps, &s.MedianBps, &s.StdBps,
		&s.NetExpectancy, &s.Expectancy, &s.AvgWin, &s.AvgLoss, &s.KellyFraction, &s.Sharpe,
		&s.TStat, &s.PValue, &s.IsSignificant, &s.LowSampleFlag,
		&s.ConsistencyScore, &regime,
	)
	if err != nil {
		return nil, err
	}
	s.Horizon = domain.Horizon(horizon)
	s.SampleCount = int(samples)
	s.Regime = domain.Regime(regime)
	return &s, nil
}

// scanConditionStats scans multiple rows.
func scanConditionStats(rows pgx.Rows) ([]*domain.RunStat, error) {
	var stats []*domain.RunStat
	for rows.Next() {
		s, err := scanConditionStat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan condition stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate condition stats: %w", err)
	}
	return stats, nil
}
