package clickhouse

import (
	"context"
	"fmt"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

// ConditionStatStore implements storage.ConditionStatStore using ClickHouse.
// Used as the analytical copy of condition_stats for cross-run queries.
type ConditionStatStore struct {
	conn *Conn
}

// NewConditionStatStore creates a new ConditionStatStore.
func NewConditionStatStore(conn *Conn) *ConditionStatStore {
	return &ConditionStatStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ConditionStatStore = (*ConditionStatStore)(nil)

const conditionStatColumns = `
	run_id, condition_name, horizon_s,
	sample_count, win_rate, mean_bps, median_bps, std_bps,
	net_expectancy, expectancy, avg_win, avg_loss, kelly_fraction, sharpe,
	t_stat, p_value, is_significant, low_sample_flag,
	consistency_score, regime
`

func statValues(s *domain.RunStat) []any {
	return []any{
		s.RunID, s.Condition, uint32(s.Horizon),
		uint32(s.SampleCount), s.WinRate, s.MeanBps, s.MedianBps, s.StdBps,
		s.NetExpectancy, s.Expectancy, s.AvgWin, s.AvgLoss, s.KellyFraction, s.Sharpe,
		s.TStat, s.PValue, s.IsSignificant, s.LowSampleFlag,
		s.ConsistencyScore, string(s.Regime),
	}
}

func validStat(s *domain.RunStat) bool {
	return s != nil && s.RunID != "" && s.Condition != "" && s.Horizon > 0 && s.SampleCount >= 0
}

// Insert adds a new stat. Returns ErrDuplicateKey if (run_id, condition, horizon) exists.
func (s *ConditionStatStore) Insert(ctx context.Context, stat *domain.RunStat) error {
	if !validStat(stat) {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would replace, but condition_stats is append-only
	exists, err := s.exists(ctx, stat.RunID, stat.Condition, stat.Horizon)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO condition_stats (` + conditionStatColumns + `) VALUES (
		?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?, ?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?
	)`

	if err := s.conn.Exec(ctx, query, statValues(stat)...); err != nil {
		return fmt.Errorf("insert condition stat: %w", err)
	}
	return nil
}

// InsertBulk adds multiple stats atomically. Fails entire batch on any duplicate.
func (s *ConditionStatStore) InsertBulk(ctx context.Context, stats []*domain.RunStat) error {
	if len(stats) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(stats))
	for _, st := range stats {
		if !validStat(st) {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%s|%d", st.RunID, st.Condition, st.Horizon)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, st := range stats {
		exists, err := s.exists(ctx, st.RunID, st.Condition, st.Horizon)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO condition_stats (`+conditionStatColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, st := range stats {
		if err := batch.Append(statValues(st)...); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByKey retrieves one stat. Returns ErrNotFound if not exists.
func (s *ConditionStatStore) GetByKey(ctx context.Context, runID, condition string, horizon domain.Horizon) (*domain.RunStat, error) {
	query := `SELECT ` + conditionStatColumns + `
		FROM condition_stats FINAL
		WHERE run_id = ? AND condition_name = ? AND horizon_s = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, runID, condition, uint32(horizon))
	if err != nil {
		return nil, fmt.Errorf("query by key: %w", err)
	}
	defer rows.Close()

	stats, err := scanConditionStats(rows)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, storage.ErrNotFound
	}
	return stats[0], nil
}

// GetByRun retrieves all stats of a run, ordered by condition, horizon.
func (s *ConditionStatStore) GetByRun(ctx context.Context, runID string) ([]*domain.RunStat, error) {
	query := `SELECT ` + conditionStatColumns + `
		FROM condition_stats FINAL
		WHERE run_id = ?
		ORDER BY condition_name ASC, horizon_s ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanConditionStats(rows)
}

// GetByCondition retrieves a condition's stats across runs, ordered by run, horizon.
func (s *ConditionStatStore) GetByCondition(ctx context.Context, condition string) ([]*domain.RunStat, error) {
	query := `SELECT ` + conditionStatColumns + `
		FROM condition_stats FINAL
		WHERE condition_name = ?
		ORDER BY run_id ASC, horizon_s ASC
	`

	rows, err := s.conn.Query(ctx, query, condition)
	if err != nil {
		return nil, fmt.Errorf("query by condition: %w", err)
	}
	defer rows.Close()

	return scanConditionStats(rows)
}

// exists checks if a stat with the given key exists.
func (s *ConditionStatStore) exists(ctx context.Context, runID, condition string, horizon domain.Horizon) (bool, error) {
	query := `
		SELECT count(*) FROM condition_stats FINAL
		WHERE run_id = ? AND condition_name = ? AND horizon_s = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, condition, uint32(horizon)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanConditionStats scans multiple rows into a slice.
func scanConditionStats(rows chRows) ([]*domain.RunStat, error) {
	var stats []*domain.RunStat

	for rows.Next() {
		var (
			st      domain.RunStat
			horizon uint32
			samples uint32
			regime  string
		)
		err := rows.Scan(
			&st.RunID, &st.Condition, &horizon,
			&samples, &st.WinRate, &st.MeanBps, &st.MedianBps, &st.StdBps,
			&st.NetExpectancy, &st.Expectancy, &st.AvgWin, &st.AvgLoss, &st.KellyFraction, &st.Sharpe,
			&st.TStat, &st.PValue, &st.IsSignificant, &st.LowSampleFlag,
			&st.ConsistencyScore, &regime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan condition stat row: %w", err)
		}
		st.Horizon = domain.Horizon(horizon)
		st.SampleCount = int(samples)
		st.Regime = domain.Regime(regime)
		stats = append(stats, &st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate condition stat rows: %w", err)
	}

	return stats, nil
}
