package clickhouse

import (
	"context"
	"fmt"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

// FeatureRowStore implements storage.FeatureRowStore using ClickHouse.
type FeatureRowStore struct {
	conn *Conn
}

// NewFeatureRowStore creates a new FeatureRowStore.
func NewFeatureRowStore(conn *Conn) *FeatureRowStore {
	return &FeatureRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)

const featureRowColumns = `
	series, timestamp_ms, price,
	oi_delta, delta_1s, cvd, cvd_change, ob_score,
	oi, final_score, score_1m, score_5m, score_15m, score_1h,
	action_hint, htf_bias, market_state, behavior, event_flags
`

// InsertBulk adds multiple rows. Fails entire batch on duplicate (series, timestamp_ms).
func (s *FeatureRowStore) InsertBulk(ctx context.Context, series string, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	if series == "" {
		return fmt.Errorf("%w: empty series", storage.ErrInvalidInput)
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(rows))
	minTs, maxTs := int64(0), int64(0)
	for i, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.TimestampMs] = struct{}{}
		if i == 0 || r.TimestampMs < minTs {
			minTs = r.TimestampMs
		}
		if i == 0 || r.TimestampMs > maxTs {
			maxTs = r.TimestampMs
		}
	}

	// Check for duplicates against existing DB rows in one range scan
	existing, err := s.timestamps(ctx, series, minTs, maxTs)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, ts := range existing {
		if _, dup := seen[ts]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO feature_rows (`+featureRowColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			series, r.TimestampMs, r.Price,
			r.OIDelta, r.Delta1s, r.CVD, r.CVDChange, r.OBScore,
			r.OI, r.FinalScore, r.Score1m, r.Score5m, r.Score15m, r.Score1h,
			r.ActionHint, r.HTFBias, r.MarketState, int32(r.Behavior), r.EventFlags,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves rows within [start, end] (inclusive), ordered by timestamp ASC.
func (s *FeatureRowStore) GetByTimeRange(ctx context.Context, series string, start, end int64) ([]*domain.FeatureRow, error) {
	query := `
		SELECT
			timestamp_ms, price,
			oi_delta, delta_1s, cvd, cvd_change, ob_score,
			oi, final_score, score_1m, score_5m, score_15m, score_1h,
			action_hint, htf_bias, market_state, behavior, event_flags
		FROM feature_rows FINAL
		WHERE series = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, series, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// timestamps returns the stored timestamps of a series within [start, end].
func (s *FeatureRowStore) timestamps(ctx context.Context, series string, start, end int64) ([]int64, error) {
	query := `
		SELECT timestamp_ms FROM feature_rows FINAL
		WHERE series = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`

	rows, err := s.conn.Query(ctx, query, series, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// scanFeatureRows scans multiple rows into a slice.
func scanFeatureRows(rows chRows) ([]*domain.FeatureRow, error) {
	var result []*domain.FeatureRow

	for rows.Next() {
		var (
			r        domain.FeatureRow
			behavior int32
		)
		err := rows.Scan(
			&r.TimestampMs, &r.Price,
			&r.OIDelta, &r.Delta1s, &r.CVD, &r.CVDChange, &r.OBScore,
			&r.OI, &r.FinalScore, &r.Score1m, &r.Score5m, &r.Score15m, &r.Score1h,
			&r.ActionHint, &r.HTFBias, &r.MarketState, &behavior, &r.EventFlags,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		r.Behavior = int(behavior)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}

	return result, nil
}
