package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

// FeatureRowStore is an in-memory implementation of storage.FeatureRowStore.
type FeatureRowStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]*domain.FeatureRow // series -> timestamp_ms -> row
}

// NewFeatureRowStore creates a new in-memory feature row store.
func NewFeatureRowStore() *FeatureRowStore {
	return &FeatureRowStore{
		data: make(map[string]map[int64]*domain.FeatureRow),
	}
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *FeatureRowStore) InsertBulk(_ context.Context, series string, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	if series == "" {
		return fmt.Errorf("%w: empty series", storage.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[series]
	batchKeys := make(map[int64]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := existing[r.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.TimestampMs]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.TimestampMs] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]*domain.FeatureRow, len(rows))
		s.data[series] = existing
	}
	for _, r := range rows {
		rowCopy := *r
		existing[r.TimestampMs] = &rowCopy
	}

	return nil
}

// GetByTimeRange retrieves rows within [start, end] (inclusive), ordered by timestamp ASC.
func (s *FeatureRowStore) GetByTimeRange(_ context.Context, series string, start, end int64) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for ts, r := range s.data[series] {
		if ts >= start && ts <= end {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)
