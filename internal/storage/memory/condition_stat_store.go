package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

// ConditionStatStore is an in-memory implementation of storage.ConditionStatStore.
type ConditionStatStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunStat // keyed by (run_id, condition, horizon)
}

// NewConditionStatStore creates a new in-memory condition stat store.
func NewConditionStatStore() *ConditionStatStore {
	return &ConditionStatStore{
		data: make(map[string]*domain.RunStat),
	}
}

// statKey generates a unique key for a stat.
func statKey(runID, condition string, horizon domain.Horizon) string {
	return fmt.Sprintf("%s|%s|%d", runID, condition, horizon)
}

func validStat(s *domain.RunStat) bool {
	return s != nil && s.RunID != "" && s.Condition != "" && s.Horizon > 0
}

// Insert adds a new stat. Returns ErrDuplicateKey if key exists.
func (s *ConditionStatStore) Insert(_ context.Context, stat *domain.RunStat) error {
	if !validStat(stat) {
		return storage.ErrInvalidInput
	}

	key := statKey(stat.RunID, stat.Condition, stat.Horizon)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	statCopy := *stat
	s.data[key] = &statCopy
	return nil
}

// InsertBulk adds multiple stats atomically. Fails entire batch on any duplicate.
func (s *ConditionStatStore) InsertBulk(_ context.Context, stats []*domain.RunStat) error {
	if len(stats) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(stats))

	// First pass: check for duplicates (existing + intra-batch)
	for _, stat := range stats {
		if !validStat(stat) {
			return storage.ErrInvalidInput
		}
		key := statKey(stat.RunID, stat.Condition, stat.Horizon)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, stat := range stats {
		statCopy := *stat
		s.data[statKey(stat.RunID, stat.Condition, stat.Horizon)] = &statCopy
	}

	return nil
}

// GetByKey retrieves a stat by its composite key. Returns ErrNotFound if not exists.
func (s *ConditionStatStore) GetByKey(_ context.Context, runID, condition string, horizon domain.Horizon) (*domain.RunStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stat, exists := s.data[statKey(runID, condition, horizon)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	statCopy := *stat
	return &statCopy, nil
}

// GetByRun retrieves all stats of a run, ordered by condition, horizon.
func (s *ConditionStatStore) GetByRun(_ context.Context, runID string) ([]*domain.RunStat, error) {
	return s.filter(func(stat *domain.RunStat) bool { return stat.RunID == runID }), nil
}

// GetByCondition retrieves a condition's stats across runs, ordered by run, horizon.
func (s *ConditionStatStore) GetByCondition(_ context.Context, condition string) ([]*domain.RunStat, error) {
	return s.filter(func(stat *domain.RunStat) bool { return stat.Condition == condition }), nil
}

func (s *ConditionStatStore) filter(keep func(*domain.RunStat) bool) []*domain.RunStat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunStat
	for _, stat := range s.data {
		if keep(stat) {
			statCopy := *stat
			result = append(result, &statCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RunID != result[j].RunID {
			return result[i].RunID < result[j].RunID
		}
		if result[i].Condition != result[j].Condition {
			return result[i].Condition < result[j].Condition
		}
		return result[i].Horizon < result[j].Horizon
	})

	return result
}

var _ storage.ConditionStatStore = (*ConditionStatStore)(nil)
