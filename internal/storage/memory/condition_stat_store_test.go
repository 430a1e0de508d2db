package memory

import (
	"context"
	"errors"
	"testing"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/storage"
)

func newStat(runID, condition string, horizon domain.Horizon, mean float64) *domain.RunStat {
	return &domain.RunStat{
		RunID: runID,
		ConditionStatRecord: domain.ConditionStatRecord{
			Condition:   condition,
			Horizon:     horizon,
			SampleCount: 42,
			MeanBps:     mean,
			Regime:      domain.RegimeNoise,
		},
	}
}

func TestConditionStatStore_InsertAndGet(t *testing.T) {
	store := NewConditionStatStore()
	ctx := context.Background()

	stat := newStat("run-1", "htf = BULLISH", 5, 1.5)
	if err := store.Insert(ctx, stat); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByKey(ctx, "run-1", "htf = BULLISH", 5)
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.MeanBps != 1.5 || got.SampleCount != 42 {
		t.Errorf("unexpected stat: %+v", got)
	}

	// Returned value is a copy
	got.MeanBps = 99
	again, _ := store.GetByKey(ctx, "run-1", "htf = BULLISH", 5)
	if again.MeanBps != 1.5 {
		t.Errorf("store was mutated through returned pointer")
	}
}

func TestConditionStatStore_DuplicateKey(t *testing.T) {
	store := NewConditionStatStore()
	ctx := context.Background()

	stat := newStat("run-1", "c", 5, 1)
	if err := store.Insert(ctx, stat); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, stat)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same condition and horizon under another run is fine
	if err := store.Insert(ctx, newStat("run-2", "c", 5, 1)); err != nil {
		t.Errorf("Insert under new run failed: %v", err)
	}
}

func TestConditionStatStore_NotFound(t *testing.T) {
	store := NewConditionStatStore()

	_, err := store.GetByKey(context.Background(), "run-1", "missing", 5)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestConditionStatStore_InvalidInput(t *testing.T) {
	store := NewConditionStatStore()
	ctx := context.Background()

	for _, stat := range []*domain.RunStat{nil, newStat("", "c", 5, 0), newStat("r", "", 5, 0), newStat("r", "c", 0, 0)} {
		if err := store.Insert(ctx, stat); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for %+v, got %v", stat, err)
		}
	}
}

func TestConditionStatStore_InsertBulk(t *testing.T) {
	store := NewConditionStatStore()
	ctx := context.Background()

	stats := []*domain.RunStat{
		newStat("run-1", "b", 60, 1),
		newStat("run-1", "b", 5, 2),
		newStat("run-1", "a", 15, 3),
	}
	if err := store.InsertBulk(ctx, stats); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 stats, got %d", len(got))
	}
	if got[0].Condition != "a" || got[1].Horizon != 5 || got[2].Horizon != 60 {
		t.Errorf("unexpected order: %s/%d %s/%d %s/%d",
			got[0].Condition, got[0].Horizon, got[1].Condition, got[1].Horizon, got[2].Condition, got[2].Horizon)
	}
}

func TestConditionStatStore_InsertBulkDuplicateIsAtomic(t *testing.T) {
	store := NewConditionStatStore()
	ctx := context.Background()

	stats := []*domain.RunStat{
		newStat("run-1", "a", 5, 1),
		newStat("run-1", "a", 5, 2),
	}
	if err := store.InsertBulk(ctx, stats); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRun(ctx, "run-1")
	if len(got) != 0 {
		t.Errorf("expected no stats after failed batch, got %d", len(got))
	}
}

func TestConditionStatStore_GetByCondition(t *testing.T) {
	store := NewConditionStatStore()
	ctx := context.Background()

	_ = store.InsertBulk(ctx, []*domain.RunStat{
		newStat("run-2", "a", 5, 1),
		newStat("run-1", "a", 60, 1),
		newStat("run-1", "a", 5, 1),
		newStat("run-1", "b", 5, 1),
	})

	got, err := store.GetByCondition(ctx, "a")
	if err != nil {
		t.Fatalf("GetByCondition failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 stats, got %d", len(got))
	}
	if got[0].RunID != "run-1" || got[0].Horizon != 5 || got[2].RunID != "run-2" {
		t.Errorf("unexpected order")
	}
}
