package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"orderflow-edge-lab/internal/decision"
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
	"orderflow-edge-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore  storage.RunStore
	statStore storage.ConditionStatStore
	decisions *decision.Evaluator
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore, statStore storage.ConditionStatStore, decisions *decision.Evaluator) *Generator {
	return &Generator{
		runStore:  runStore,
		statStore: statStore,
		decisions: decisions,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the edge report of a stored run.
func (g *Generator) Generate(ctx context.Context, runID string) (*EdgeReport, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	stats, err := g.statStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load condition stats of %s: %w", runID, err)
	}

	results := groupResults(stats)

	return &EdgeReport{
		GeneratedAt: g.now(),
		Run:         *run,
		Horizons:    horizonsOf(results),
		Conditions:  results,
		Assessments: decision.NewBuilder(g.decisions).Build(results),
	}, nil
}

// History returns a condition's records across all stored runs,
// ordered by run start time, then horizon.
func (g *Generator) History(ctx context.Context, condition string) ([]HistoryRow, error) {
	stats, err := g.statStore.GetByCondition(ctx, condition)
	if err != nil {
		return nil, fmt.Errorf("load history of %q: %w", condition, err)
	}

	started := make(map[string]int64)
	rows := make([]HistoryRow, 0, len(stats))
	for _, st := range stats {
		ts, ok := started[st.RunID]
		if !ok {
			run, err := g.runStore.GetByID(ctx, st.RunID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				// Stats and runs may live in different backends; unknown runs sort first.
				ts = 0
			case err != nil:
				return nil, fmt.Errorf("load run %s: %w", st.RunID, err)
			default:
				ts = run.StartedAt
			}
			started[st.RunID] = ts
		}
		rec := st.ConditionStatRecord
		rows = append(rows, HistoryRow{RunID: st.RunID, StartedAt: ts, Record: &rec})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].StartedAt != rows[j].StartedAt {
			return rows[i].StartedAt < rows[j].StartedAt
		}
		if rows[i].RunID != rows[j].RunID {
			return rows[i].RunID < rows[j].RunID
		}
		return rows[i].Record.Horizon < rows[j].Record.Horizon
	})

	return rows, nil
}

// WithFailures attaches the conditions omitted during evaluation.
func (r *EdgeReport) WithFailures(failures []edge.ConditionFailure) *EdgeReport {
	r.Failures = make([]FailureRow, len(failures))
	for i, f := range failures {
		r.Failures[i] = FailureRow{Condition: f.Condition, Error: f.Err.Error()}
	}
	sort.Slice(r.Failures, func(i, j int) bool {
		return r.Failures[i].Condition < r.Failures[j].Condition
	})
	return r
}

// WithMatchCounts copies the match counts of in-memory results onto the stored
// conditions, and lists the conditions that produced no record at any horizon.
func (r *EdgeReport) WithMatchCounts(results []*domain.ConditionResult) *EdgeReport {
	stored := make(map[string]*domain.ConditionResult, len(r.Conditions))
	for _, res := range r.Conditions {
		stored[res.Name] = res
	}

	r.Insufficient = nil
	for _, res := range results {
		if s, ok := stored[res.Name]; ok {
			s.MatchCount = res.MatchCount
			continue
		}
		if len(res.Records) == 0 {
			r.Insufficient = append(r.Insufficient, InsufficientRow{Condition: res.Name, Matches: res.MatchCount})
		}
	}
	sort.Slice(r.Insufficient, func(i, j int) bool {
		return r.Insufficient[i].Condition < r.Insufficient[j].Condition
	})
	return r
}

// BuildStateReport assembles the state report from classified rows and state condition results.
func BuildStateReport(
	table *domain.FeatureTable,
	labels []domain.OrderflowState,
	states []*domain.ConditionResult,
	reversals []edge.ReversalResult,
	horizons []domain.Horizon,
	now time.Time,
) *StateReport {
	start, end := table.TimeRange()
	return &StateReport{
		GeneratedAt:  now,
		Source:       table.Source,
		RowCount:     table.Len(),
		Synthetic:    table.Synthetic,
		StartMs:      start,
		EndMs:        end,
		Horizons:     horizons,
		Distribution: distributionRows(labels),
		States:       states,
		Reversals:    reversals,
	}
}

// distributionRows counts labels for every state in report order.
func distributionRows(labels []domain.OrderflowState) []StateCountRow {
	counts := make(map[domain.OrderflowState]int)
	for _, l := range labels {
		counts[l]++
	}

	states := domain.AllStates()
	rows := make([]StateCountRow, len(states))
	for i, s := range states {
		rows[i] = StateCountRow{State: s, Count: counts[s]}
		if len(labels) > 0 {
			rows[i].Pct = float64(counts[s]) / float64(len(labels)) * 100
		}
	}
	return rows
}

// groupResults rebuilds condition results from stored records, sorted by condition name.
func groupResults(stats []*domain.RunStat) []*domain.ConditionResult {
	byName := make(map[string]*domain.ConditionResult)
	for _, st := range stats {
		res, ok := byName[st.Condition]
		if !ok {
			res = &domain.ConditionResult{
				Name:        st.Condition,
				Records:     make(map[domain.Horizon]*domain.ConditionStatRecord),
				Consistency: st.ConsistencyScore,
				Regime:      st.Regime,
			}
			byName[st.Condition] = res
		}
		rec := st.ConditionStatRecord
		res.Records[rec.Horizon] = &rec
	}

	results := make([]*domain.ConditionResult, 0, len(byName))
	for _, res := range byName {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results
}

// horizonsOf returns the union of record horizons, ascending.
func horizonsOf(results []*domain.ConditionResult) []domain.Horizon {
	seen := make(map[domain.Horizon]struct{})
	var out []domain.Horizon
	for _, res := range results {
		for h := range res.Records {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
