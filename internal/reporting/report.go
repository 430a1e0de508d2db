package reporting

import (
	"time"

	"orderflow-edge-lab/internal/decision"
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
)

// EdgeReport is the condition edge report of one evaluation run.
type EdgeReport struct {
	GeneratedAt time.Time
	Run         domain.EvaluationRun

	// Horizons present in at least one record, ascending
	Horizons []domain.Horizon

	// Condition results grouped from stored records (sorted by condition name)
	Conditions []*domain.ConditionResult

	// Verdicts and confidence tiers, presentation only
	Assessments []*decision.Assessment

	// Conditions omitted because evaluation failed (empty when loaded from a store)
	Failures []FailureRow

	// Conditions evaluated without reaching the minimum sample at any horizon
	// (empty when loaded from a store)
	Insufficient []InsufficientRow

	// Data sufficiency of the input table, nil when not checked
	DataQuality *DataQuality
}

// DataQuality summarises the sufficiency checks run on the input table.
type DataQuality struct {
	Checks  []SufficiencyCheckRow
	AllPass bool
}

// SufficiencyCheckRow is one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// InsufficientRow is a condition that produced no record.
type InsufficientRow struct {
	Condition string
	Matches   int
}

// FailureRow describes one omitted condition.
type FailureRow struct {
	Condition string
	Error     string
}

// StateReport is the orderflow state report of one feature table.
type StateReport struct {
	GeneratedAt time.Time
	Source      string
	RowCount    int
	Synthetic   bool
	StartMs     int64
	EndMs       int64

	Horizons     []domain.Horizon
	Distribution []StateCountRow

	// One result per state condition, in report order
	States []*domain.ConditionResult

	Reversals []edge.ReversalResult
}

// StateCountRow is one row of the state distribution.
type StateCountRow struct {
	State domain.OrderflowState
	Count int
	Pct   float64 // 0-100
}

// HistoryRow is one (run, horizon) record of a condition across runs.
type HistoryRow struct {
	RunID     string
	StartedAt int64 // Unix ms
	Record    *domain.ConditionStatRecord
}
