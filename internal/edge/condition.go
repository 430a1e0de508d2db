package edge

import (
	"errors"

	"orderflow-edge-lab/internal/domain"
)

// ErrUnknownField is returned by a predicate that references a column the feature table does not have.
var ErrUnknownField = errors.New("unknown field")

// Frame is the read-only evaluation context shared by all conditions of a run.
type Frame struct {
	Table   *domain.FeatureTable
	Returns domain.ForwardReturnSet
	States  []domain.OrderflowState // aligned to Table.Rows, nil if not classified
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.Table.Len()
}

// Row returns row i.
func (f *Frame) Row(i int) *domain.FeatureRow {
	return &f.Table.Rows[i]
}

// State returns the orderflow state of row i, or "" when states are not available.
func (f *Frame) State(i int) domain.OrderflowState {
	if i < 0 || i >= len(f.States) {
		return ""
	}
	return f.States[i]
}

// Predicate reports whether a condition holds at row i.
type Predicate func(f *Frame, i int) (bool, error)

// Condition is a named boolean predicate over rows.
type Condition struct {
	Name      string
	Predicate Predicate
}

// ConditionFailure describes a condition omitted from the results because its evaluation failed.
type ConditionFailure struct {
	Condition string
	Err       error
}

func (f ConditionFailure) Error() string {
	return f.Condition + ": " + f.Err.Error()
}

func (f ConditionFailure) Unwrap() error {
	return f.Err
}
