package conditions

import (
	"errors"
	"fmt"
	"strconv"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
)

// FieldOrderflowState references the classifier output instead of a table column.
const FieldOrderflowState = "of_state"

// Comparison operators.
const (
	OpGT = ">"
	OpGE = ">="
	OpLT = "<"
	OpLE = "<="
	OpEQ = "=="
	OpNE = "!="
)

var (
	// ErrInvalidOperator is returned for an operator outside the supported set,
	// or an ordering operator applied to a label field.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrInvalidValue is returned when a clause value cannot be compared with its field.
	ErrInvalidValue = errors.New("invalid value")

	// ErrEmptyDefinition is returned for a definition without a name or clauses.
	ErrEmptyDefinition = errors.New("empty condition definition")

	// ErrDuplicateName is returned when two definitions share a name.
	ErrDuplicateName = errors.New("duplicate condition name")
)

// Clause compares one field against a constant.
type Clause struct {
	Field string `yaml:"field" validate:"required"`
	Op    string `yaml:"op" validate:"required"`
	Value any    `yaml:"value"`
}

// Definition is a named conjunction of clauses.
type Definition struct {
	Name string   `yaml:"name" validate:"required"`
	All  []Clause `yaml:"all" validate:"required,min=1,dive"`
}

// Compile turns a definition into an evaluable condition.
// Field names are resolved per row, so a definition naming an unknown field
// compiles but fails with edge.ErrUnknownField when evaluated.
func Compile(def Definition) (edge.Condition, error) {
	if def.Name == "" || len(def.All) == 0 {
		return edge.Condition{}, fmt.Errorf("%w: %q", ErrEmptyDefinition, def.Name)
	}

	clauses := make([]compiledClause, len(def.All))
	for i, c := range def.All {
		cc, err := compileClause(c)
		if err != nil {
			return edge.Condition{}, fmt.Errorf("condition %q clause %d: %w", def.Name, i, err)
		}
		clauses[i] = cc
	}

	return edge.Condition{
		Name: def.Name,
		Predicate: func(f *edge.Frame, i int) (bool, error) {
			for _, c := range clauses {
				ok, err := c.eval(f, i)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			return true, nil
		},
	}, nil
}

// CompileAll compiles every definition, stopping at the first error.
// Names must be unique since results are keyed by condition name.
func CompileAll(defs []Definition) ([]edge.Condition, error) {
	out := make([]edge.Condition, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
		}
		seen[d.Name] = struct{}{}
		c, err := Compile(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CompileEach compiles every definition on its own. A definition that fails to
// compile is reported as a failure and left out; the others are still returned.
func CompileEach(defs []Definition) ([]edge.Condition, []edge.ConditionFailure) {
	var (
		out      []edge.Condition
		failures []edge.ConditionFailure
	)
	for _, d := range defs {
		c, err := Compile(d)
		if err != nil {
			failures = append(failures, edge.ConditionFailure{Condition: d.Name, Err: err})
			continue
		}
		out = append(out, c)
	}
	return out, failures
}

// checkUnique returns ErrDuplicateName for the first name seen twice across the lists.
func checkUnique(lists ...[]Definition) error {
	seen := make(map[string]struct{})
	for _, defs := range lists {
		for _, d := range defs {
			if _, dup := seen[d.Name]; dup {
				return fmt.Errorf("%w: %q", ErrDuplicateName, d.Name)
			}
			seen[d.Name] = struct{}{}
		}
	}
	return nil
}

type compiledClause struct {
	field   string
	op      string
	number  float64
	text    string
	numeric bool // value parsed as a number
}

func compileClause(c Clause) (compiledClause, error) {
	switch c.Op {
	case OpGT, OpGE, OpLT, OpLE, OpEQ, OpNE:
	default:
		return compiledClause{}, fmt.Errorf("%w: %q", ErrInvalidOperator, c.Op)
	}

	cc := compiledClause{field: c.Field, op: c.Op}
	switch v := c.Value.(type) {
	case int:
		cc.number, cc.numeric = float64(v), true
	case int64:
		cc.number, cc.numeric = float64(v), true
	case float64:
		cc.number, cc.numeric = v, true
	case string:
		cc.text = v
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cc.number, cc.numeric = f, true
		}
	default:
		return compiledClause{}, fmt.Errorf("%w: %v (%T)", ErrInvalidValue, c.Value, c.Value)
	}
	if !cc.numeric {
		if cc.op != OpEQ && cc.op != OpNE {
			return compiledClause{}, fmt.Errorf("%w: %q on label value %q", ErrInvalidOperator, cc.op, cc.text)
		}
	}
	return cc, nil
}

func (c compiledClause) eval(f *edge.Frame, i int) (bool, error) {
	row := f.Row(i)

	if c.field == FieldOrderflowState {
		if f.States == nil {
			return false, fmt.Errorf("%w: %s (rows not classified)", edge.ErrUnknownField, c.field)
		}
		return c.compareText(string(f.State(i)))
	}

	if v, ok := row.Numeric(c.field); ok {
		if !c.numeric {
			return false, fmt.Errorf("%w: %q is not numeric for field %s", ErrInvalidValue, c.text, c.field)
		}
		return c.compareNumber(v), nil
	}
	if s, ok := row.Text(c.field); ok {
		return c.compareText(s)
	}
	return false, fmt.Errorf("%w: %s", edge.ErrUnknownField, c.field)
}

func (c compiledClause) compareNumber(v float64) bool {
	switch c.op {
	case OpGT:
		return v > c.number
	case OpGE:
		return v >= c.number
	case OpLT:
		return v < c.number
	case OpLE:
		return v <= c.number
	case OpEQ:
		return v == c.number
	default:
		return v != c.number
	}
}

func (c compiledClause) compareText(s string) (bool, error) {
	want := c.text
	if want == "" && c.numeric {
		want = strconv.FormatFloat(c.number, 'f', -1, 64)
	}
	switch c.op {
	case OpEQ:
		return s == want, nil
	case OpNE:
		return s != want, nil
	default:
		return false, fmt.Errorf("%w: %q on label field", ErrInvalidOperator, c.op)
	}
}

// stateDefinition matches rows classified as s.
func stateDefinition(s domain.OrderflowState) Definition {
	return Definition{
		Name: "of_state = " + string(s),
		All:  []Clause{{Field: FieldOrderflowState, Op: OpEQ, Value: string(s)}},
	}
}
