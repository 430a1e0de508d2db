package conditions

import (
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
)

func clause(field, op string, value any) Clause {
	return Clause{Field: field, Op: op, Value: value}
}

// SignalDefinitions returns the built-in conditions over the upstream signal fields.
func SignalDefinitions() []Definition {
	return []Definition{
		// Score thresholds
		{Name: "finalScore > +40", All: []Clause{clause(domain.FieldFinalScore, OpGT, 40)}},
		{Name: "finalScore > +60", All: []Clause{clause(domain.FieldFinalScore, OpGT, 60)}},
		{Name: "finalScore < -40", All: []Clause{clause(domain.FieldFinalScore, OpLT, -40)}},
		{Name: "finalScore < -60", All: []Clause{clause(domain.FieldFinalScore, OpLT, -60)}},

		// Action hints
		{Name: "action = WATCH_LONG", All: []Clause{clause(domain.FieldActionHint, OpEQ, "WATCH_LONG")}},
		{Name: "action = WATCH_SHORT", All: []Clause{clause(domain.FieldActionHint, OpEQ, "WATCH_SHORT")}},
		{Name: "action = NO_TRADE", All: []Clause{clause(domain.FieldActionHint, OpEQ, "NO_TRADE")}},

		// HTF bias
		{Name: "htf = BULLISH", All: []Clause{clause(domain.FieldHTFBias, OpEQ, "BULLISH")}},
		{Name: "htf = BEARISH", All: []Clause{clause(domain.FieldHTFBias, OpEQ, "BEARISH")}},

		// Market state
		{Name: "state = TRENDING_UP", All: []Clause{clause(domain.FieldMarketState, OpEQ, "TRENDING_UP")}},
		{Name: "state = TRENDING_DOWN", All: []Clause{clause(domain.FieldMarketState, OpEQ, "TRENDING_DOWN")}},
		{Name: "state = PULLBACK_IN_UPTREND", All: []Clause{clause(domain.FieldMarketState, OpEQ, "PULLBACK_IN_UPTREND")}},
		{Name: "state = RALLY_INTO_RESISTANCE", All: []Clause{clause(domain.FieldMarketState, OpEQ, "RALLY_INTO_RESISTANCE")}},

		// Orderbook extremes
		{Name: "ob_score > +40", All: []Clause{clause(domain.FieldOBScore, OpGT, 40)}},
		{Name: "ob_score < -40", All: []Clause{clause(domain.FieldOBScore, OpLT, -40)}},

		// OI behavior
		{Name: "behavior = LONG_BUILDUP", All: []Clause{clause(domain.FieldBehavior, OpEQ, 1)}},
		{Name: "behavior = SHORT_BUILDUP", All: []Clause{clause(domain.FieldBehavior, OpEQ, 2)}},

		// Combined
		{Name: "BULL: score>40 + action=LONG", All: []Clause{
			clause(domain.FieldFinalScore, OpGT, 40),
			clause(domain.FieldActionHint, OpEQ, "WATCH_LONG"),
		}},
		{Name: "BEAR: score<-40 + action=SHORT", All: []Clause{
			clause(domain.FieldFinalScore, OpLT, -40),
			clause(domain.FieldActionHint, OpEQ, "WATCH_SHORT"),
		}},
		{Name: "BULL: score>40 + long_buildup", All: []Clause{
			clause(domain.FieldFinalScore, OpGT, 40),
			clause(domain.FieldBehavior, OpEQ, 1),
		}},
		{Name: "BEAR: score<-40 + short_buildup", All: []Clause{
			clause(domain.FieldFinalScore, OpLT, -40),
			clause(domain.FieldBehavior, OpEQ, 2),
		}},
	}
}

// StateDefinitions returns one condition per orderflow state, in report order.
func StateDefinitions() []Definition {
	states := domain.AllStates()
	defs := make([]Definition, len(states))
	for i, s := range states {
		defs[i] = stateDefinition(s)
	}
	return defs
}

// Signals compiles the built-in signal conditions followed by extra user definitions.
// Names must be unique across built-in signals, state conditions and extras.
// An extra definition that does not compile is returned as a failure instead of an error.
func Signals(extra []Definition) ([]edge.Condition, []edge.ConditionFailure, error) {
	builtin := SignalDefinitions()
	if err := checkUnique(builtin, StateDefinitions(), extra); err != nil {
		return nil, nil, err
	}

	conds, err := CompileAll(builtin)
	if err != nil {
		return nil, nil, err
	}
	user, failures := CompileEach(extra)
	return append(conds, user...), failures, nil
}

// States compiles the per-state conditions.
func States() ([]edge.Condition, error) {
	return CompileAll(StateDefinitions())
}
