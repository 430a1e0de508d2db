package classifier

import (
	"math"

	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/features"
)

// Input holds the features of one row needed for classification.
// NaN and infinite values are treated as 0.
type Input struct {
	PriceChangeBps float64 // row-to-row price change
	OIDelta        float64
	Delta1s        float64
	CVD            float64
	CVDChange      float64
	OBScore        float64 // carried for reporting, not used by any rule
}

// Classifier labels rows with an orderflow state.
type Classifier struct {
	thresholds Thresholds
	rules      []Rule
}

// New creates a classifier using the default rule table.
func New(thresholds Thresholds) *Classifier {
	return &Classifier{
		thresholds: thresholds,
		rules:      Rules,
	}
}

// Thresholds returns the classifier's thresholds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Signals evaluates the threshold predicates for one input.
func (c *Classifier) Signals(in Input) Signals {
	t := c.thresholds
	price := finite(in.PriceChangeBps)
	oi := finite(in.OIDelta)
	cvd := finite(in.CVD)

	agg := finite(in.Delta1s)
	if math.Abs(agg) <= t.AggEpsilon {
		agg = finite(in.CVDChange)
	}

	return Signals{
		PriceUp:   price > t.PriceUpBps,
		PriceDown: price < t.PriceDownBps,
		OIUp:      oi > t.OIUp,
		OIDown:    oi < t.OIDown,
		AggBull:   agg > t.AggBull,
		AggBear:   agg < t.AggBear,
		CVDBull:   cvd > t.CVDLevelBull,
		CVDBear:   cvd < t.CVDLevelBear,
	}
}

// Classify returns the state of the first matching rule, or NEUTRAL_CHOP.
func (c *Classifier) Classify(in Input) domain.OrderflowState {
	s := c.Signals(in)
	for _, r := range c.rules {
		if r.Match(s) {
			return r.Label
		}
	}
	return domain.NeutralChop
}

// MatchedRule returns the name of the first matching rule, or FallbackRule.
func (c *Classifier) MatchedRule(in Input) string {
	s := c.Signals(in)
	for _, r := range c.rules {
		if r.Match(s) {
			return r.Name
		}
	}
	return FallbackRule
}

// Inputs derives per-row classifier inputs from a feature table.
// Price change is computed from the price series; the first row's change is 0.
func Inputs(table *domain.FeatureTable) []Input {
	changes := features.PriceChangeBps(table.Prices())
	inputs := make([]Input, table.Len())
	for i := range inputs {
		row := &table.Rows[i]
		inputs[i] = Input{
			PriceChangeBps: changes[i],
			OIDelta:        row.OIDelta,
			Delta1s:        row.Delta1s,
			CVD:            row.CVD,
			CVDChange:      row.CVDChange,
			OBScore:        row.OBScore,
		}
	}
	return inputs
}

// ClassifyTable labels every row of the table by applying the rule table
// to each row in descending priority.
func (c *Classifier) ClassifyTable(table *domain.FeatureTable) []domain.OrderflowState {
	inputs := Inputs(table)
	labels := make([]domain.OrderflowState, len(inputs))
	for i, in := range inputs {
		labels[i] = c.Classify(in)
	}
	return labels
}

// ClassifyTableOverwrite labels every row by starting from NEUTRAL_CHOP and
// applying each rule column-wise in ascending priority, later (higher priority)
// rules overwriting earlier ones. It must agree with ClassifyTable.
func (c *Classifier) ClassifyTableOverwrite(table *domain.FeatureTable) []domain.OrderflowState {
	return c.overwrite(Inputs(table))
}

func (c *Classifier) overwrite(inputs []Input) []domain.OrderflowState {
	signals := make([]Signals, len(inputs))
	labels := make([]domain.OrderflowState, len(inputs))
	for i, in := range inputs {
		signals[i] = c.Signals(in)
		labels[i] = domain.NeutralChop
	}

	for r := len(c.rules) - 1; r >= 0; r-- {
		rule := c.rules[r]
		for i := range signals {
			if rule.Match(signals[i]) {
				labels[i] = rule.Label
			}
		}
	}
	return labels
}

// ClassifyInputs labels a batch of precomputed inputs.
func (c *Classifier) ClassifyInputs(inputs []Input) []domain.OrderflowState {
	labels := make([]domain.OrderflowState, len(inputs))
	for i, in := range inputs {
		labels[i] = c.Classify(in)
	}
	return labels
}

// Distribution counts labels per state. Every state is present, possibly with 0.
func Distribution(labels []domain.OrderflowState) map[domain.OrderflowState]int {
	dist := make(map[domain.OrderflowState]int, len(domain.AllStates()))
	for _, s := range domain.AllStates() {
		dist[s] = 0
	}
	for _, l := range labels {
		dist[l]++
	}
	return dist
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
