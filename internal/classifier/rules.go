package classifier

import "orderflow-edge-lab/internal/domain"

// Signals are the boolean predicates derived from one row's features.
type Signals struct {
	PriceUp   bool
	PriceDown bool
	OIUp      bool
	OIDown    bool
	AggBull   bool
	AggBear   bool
	CVDBull   bool // cvd level above CVDLevelBull
	CVDBear   bool // cvd level below CVDLevelBear
}

// PriceFlat reports neither price_up nor price_down.
func (s Signals) PriceFlat() bool {
	return !s.PriceUp && !s.PriceDown
}

// Rule maps a signal predicate to a state.
type Rule struct {
	Name  string
	Label domain.OrderflowState
	Match func(Signals) bool
}

// FallbackRule is the name reported when no rule matched.
const FallbackRule = "neutral_chop"

// Rules is the rule table in descending priority. The first match wins.
// Rows matching none of them are NEUTRAL_CHOP.
var Rules = []Rule{
	{
		Name:  "long_buildup",
		Label: domain.LongBuildup,
		Match: func(s Signals) bool { return s.PriceUp && s.OIUp && s.AggBull },
	},
	{
		Name:  "short_buildup",
		Label: domain.ShortBuildup,
		Match: func(s Signals) bool { return s.PriceDown && s.OIUp && s.AggBear },
	},
	{
		Name:  "short_covering",
		Label: domain.ShortCovering,
		Match: func(s Signals) bool { return s.PriceUp && s.OIDown },
	},
	{
		Name:  "long_liquidation",
		Label: domain.LongLiquidation,
		Match: func(s Signals) bool { return s.PriceDown && s.OIDown },
	},
	{
		Name:  "absorption_bottom",
		Label: domain.AbsorptionBottom,
		Match: func(s Signals) bool { return (s.PriceFlat() || s.PriceDown) && s.OIUp && s.CVDBull },
	},
	{
		Name:  "distribution_top",
		Label: domain.DistributionTop,
		Match: func(s Signals) bool { return (s.PriceFlat() || s.PriceUp) && s.OIUp && s.CVDBear },
	},
	{
		Name:  "long_buildup_weak",
		Label: domain.LongBuildup,
		Match: func(s Signals) bool { return s.PriceUp && s.OIUp },
	},
	{
		Name:  "short_buildup_weak",
		Label: domain.ShortBuildup,
		Match: func(s Signals) bool { return s.PriceDown && s.OIUp },
	},
}
