package domain

// OrderflowState is the positioning state inferred from price, OI and aggression.
type OrderflowState string

// Orderflow states. Exactly one applies to every row; NeutralChop is the fallback.
const (
	LongBuildup      OrderflowState = "LONG_BUILDUP"
	ShortBuildup     OrderflowState = "SHORT_BUILDUP"
	ShortCovering    OrderflowState = "SHORT_COVERING"
	LongLiquidation  OrderflowState = "LONG_LIQUIDATION"
	AbsorptionBottom OrderflowState = "ABSORPTION_BOTTOM"
	DistributionTop  OrderflowState = "DISTRIBUTION_TOP"
	NeutralChop      OrderflowState = "NEUTRAL_CHOP"
)

// AllStates returns every state in report order.
func AllStates() []OrderflowState {
	return []OrderflowState{
		LongBuildup,
		ShortBuildup,
		ShortCovering,
		LongLiquidation,
		AbsorptionBottom,
		DistributionTop,
		NeutralChop,
	}
}

// Valid reports whether s is one of the seven states.
func (s OrderflowState) Valid() bool {
	for _, st := range AllStates() {
		if s == st {
			return true
		}
	}
	return false
}
