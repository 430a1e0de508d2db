package decision

import (
	"fmt"

	"orderflow-edge-lab/internal/domain"
)

// Evaluator assigns verdicts and confidence tiers to records.
type Evaluator struct {
	edgeThreshold float64
}

// NewEvaluator creates a new decision evaluator.
// edgeThreshold is the |net_expectancy| in bps above which a record counts as EDGE or NEGATIVE.
func NewEvaluator(edgeThreshold float64) *Evaluator {
	return &Evaluator{edgeThreshold: edgeThreshold}
}

// Verdict returns EDGE when net expectancy exceeds the threshold, NEGATIVE when it is
// below -threshold, and NONE otherwise. Low-sample records are always NONE.
func (e *Evaluator) Verdict(rec *domain.ConditionStatRecord) Verdict {
	switch {
	case rec.LowSampleFlag:
		return VerdictNone
	case rec.NetExpectancy > e.edgeThreshold:
		return VerdictEdge
	case rec.NetExpectancy < -e.edgeThreshold:
		return VerdictNegative
	default:
		return VerdictNone
	}
}

// Tier returns HIGH for significant, well-sampled, trending records,
// MEDIUM for significant and well-sampled ones, LOW otherwise.
func (e *Evaluator) Tier(rec *domain.ConditionStatRecord) Tier {
	if !rec.IsSignificant || rec.LowSampleFlag {
		return TierLow
	}
	if rec.Regime == domain.RegimeTrending {
		return TierHigh
	}
	return TierMedium
}

// Evaluate produces the assessment of one record with its criteria checklist.
func (e *Evaluator) Evaluate(rec *domain.ConditionStatRecord) *Assessment {
	return &Assessment{
		Record:   rec,
		Verdict:  e.Verdict(rec),
		Tier:     e.Tier(rec),
		Criteria: e.criteria(rec),
	}
}

func (e *Evaluator) criteria(rec *domain.ConditionStatRecord) []CriterionResult {
	criteria := make([]CriterionResult, 4)

	// 1. Enough samples for confident tiering
	criteria[0] = CriterionResult{
		Name:      "Sample size",
		Threshold: "not low-sample",
		Actual:    fmt.Sprintf("N=%d", rec.SampleCount),
		Pass:      !rec.LowSampleFlag,
	}

	// 2. Net expectancy beyond the edge threshold in either direction
	criteria[1] = CriterionResult{
		Name:      "Net expectancy",
		Threshold: fmt.Sprintf("|x| > %.2f bps", e.edgeThreshold),
		Actual:    fmt.Sprintf("%+.2f bps", rec.NetExpectancy),
		Pass:      rec.NetExpectancy > e.edgeThreshold || rec.NetExpectancy < -e.edgeThreshold,
	}

	// 3. Mean different from 0
	criteria[2] = CriterionResult{
		Name:      "Significance",
		Threshold: "significant",
		Actual:    fmt.Sprintf("p=%.4f", rec.PValue),
		Pass:      rec.IsSignificant,
	}

	// 4. Return persists across horizons
	criteria[3] = CriterionResult{
		Name:      "Regime",
		Threshold: string(domain.RegimeTrending),
		Actual:    string(rec.Regime),
		Pass:      rec.Regime == domain.RegimeTrending,
	}

	return criteria
}
