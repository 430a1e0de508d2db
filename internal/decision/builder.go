package decision

import (
	"sort"

	"orderflow-edge-lab/internal/domain"
)

// Builder assesses every record of a set of condition results.
type Builder struct {
	evaluator *Evaluator
}

// NewBuilder creates a new assessment builder.
func NewBuilder(evaluator *Evaluator) *Builder {
	return &Builder{evaluator: evaluator}
}

// Build assesses all records, ordered by condition (input order) then horizon ASC.
func (b *Builder) Build(results []*domain.ConditionResult) []*Assessment {
	var out []*Assessment
	for _, res := range results {
		horizons := make([]domain.Horizon, 0, len(res.Records))
		for h := range res.Records {
			horizons = append(horizons, h)
		}
		sort.Slice(horizons, func(i, j int) bool { return horizons[i] < horizons[j] })

		for _, h := range horizons {
			out = append(out, b.evaluator.Evaluate(res.Records[h]))
		}
	}
	return out
}

// Ranked returns the assessments with a non-NONE verdict, sorted by |net_expectancy| DESC.
// Ties are broken by condition name, then horizon, for deterministic output.
func Ranked(assessments []*Assessment) []*Assessment {
	var out []*Assessment
	for _, a := range assessments {
		if a.Verdict != VerdictNone {
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := abs(out[i].Record.NetExpectancy), abs(out[j].Record.NetExpectancy)
		if ai != aj {
			return ai > aj
		}
		if out[i].Record.Condition != out[j].Record.Condition {
			return out[i].Record.Condition < out[j].Record.Condition
		}
		return out[i].Record.Horizon < out[j].Record.Horizon
	})
	return out
}

// Summarize counts assessments by verdict and tier.
func Summarize(assessments []*Assessment) Summary {
	s := Summary{Total: len(assessments)}
	for _, a := range assessments {
		switch a.Verdict {
		case VerdictEdge:
			s.Edge++
		case VerdictNegative:
			s.Negative++
		default:
			s.None++
		}
		switch a.Tier {
		case TierHigh:
			s.High++
		case TierMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
