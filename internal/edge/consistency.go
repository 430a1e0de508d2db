package edge

import (
	"math"
	"sort"

	"orderflow-edge-lab/internal/domain"
)

// ratioEpsilon guards consistency ratios against near-zero denominators.
const ratioEpsilon = 1e-9

// Regime thresholds.
const (
	trendingConsistency = 0.7
	twoHorizonDefault   = 0.5
)

// Slots are the short, mid and long horizons used for consistency and regime.
type Slots struct {
	Short, Mid, Long domain.Horizon
}

// SlotsFor picks the first three horizons in ascending order.
// With fewer than three horizons the missing slots are 0 and never match a record.
func SlotsFor(horizons []domain.Horizon) Slots {
	sorted := make([]domain.Horizon, 0, len(horizons))
	seen := make(map[domain.Horizon]bool, len(horizons))
	for _, h := range horizons {
		if h > 0 && !seen[h] {
			seen[h] = true
			sorted = append(sorted, h)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var s Slots
	if len(sorted) > 0 {
		s.Short = sorted[0]
	}
	if len(sorted) > 1 {
		s.Mid = sorted[1]
	}
	if len(sorted) > 2 {
		s.Long = sorted[2]
	}
	return s
}

// Consistency scores how a condition's mean return behaves across the slot horizons.
//
//   - fewer than 2 defined records: 0
//   - any two defined means of opposite sign: -1
//   - all three defined, same sign: mean of |mid/short| and |long/mid|
//   - exactly two defined, same sign: 0.5
func Consistency(records map[domain.Horizon]*domain.ConditionStatRecord, slots Slots) float64 {
	var means []float64
	for _, h := range []domain.Horizon{slots.Short, slots.Mid, slots.Long} {
		if rec, ok := records[h]; ok && rec != nil && h > 0 {
			means = append(means, rec.MeanBps)
		}
	}

	if len(means) < 2 {
		return 0
	}

	hasPos, hasNeg := false, false
	for _, m := range means {
		if m > 0 {
			hasPos = true
		}
		if m < 0 {
			hasNeg = true
		}
	}
	if hasPos && hasNeg {
		return -1
	}

	if len(means) == 3 {
		r1 := math.Abs(means[1] / guard(means[0]))
		r2 := math.Abs(means[2] / guard(means[1]))
		return (r1 + r2) / 2
	}
	return twoHorizonDefault
}

// ClassifyRegime derives the regime from the consistency score and the short and long means.
// Missing means are passed as 0.
func ClassifyRegime(consistency, meanShort, meanLong float64) domain.Regime {
	switch {
	case consistency > trendingConsistency && meanShort > 0:
		return domain.RegimeTrending
	case consistency < 0 && meanShort > 0 && meanLong < 0:
		return domain.RegimeMeanRevert
	case consistency < 0:
		return domain.RegimeFlip
	default:
		return domain.RegimeNoise
	}
}

// AnalyzeConsistency computes consistency and regime for a set of records.
func AnalyzeConsistency(records map[domain.Horizon]*domain.ConditionStatRecord, slots Slots) (float64, domain.Regime) {
	c := Consistency(records, slots)
	return c, ClassifyRegime(c, meanOrZero(records, slots.Short), meanOrZero(records, slots.Long))
}

func meanOrZero(records map[domain.Horizon]*domain.ConditionStatRecord, h domain.Horizon) float64 {
	if rec, ok := records[h]; ok && rec != nil {
		return rec.MeanBps
	}
	return 0
}

// guard replaces a near-zero denominator by epsilon, keeping its sign.
func guard(d float64) float64 {
	if math.Abs(d) >= ratioEpsilon {
		return d
	}
	if d < 0 {
		return -ratioEpsilon
	}
	return ratioEpsilon
}
