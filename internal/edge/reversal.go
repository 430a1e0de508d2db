package edge

import (
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/metrics"
)

// Reversal verdict thresholds.
const (
	minReversalSample   = 5
	reversalPctEdge     = 55.0
	reversalMeanEdgeBps = 0.5
)

// ReversalTarget is a state expected to precede a move in Direction (+1 up, -1 down).
type ReversalTarget struct {
	State     domain.OrderflowState
	Direction int
}

// DefaultReversalTargets are the bottom and top detection states.
var DefaultReversalTargets = []ReversalTarget{
	{State: domain.AbsorptionBottom, Direction: 1},
	{State: domain.DistributionTop, Direction: -1},
}

// ReversalStat summarises the forward moves after one state at one horizon.
type ReversalStat struct {
	Horizon     domain.Horizon
	N           int     // rows with a defined forward return
	Reversals   int     // rows where the return moved in the expected direction
	ReversalPct float64 // 0-100
	MeanBps     float64 // mean return signed by direction, positive = expected direction
	Edge        bool    // ReversalPct > 55 and MeanBps > 0.5
}

// ReversalResult is the reversal analysis of one state.
type ReversalResult struct {
	Target       ReversalTarget
	Count        int  // rows labelled with the state
	Insufficient bool // Count < MinSampleSize, no horizons evaluated
	Horizons     []ReversalStat
}

// AnalyzeReversals measures how often the expected move follows each target state.
// Horizons with fewer than 5 defined returns are skipped.
func (e *Evaluator) AnalyzeReversals(frame *Frame, targets []ReversalTarget, horizons []domain.Horizon) []ReversalResult {
	out := make([]ReversalResult, 0, len(targets))

	for _, target := range targets {
		res := ReversalResult{Target: target}
		for i := 0; i < frame.Len(); i++ {
			if frame.State(i) == target.State {
				res.Count++
			}
		}

		if res.Count < e.cfg.MinSampleSize {
			res.Insufficient = true
			out = append(out, res)
			continue
		}

		sign := float64(target.Direction)
		for _, h := range horizons {
			var signed []float64
			reversals := 0
			for i := 0; i < frame.Len(); i++ {
				if frame.State(i) != target.State || !frame.Returns.Defined(h, i) {
					continue
				}
				r := frame.Returns.At(h, i) * sign
				if r > 0 {
					reversals++
				}
				signed = append(signed, r)
			}

			n := len(signed)
			if n < minReversalSample {
				continue
			}

			stat := ReversalStat{
				Horizon:     h,
				N:           n,
				Reversals:   reversals,
				ReversalPct: float64(reversals) / float64(n) * 100,
				MeanBps:     metrics.ComputeReturnStats(signed).Mean,
			}
			stat.Edge = stat.ReversalPct > reversalPctEdge && stat.MeanBps > reversalMeanEdgeBps
			res.Horizons = append(res.Horizons, stat)
		}

		out = append(out, res)
	}

	return out
}
