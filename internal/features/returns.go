package features

import (
	"math"

	"orderflow-edge-lab/internal/domain"
)

// bpsPerUnit converts a price ratio to basis points.
const bpsPerUnit = 10_000.0

// ForwardReturns computes forward returns in bps for each horizon.
//
// Element i of horizon h is (prices[i+h]/prices[i] - 1) * 10000 when i+h is in range.
// The last h elements, and any element whose start or end price is non-positive
// or NaN, are NaN. Horizons <= 0 are skipped.
// prices must be chronologically sorted at a uniform one-second cadence; this is not checked.
func ForwardReturns(prices []float64, horizons []domain.Horizon) domain.ForwardReturnSet {
	set := make(domain.ForwardReturnSet, len(horizons))
	n := len(prices)

	for _, h := range horizons {
		if h <= 0 {
			continue
		}
		if _, done := set[h]; done {
			continue
		}

		series := make([]float64, n)
		step := int(h)
		for i := 0; i < n; i++ {
			if i+step >= n {
				series[i] = math.NaN()
				continue
			}
			series[i] = returnBps(prices[i], prices[i+step])
		}
		set[h] = series
	}

	return set
}

// PriceChangeBps returns the row-to-row price change in bps.
// The first row and rows adjacent to an invalid price are 0.
func PriceChangeBps(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		r := returnBps(prices[i-1], prices[i])
		if math.IsNaN(r) {
			continue
		}
		out[i] = r
	}
	return out
}

// CVDChange returns the row-to-row change of the cumulative volume delta.
// The first row is 0.
func CVDChange(cvd []float64) []float64 {
	out := make([]float64, len(cvd))
	for i := 1; i < len(cvd); i++ {
		d := cvd[i] - cvd[i-1]
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		out[i] = d
	}
	return out
}

// returnBps returns (to/from - 1) * 10000, or NaN if either price is not positive.
func returnBps(from, to float64) float64 {
	if !(from > 0) || !(to > 0) || math.IsInf(from, 0) || math.IsInf(to, 0) {
		return math.NaN()
	}
	return (to/from - 1) * bpsPerUnit
}
