package metrics

import (
	"math"
	"sort"
)

// Kelly fractions are capped at a quarter of capital.
const MaxKellyFraction = 0.25

// smallSampleCutoff is the sample size at or below which PValue uses the coarse heuristic.
const smallSampleCutoff = 30

// ReturnStats summarises a sample of forward returns in bps.
type ReturnStats struct {
	N       int
	Wins    int
	WinRate float64 // fraction of returns > 0
	Mean    float64
	Median  float64
	Stddev  float64 // sample stddev (n-1)
	AvgWin  float64 // mean of returns > 0, 0 if none
	AvgLoss float64 // mean of |returns <= 0|, 0 if none
}

// Expectancy returns win_rate*avg_win - (1-win_rate)*avg_loss.
func (s ReturnStats) Expectancy() float64 {
	return s.WinRate*s.AvgWin - (1-s.WinRate)*s.AvgLoss
}

// ComputeReturnStats calculates the distribution statistics of returns.
// Returns are not reordered; a sorted copy is used for the median.
func ComputeReturnStats(returns []float64) ReturnStats {
	n := len(returns)
	if n == 0 {
		return ReturnStats{}
	}

	var wins, losses []float64
	for _, r := range returns {
		if r > 0 {
			wins = append(wins, r)
		} else {
			losses = append(losses, math.Abs(r))
		}
	}

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)

	mean := computeMean(returns)
	return ReturnStats{
		N:       n,
		Wins:    len(wins),
		WinRate: computeWinRate(len(wins), n),
		Mean:    mean,
		Median:  computePercentile(sorted, 0.50),
		Stddev:  computeStddev(returns, mean),
		AvgWin:  computeMean(wins),
		AvgLoss: computeMean(losses),
	}
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computeMean calculates arithmetic mean, 0 for an empty slice.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Percentile returns the p-th percentile of values (linear interpolation).
func Percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return computePercentile(sorted, p)
}

// TStat returns the one-sample t statistic of mean against 0.
// Returns 0 when stddev is 0 or n < 2.
func TStat(mean, stddev float64, n int) float64 {
	if n < 2 || stddev <= 0 {
		return 0
	}
	return mean / (stddev / math.Sqrt(float64(n)))
}

// PValue returns the two-sided p-value for t.
//
// For n > 30 it uses the normal approximation 2*(1-Phi(|t|)).
// For n <= 30 it is a coarse heuristic: 0.05 if |t| > 2, else 0.5.
// This is not an exact Student-t test.
func PValue(t float64, n int) float64 {
	if n <= smallSampleCutoff {
		if math.Abs(t) > 2 {
			return 0.05
		}
		return 0.5
	}
	p := 2 * (1 - NormalCDF(math.Abs(t)))
	if p < 0 {
		return 0
	}
	return p
}

// Abramowitz & Stegun 26.2.17 coefficients, |error| < 7.5e-8.
const (
	cdfP  = 0.2316419
	cdfB1 = 0.319381530
	cdfB2 = -0.356563782
	cdfB3 = 1.781477937
	cdfB4 = -1.821255978
	cdfB5 = 1.330274429
)

// NormalCDF returns the standard normal CDF using a rational approximation.
func NormalCDF(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if x < 0 {
		return 1 - NormalCDF(-x)
	}
	t := 1 / (1 + cdfP*x)
	poly := t * (cdfB1 + t*(cdfB2+t*(cdfB3+t*(cdfB4+t*cdfB5))))
	pdf := math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	return 1 - pdf*poly
}

// KellyFraction returns the Kelly bet fraction clamped to [0, MaxKellyFraction].
// b = avgWin/|avgLoss|, raw = (b*w - (1-w)) / b.
// Returns 0 if avgLoss == 0 or winRate <= 0.
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss == 0 || winRate <= 0 {
		return 0
	}
	b := avgWin / math.Abs(avgLoss)
	if b <= 0 {
		return 0
	}
	raw := (b*winRate - (1 - winRate)) / b
	return clamp(raw, 0, MaxKellyFraction)
}

// Sharpe returns mean/stddev, 0 if stddev is 0.
func Sharpe(mean, stddev float64) float64 {
	if stddev <= 0 {
		return 0
	}
	return mean / stddev
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
