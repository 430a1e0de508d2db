package domain

import (
	"fmt"
	"math"
)

// Horizon is a forward-looking return horizon in seconds (rows at 1s cadence).
type Horizon int

// Default horizons.
var (
	DefaultEdgeHorizons  = []Horizon{5, 15, 60}
	DefaultStateHorizons = []Horizon{60, 300, 900}
)

// Label renders the horizon as "5s", "1m", "15m" or "1h".
func (h Horizon) Label() string {
	switch {
	case h >= 3600 && h%3600 == 0:
		return fmt.Sprintf("%dh", h/3600)
	case h >= 60 && h%60 == 0:
		return fmt.Sprintf("%dm", h/60)
	default:
		return fmt.Sprintf("%ds", int(h))
	}
}

// ForwardReturnSet holds forward returns in bps per horizon, aligned to the feature table.
// Undefined values (end of series, invalid prices) are NaN.
type ForwardReturnSet map[Horizon][]float64

// Defined reports whether the forward return at row i for horizon h is defined.
func (f ForwardReturnSet) Defined(h Horizon, i int) bool {
	series, ok := f[h]
	if !ok || i < 0 || i >= len(series) {
		return false
	}
	return !math.IsNaN(series[i])
}

// At returns the forward return at row i for horizon h. Callers check Defined first.
func (f ForwardReturnSet) At(h Horizon, i int) float64 {
	return f[h][i]
}
