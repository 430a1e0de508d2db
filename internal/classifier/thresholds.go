package classifier

import (
	"errors"
	"fmt"
)

// ErrInvalidThresholds is returned when a threshold set is inconsistent.
var ErrInvalidThresholds = errors.New("invalid classifier thresholds")

// Thresholds configures the state classifier.
// A Thresholds value is copied into the Classifier at construction and never changes afterwards.
type Thresholds struct {
	PriceUpBps   float64 `yaml:"price_up_bps" default:"0.15"`
	PriceDownBps float64 `yaml:"price_down_bps" default:"-0.15"`
	OIUp         float64 `yaml:"oi_up" default:"2.0"`
	OIDown       float64 `yaml:"oi_down" default:"-2.0"`
	AggBull      float64 `yaml:"agg_bull" default:"0.5"`
	AggBear      float64 `yaml:"agg_bear" default:"-0.5"`
	CVDLevelBull float64 `yaml:"cvd_level_bull" default:"10.0"`
	CVDLevelBear float64 `yaml:"cvd_level_bear" default:"-10.0"`

	// AggEpsilon is the |delta_1s| below which delta_1s counts as unpopulated
	// and cvd_change is used as the aggression signal instead.
	AggEpsilon float64 `yaml:"agg_epsilon" default:"1e-9"`
}

// DefaultThresholds returns the calibrated default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceUpBps:   0.15,
		PriceDownBps: -0.15,
		OIUp:         2.0,
		OIDown:       -2.0,
		AggBull:      0.5,
		AggBear:      -0.5,
		CVDLevelBull: 10.0,
		CVDLevelBear: -10.0,
		AggEpsilon:   1e-9,
	}
}

// Validate checks that every up/bull threshold lies above its down/bear counterpart.
func (t Thresholds) Validate() error {
	if t.PriceUpBps <= t.PriceDownBps {
		return fmt.Errorf("%w: price_up_bps %v <= price_down_bps %v", ErrInvalidThresholds, t.PriceUpBps, t.PriceDownBps)
	}
	if t.OIUp <= t.OIDown {
		return fmt.Errorf("%w: oi_up %v <= oi_down %v", ErrInvalidThresholds, t.OIUp, t.OIDown)
	}
	if t.AggBull <= t.AggBear {
		return fmt.Errorf("%w: agg_bull %v <= agg_bear %v", ErrInvalidThresholds, t.AggBull, t.AggBear)
	}
	if t.CVDLevelBull <= t.CVDLevelBear {
		return fmt.Errorf("%w: cvd_level_bull %v <= cvd_level_bear %v", ErrInvalidThresholds, t.CVDLevelBull, t.CVDLevelBear)
	}
	if t.AggEpsilon < 0 {
		return fmt.Errorf("%w: agg_epsilon %v < 0", ErrInvalidThresholds, t.AggEpsilon)
	}
	return nil
}
