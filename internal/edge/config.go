package edge

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when an evaluator configuration is rejected.
var ErrInvalidConfig = errors.New("invalid edge config")

// Config holds the evaluation parameters.
// MinSampleSize gates record inclusion; LowNWarnThreshold only drives confidence
// tiering. The two are independent and neither is derived from the other.
type Config struct {
	MinSampleSize     int     `yaml:"min_sample_size" default:"30" validate:"gte=1"`
	CostBpsPerSide    float64 `yaml:"cost_bps_per_side" default:"2.0" validate:"gte=0"`
	ConfidenceLevel   float64 `yaml:"confidence_level" default:"0.95" validate:"gt=0,lt=1"`
	LowNWarnThreshold int     `yaml:"low_n_warn_threshold" default:"100" validate:"gte=1"`
	EdgeThreshold     float64 `yaml:"edge_threshold" default:"0.5" validate:"gte=0"`

	// Workers bounds how many conditions are evaluated concurrently.
	Workers int `yaml:"workers" default:"4" validate:"gte=1"`
}

// DefaultConfig returns the default evaluation parameters.
func DefaultConfig() Config {
	return Config{
		MinSampleSize:     30,
		CostBpsPerSide:    2.0,
		ConfidenceLevel:   0.95,
		LowNWarnThreshold: 100,
		EdgeThreshold:     0.5,
		Workers:           4,
	}
}

// RoundTripCostBps returns the cost deducted from the mean return.
func (c Config) RoundTripCostBps() float64 {
	return 2 * c.CostBpsPerSide
}

// Alpha returns the significance level 1 - confidence_level.
func (c Config) Alpha() float64 {
	return 1 - c.ConfidenceLevel
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.MinSampleSize < 1 {
		return fmt.Errorf("%w: min_sample_size must be >= 1, got %d", ErrInvalidConfig, c.MinSampleSize)
	}
	if c.CostBpsPerSide < 0 {
		return fmt.Errorf("%w: cost_bps_per_side must be >= 0, got %v", ErrInvalidConfig, c.CostBpsPerSide)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("%w: confidence_level must be in (0, 1), got %v", ErrInvalidConfig, c.ConfidenceLevel)
	}
	if c.LowNWarnThreshold < 1 {
		return fmt.Errorf("%w: low_n_warn_threshold must be >= 1, got %d", ErrInvalidConfig, c.LowNWarnThreshold)
	}
	if c.EdgeThreshold < 0 {
		return fmt.Errorf("%w: edge_threshold must be >= 0, got %v", ErrInvalidConfig, c.EdgeThreshold)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}
