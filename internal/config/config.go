package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"orderflow-edge-lab/internal/classifier"
	"orderflow-edge-lab/internal/conditions"
	"orderflow-edge-lab/internal/domain"
	"orderflow-edge-lab/internal/edge"
	"orderflow-edge-lab/internal/logging"
)

// Environment variables that override storage DSNs.
const (
	EnvPostgresDSN   = "EDGECHECK_POSTGRES_DSN"
	EnvClickhouseDSN = "EDGECHECK_CLICKHOUSE_DSN"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Feature sources.
const (
	SourceCSV        = "csv"
	SourceClickhouse = "clickhouse"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the edgecheck configuration.
type Config struct {
	Classifier classifier.Thresholds `yaml:"classifier"`
	Edge       edge.Config           `yaml:"edge"`
	Horizons   Horizons              `yaml:"horizons"`

	// Conditions are evaluated after the built-in catalogue.
	Conditions []conditions.Definition `yaml:"conditions" validate:"dive"`

	Loader  Loader         `yaml:"loader"`
	Storage Storage        `yaml:"storage"`
	Output  Output         `yaml:"output"`
	Logging logging.Config `yaml:"logging"`
	Metrics Metrics        `yaml:"metrics"`
}

// Horizons configures forward-return horizons in seconds.
type Horizons struct {
	Edge   []domain.Horizon `yaml:"edge" default:"[5,15,60]" validate:"min=1,dive,gt=0"`
	States []domain.Horizon `yaml:"states" default:"[60,300,900]" validate:"min=1,dive,gt=0"`
}

// Loader configures the feature table source.
type Loader struct {
	Source   string `yaml:"source" default:"csv" validate:"oneof=csv clickhouse"`
	LogsDir  string `yaml:"logs_dir" default:"logs"`
	Resample bool   `yaml:"resample" default:"true"`

	// Series, FromMs and ToMs select rows when Source is clickhouse. ToMs 0 means no upper bound.
	Series string `yaml:"series" default:"default"`
	FromMs int64  `yaml:"from_ms"`
	ToMs   int64  `yaml:"to_ms"`
}

// Storage configures where results are persisted.
type Storage struct {
	Backend       string `yaml:"backend" default:"memory" validate:"oneof=memory postgres clickhouse"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" validate:"required_if=Backend clickhouse"`
}

// Output configures report files.
type Output struct {
	Dir string `yaml:"dir" default:"." validate:"required"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

var validate = validator.New()

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML configuration file over the defaults and applies env overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overrides DSNs from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickhouseDSN); v != "" {
		c.Storage.ClickhouseDSN = v
	}
}

// Validate checks struct tags and the cross-field rules of nested configs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Edge.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Loader.Source == SourceClickhouse && c.Storage.ClickhouseDSN == "" {
		return fmt.Errorf("%w: loader.source clickhouse requires storage.clickhouse_dsn", ErrInvalidConfig)
	}
	if c.Loader.Source == SourceClickhouse && c.Loader.ToMs != 0 && c.Loader.ToMs < c.Loader.FromMs {
		return fmt.Errorf("%w: loader.to_ms %d < loader.from_ms %d", ErrInvalidConfig, c.Loader.ToMs, c.Loader.FromMs)
	}
	return nil
}
