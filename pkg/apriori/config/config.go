package config

import (
	"math"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/miner"
)

// Mining holds the thresholds and execution settings for a mining run.
type Mining struct {
	MinSupport    float64 `yaml:"min_support"`
	MinConfidence float64 `yaml:"min_confidence"`
	MaxLength     int     `yaml:"max_length"`
	Workers       int     `yaml:"workers"`
	Strategy      string  `yaml:"strategy"`
}

// Output controls what the CLI prints and persists.
type Output struct {
	TopRules int    `yaml:"top_rules"`
	DBPath   string `yaml:"db_path"`
}

// Logging controls the CLI logger.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// File is the on-disk configuration layout.
type File struct {
	Mining  Mining  `yaml:"mining"`
	Output  Output  `yaml:"output"`
	Logging Logging `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Mining: Mining{
			MinSupport:    0.1,
			MinConfidence: 0.5,
			MaxLength:     8,
			Workers:       1,
			Strategy:      miner.StrategyScan.String(),
		},
		Output: Output{
			TopRules: 20,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file on top of Default. Keys absent from the file
// keep their default values.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(internalerr.ErrInvalidConfig, "parse %s: %v", path, err)
	}
	return &cfg, nil
}

// Validate checks the mining section.
func (m Mining) Validate() error {
	if math.IsNaN(m.MinSupport) || m.MinSupport < 0 || m.MinSupport > 1 {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "min_support %v not in [0, 1]", m.MinSupport)
	}
	if math.IsNaN(m.MinConfidence) || m.MinConfidence < 0 || m.MinConfidence > 1 {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "min_confidence %v not in [0, 1]", m.MinConfidence)
	}
	if m.MaxLength < 1 {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "max_length %d must be positive", m.MaxLength)
	}
	if m.Workers < 0 {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "workers %d must not be negative", m.Workers)
	}
	if _, err := miner.ParseStrategy(m.Strategy); err != nil {
		return errors.Wrapf(internalerr.ErrInvalidConfig, "strategy %q", m.Strategy)
	}
	return nil
}

// MinerOptions converts the mining section into miner options.
func (m Mining) MinerOptions() (miner.Options, error) {
	if err := m.Validate(); err != nil {
		return miner.Options{}, err
	}
	strategy, _ := miner.ParseStrategy(m.Strategy)
	return miner.Options{
		MinSupport: m.MinSupport,
		MaxLength:  m.MaxLength,
		Workers:    m.Workers,
		Strategy:   strategy,
	}, nil
}
