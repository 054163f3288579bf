package config

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/apriori/pkg/apriori/logging"
	"github.com/cognicore/apriori/pkg/apriori/miner"
)

// Overrides carries values set on the command line. Nil fields leave the
// file value in place.
type Overrides struct {
	MinSupport    *float64
	MinConfidence *float64
	MaxLength     *int
	Workers       *int
	Strategy      *string
	TopRules      *int
	DBPath        *string
	LogLevel      *string
	JSONLogs      *bool
}

// Loader reads configuration and constructs components
type Loader struct {
	ConfigPath string
	Overrides  Overrides
}

// Components holds the resolved configuration and the objects built from it
type Components struct {
	Config        File
	MinerOptions  miner.Options
	MinConfidence float64
	Logger        *zap.Logger
}

// Load reads the config file (if any), applies overrides, validates, and
// returns initialized components
func (l *Loader) Load() (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		loaded, err := LoadFile(l.ConfigPath)
		if err != nil {
			return nil, errors.Wrap(err, "load config")
		}
		cfg = *loaded
	}

	l.Overrides.apply(&cfg)

	opts, err := cfg.Mining.MinerOptions()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	opts.Logger = logger

	return &Components{
		Config:        cfg,
		MinerOptions:  opts,
		MinConfidence: cfg.Mining.MinConfidence,
		Logger:        logger,
	}, nil
}

func (o Overrides) apply(cfg *File) {
	if o.MinSupport != nil {
		cfg.Mining.MinSupport = *o.MinSupport
	}
	if o.MinConfidence != nil {
		cfg.Mining.MinConfidence = *o.MinConfidence
	}
	if o.MaxLength != nil {
		cfg.Mining.MaxLength = *o.MaxLength
	}
	if o.Workers != nil {
		cfg.Mining.Workers = *o.Workers
	}
	if o.Strategy != nil {
		cfg.Mining.Strategy = *o.Strategy
	}
	if o.TopRules != nil {
		cfg.Output.TopRules = *o.TopRules
	}
	if o.DBPath != nil {
		cfg.Output.DBPath = *o.DBPath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.JSONLogs != nil {
		cfg.Logging.JSON = *o.JSONLogs
	}
}
