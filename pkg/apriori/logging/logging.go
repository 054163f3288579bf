// Package logging builds the zap loggers used by the miner, the rule
// generator and the CLI, and fixes the field names they share.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for mining logs.
const (
	FieldLevel        = "level_size"
	FieldCandidates   = "candidates"
	FieldPruned       = "pruned"
	FieldFrequent     = "frequent"
	FieldTransactions = "transactions"
	FieldThreshold    = "threshold"
	FieldRules        = "rules"
	FieldWorkers      = "workers"
	FieldStrategy     = "strategy"
	FieldRunID        = "run_id"
	FieldDurationMS   = "duration_ms"
)

// New returns a logger writing to stderr at the given level ("debug",
// "info", "warn", "error"). jsonOutput selects the production JSON encoder;
// otherwise a console encoder is used.
func New(level string, jsonOutput bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if jsonOutput {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
