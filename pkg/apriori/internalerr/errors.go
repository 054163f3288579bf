package internalerr

import "github.com/cockroachdb/errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrCorruptTable     = errors.New("frequent itemset table is inconsistent")
	ErrUnknownItem      = errors.New("unknown item handle")
	ErrStoreUnavailable = errors.New("store unavailable")
)
