// Package apriori mines frequent itemsets and association rules from a
// materialized set of transactions.
//
// Tokens are interned to dense integer handles once per call; the miner and
// the rule generator work on handles only, and rules are mapped back to
// tokens before they are returned.
package apriori

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/apriori/pkg/apriori/intern"
	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
	"github.com/cognicore/apriori/pkg/apriori/miner"
	"github.com/cognicore/apriori/pkg/apriori/rules"
)

type options struct {
	workers  int
	strategy miner.Strategy
	logger   *zap.Logger
}

// Option configures a mining call.
type Option func(*options)

// WithWorkers shards support counting and rule generation across n
// goroutines. n <= 1 runs single-threaded.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithStrategy selects how candidate support is counted.
func WithStrategy(s miner.Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// WithLogger sets the logger for per-level statistics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{strategy: miner.StrategyScan}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) miner(minSupport float64, maxLength int) miner.Options {
	return miner.Options{
		MinSupport: minSupport,
		MaxLength:  maxLength,
		Workers:    o.workers,
		Strategy:   o.strategy,
		Logger:     o.logger,
	}
}

func validateConfidence(minConfidence float64) error {
	if math.IsNaN(minConfidence) || minConfidence < 0 {
		return errors.WithHint(
			errors.Wrapf(internalerr.ErrInvalidInput, "min confidence %v", minConfidence),
			"min confidence is a probability in [0, 1]",
		)
	}
	return nil
}

// Apriori interns transactions, mines frequent itemsets of up to maxLength
// items with support >= minSupport, and derives every rule with confidence
// >= minConfidence. Rules are sorted by descending confidence.
//
// Arguments are validated before any work starts; on error nothing is
// returned.
func Apriori[T comparable](ctx context.Context, transactions [][]T, minSupport, minConfidence float64, maxLength int, opts ...Option) ([]Rule[T], *itemset.Frequent, error) {
	o := buildOptions(opts)
	if err := o.miner(minSupport, maxLength).Validate(); err != nil {
		return nil, nil, err
	}
	if err := validateConfidence(minConfidence); err != nil {
		return nil, nil, err
	}

	txs, inv, _ := intern.Intern(transactions)
	res, err := miner.Mine(ctx, txs, o.miner(minSupport, maxLength))
	if err != nil {
		return nil, nil, err
	}

	rs, err := rules.Generate(minConfidence, res.Itemsets, len(txs),
		rules.WithWorkers(o.workers),
		rules.WithLogger(o.logger),
	)
	if err != nil {
		return nil, nil, err
	}

	converted, err := ConvertRules(rs, inv)
	if err != nil {
		return nil, nil, err
	}
	return converted, res.Itemsets, nil
}

// GenerateFrequentItemsets interns transactions and mines frequent itemsets
// without deriving rules. The inventory maps the handles in the result back
// to tokens.
func GenerateFrequentItemsets[T comparable](ctx context.Context, transactions [][]T, minSupport float64, maxLength int, opts ...Option) (*itemset.Frequent, *intern.Inventory[T], error) {
	o := buildOptions(opts)
	if err := o.miner(minSupport, maxLength).Validate(); err != nil {
		return nil, nil, err
	}

	txs, inv, _ := intern.Intern(transactions)
	res, err := miner.Mine(ctx, txs, o.miner(minSupport, maxLength))
	if err != nil {
		return nil, nil, err
	}
	return res.Itemsets, inv, nil
}

// GenerateFrequentItemsetsID mines transactions that are already expressed
// as item handles. Each transaction is treated as a set: order and
// duplicates are ignored.
func GenerateFrequentItemsetsID(ctx context.Context, transactions [][]itemset.ItemID, minSupport float64, maxLength int, opts ...Option) (*itemset.Frequent, error) {
	o := buildOptions(opts)
	if err := o.miner(minSupport, maxLength).Validate(); err != nil {
		return nil, err
	}

	txs := make([]itemset.Itemset, len(transactions))
	for i, tx := range transactions {
		txs[i] = itemset.New(tx...)
	}
	res, err := miner.Mine(ctx, txs, o.miner(minSupport, maxLength))
	if err != nil {
		return nil, err
	}
	return res.Itemsets, nil
}
