package miner

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
	"github.com/cognicore/apriori/pkg/apriori/logging"
)

// Strategy selects how candidate support is counted.
type Strategy int

const (
	// StrategyScan scans every transaction once per level.
	StrategyScan Strategy = iota
	// StrategyBitmap intersects per-item transaction bitmaps.
	StrategyBitmap
)

func (s Strategy) String() string {
	switch s {
	case StrategyScan:
		return "scan"
	case StrategyBitmap:
		return "bitmap"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a configuration name to a Strategy. The empty string
// selects StrategyScan.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "scan":
		return StrategyScan, nil
	case "bitmap":
		return StrategyBitmap, nil
	default:
		return StrategyScan, errors.Wrapf(internalerr.ErrInvalidInput, "unknown counting strategy %q", name)
	}
}

// Options configures a mining run.
type Options struct {
	MinSupport float64
	MaxLength  int
	// Workers > 1 shards support counting across goroutines.
	Workers  int
	Strategy Strategy
	Logger   *zap.Logger
}

// Validate rejects options that indicate caller misuse.
func (o Options) Validate() error {
	if math.IsNaN(o.MinSupport) || o.MinSupport < 0 {
		return errors.WithHint(
			errors.Wrapf(internalerr.ErrInvalidInput, "min support %v", o.MinSupport),
			"min support is a fraction of transactions in (0, 1]",
		)
	}
	if o.MaxLength < 1 {
		return errors.WithHint(
			errors.Wrapf(internalerr.ErrInvalidInput, "max length %d", o.MaxLength),
			"max length must be a positive itemset size",
		)
	}
	if o.Strategy != StrategyScan && o.Strategy != StrategyBitmap {
		return errors.Wrapf(internalerr.ErrInvalidInput, "strategy %d", int(o.Strategy))
	}
	return nil
}

// LevelStats describes one level of the search.
type LevelStats struct {
	Size       int
	Candidates int
	Pruned     int
	Frequent   int
}

// Result is the outcome of Mine.
type Result struct {
	Itemsets     *itemset.Frequent
	Levels       []LevelStats
	Transactions int
	Threshold    int64
}

// Mine finds every itemset of size 1..MaxLength contained in at least
// Threshold(MinSupport, len(transactions)) transactions. Transactions must
// be canonical itemsets.
//
// Level k candidates are joined from level k-1, pruned of any candidate with
// an infrequent (k-1)-subset, counted, and filtered by the threshold. The
// search stops at MaxLength or at the first empty level.
func Mine(ctx context.Context, transactions []itemset.Itemset, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	for i, tx := range transactions {
		if !tx.IsCanonical() {
			return Result{}, errors.Wrapf(internalerr.ErrInvalidInput, "transaction %d is not sorted and unique: %v", i, tx)
		}
	}

	log := logging.OrNop(opts.Logger)
	start := time.Now()

	n := len(transactions)
	threshold := Threshold(opts.MinSupport, n)
	freq := itemset.NewFrequent()
	res := Result{Itemsets: freq, Transactions: n, Threshold: threshold}

	singles := countSingletons(transactions)
	level := itemset.NewCounts()
	for id, c := range singles {
		if c >= threshold {
			level.Set(itemset.Itemset{id}, c)
		}
	}
	freq.SetLevel(1, level)
	res.Levels = append(res.Levels, LevelStats{Size: 1, Candidates: len(singles), Frequent: level.Len()})
	logLevel(log, res.Levels[0])

	if level.Len() == 0 || opts.MaxLength == 1 {
		logDone(log, res, opts, start)
		return res, nil
	}

	cnt := newCounter(transactions, level, opts)

	prev := level
	for k := 2; k <= opts.MaxLength; k++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		candidates := Join(prev.Itemsets())
		kept, pruned := Prune(candidates, prev)
		stats := LevelStats{Size: k, Candidates: len(candidates), Pruned: pruned}
		if len(kept) == 0 {
			res.Levels = append(res.Levels, stats)
			logLevel(log, stats)
			break
		}

		counts, err := cnt.count(ctx, kept)
		if err != nil {
			return Result{}, err
		}

		next := itemset.NewCounts()
		for i, cand := range kept {
			if counts[i] >= threshold {
				next.Set(cand, counts[i])
			}
		}
		stats.Frequent = next.Len()
		res.Levels = append(res.Levels, stats)
		logLevel(log, stats)

		if next.Len() == 0 {
			break
		}
		freq.SetLevel(k, next)
		prev = next
	}

	logDone(log, res, opts, start)
	return res, nil
}

func newCounter(transactions []itemset.Itemset, singles *itemset.Counts, opts Options) counter {
	if opts.Strategy == StrategyBitmap {
		keep := func(id itemset.ItemID) bool { return singles.Has(itemset.Itemset{id}) }
		return &bitmapCounter{index: NewVerticalIndex(transactions, keep), workers: opts.Workers}
	}
	return &scanCounter{transactions: transactions, workers: opts.Workers}
}

func logLevel(log *zap.Logger, s LevelStats) {
	log.Debug("level mined",
		zap.Int(logging.FieldLevel, s.Size),
		zap.Int(logging.FieldCandidates, s.Candidates),
		zap.Int(logging.FieldPruned, s.Pruned),
		zap.Int(logging.FieldFrequent, s.Frequent),
	)
}

func logDone(log *zap.Logger, res Result, opts Options, start time.Time) {
	log.Debug("frequent itemsets mined",
		zap.Int(logging.FieldTransactions, res.Transactions),
		zap.Int64(logging.FieldThreshold, res.Threshold),
		zap.Int(logging.FieldFrequent, res.Itemsets.Len()),
		zap.Stringer(logging.FieldStrategy, opts.Strategy),
		zap.Int(logging.FieldWorkers, opts.Workers),
		zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
	)
}
