package rules

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
	"github.com/cognicore/apriori/pkg/apriori/logging"
)

// maxSplitSize bounds the itemset size whose splits fit in a uint64 mask.
const maxSplitSize = 63

// Rule is an association rule Antecedent => Consequent.
type Rule struct {
	Antecedent itemset.Itemset
	Consequent itemset.Itemset
	// Confidence = count(A ∪ C) / count(A)
	Confidence float64
	// Lift = Confidence / support(C)
	Lift float64
	// Support = count(A ∪ C) / n
	Support float64
}

type options struct {
	workers int
	logger  *zap.Logger
}

// Option configures Generate.
type Option func(*options)

// WithWorkers spreads itemsets across n goroutines. n <= 1 runs serially.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger used for the run summary.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Generate derives every rule with confidence >= minConfidence from the
// frequent itemsets in freq. n is the number of transactions freq was
// mined from.
//
// Each itemset of size >= 2 is split into every non-empty antecedent and
// non-empty consequent. All counts come from freq; a subset missing from
// freq means the table was not built by the miner and is reported as
// ErrCorruptTable. The result is sorted by descending confidence.
func Generate(minConfidence float64, freq *itemset.Frequent, n int, opts ...Option) ([]Rule, error) {
	if math.IsNaN(minConfidence) || minConfidence < 0 {
		return nil, errors.WithHint(
			errors.Wrapf(internalerr.ErrInvalidInput, "min confidence %v", minConfidence),
			"min confidence is a probability in [0, 1]",
		)
	}
	if n < 0 {
		return nil, errors.Wrapf(internalerr.ErrInvalidInput, "transaction count %d", n)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.logger)

	var sources []itemset.Entry
	for _, size := range freq.Sizes() {
		if size < 2 {
			continue
		}
		if size > maxSplitSize {
			return nil, errors.Wrapf(internalerr.ErrInvalidInput, "itemset size %d exceeds %d", size, maxSplitSize)
		}
		sources = append(sources, freq.Level(size).Entries()...)
	}

	// one slot per source keeps pre-sort order independent of scheduling
	slots := make([][]Rule, len(sources))
	gen := func(i int) error {
		rs, err := fromItemset(sources[i], freq, n, minConfidence)
		if err != nil {
			return err
		}
		slots[i] = rs
		return nil
	}

	if o.workers <= 1 {
		for i := range sources {
			if err := gen(i); err != nil {
				return nil, err
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(o.workers)
		for i := range sources {
			g.Go(func() error { return gen(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var out []Rule
	for _, rs := range slots {
		out = append(out, rs...)
	}
	Sort(out)

	log.Debug("rules generated",
		zap.Int(logging.FieldFrequent, len(sources)),
		zap.Int(logging.FieldRules, len(out)),
		zap.Int(logging.FieldWorkers, o.workers),
	)
	return out, nil
}

func fromItemset(e itemset.Entry, freq *itemset.Frequent, n int, minConfidence float64) ([]Rule, error) {
	var out []Rule
	full := uint64(1)<<uint(len(e.Items)) - 1
	for mask := uint64(1); mask < full; mask++ {
		ante, cons := e.Items.Split(mask)

		anteCount, ok := freq.Count(ante)
		if !ok || anteCount == 0 {
			return nil, errors.Wrapf(internalerr.ErrCorruptTable, "antecedent %v of %v has no count", ante, e.Items)
		}
		consCount, ok := freq.Count(cons)
		if !ok || consCount == 0 {
			return nil, errors.Wrapf(internalerr.ErrCorruptTable, "consequent %v of %v has no count", cons, e.Items)
		}

		confidence := float64(e.Count) / float64(anteCount)
		if confidence < minConfidence {
			continue
		}
		consSupport := float64(consCount) / float64(n)
		out = append(out, Rule{
			Antecedent: ante,
			Consequent: cons,
			Confidence: confidence,
			Lift:       confidence / consSupport,
			Support:    float64(e.Count) / float64(n),
		})
	}
	return out, nil
}

// Sort orders rules by descending confidence. It is stable, and NaN
// confidences compare as equal to everything.
func Sort(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Confidence > rs[j].Confidence
	})
}
