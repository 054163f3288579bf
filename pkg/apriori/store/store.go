package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/apriori/pkg/apriori"
)

// Store persists mining runs and answers queries over their results
type Store interface {
	Close() error

	// Runs
	SaveRun(ctx context.Context, r Run) (string, error)
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	DeleteRun(ctx context.Context, id string) error

	// Results
	TopRules(ctx context.Context, runID string, k int) ([]Rule, error)
	ItemsetsBySize(ctx context.Context, runID string, size int) ([]Itemset, error)
}

// Params records the settings a run was mined with
type Params struct {
	MinSupport    float64
	MinConfidence float64
	MaxLength     int
	Strategy      string
}

// Run is one stored mining result, expressed in item tokens
type Run struct {
	ID           string
	CreatedAt    time.Time
	Params       Params
	Transactions int
	Itemsets     []Itemset
	Rules        []Rule
}

// RunSummary describes a run without its results
type RunSummary struct {
	ID           string
	CreatedAt    time.Time
	Params       Params
	Transactions int
	Itemsets     int
	Rules        int
}

// Itemset is a stored frequent itemset
type Itemset struct {
	Items []string
	Count int64
}

// Rule is a stored association rule
type Rule struct {
	Antecedent []string
	Consequent []string
	Confidence float64
	Lift       float64
	Support    float64
}

// Summary returns the summary of r.
func (r Run) Summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Params:       r.Params,
		Transactions: r.Transactions,
		Itemsets:     len(r.Itemsets),
		Rules:        len(r.Rules),
	}
}

// NewRun builds a Run from mining output.
func NewRun(params Params, transactions int, itemsets []apriori.Itemset[string], rules []apriori.Rule[string]) Run {
	run := Run{
		Params:       params,
		Transactions: transactions,
		Itemsets:     make([]Itemset, len(itemsets)),
		Rules:        make([]Rule, len(rules)),
	}
	for i, s := range itemsets {
		run.Itemsets[i] = Itemset{Items: s.Items, Count: s.Count}
	}
	for i, r := range rules {
		run.Rules[i] = Rule{
			Antecedent: r.Antecedent,
			Consequent: r.Consequent,
			Confidence: r.Confidence,
			Lift:       r.Lift,
			Support:    r.Support,
		}
	}
	return run
}

// IDSource hands out lexicographically sortable run IDs
type IDSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDSource creates a new run ID source
func NewIDSource() *IDSource {
	return &IDSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ID stamped with t.
func (s *IDSource) Next(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}
