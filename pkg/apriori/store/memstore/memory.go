package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	ids  *store.IDSource
	runs map[string]store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		ids:  store.NewIDSource(),
		runs: make(map[string]store.Run),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a copy of r, assigning an ID and timestamp when missing.
func (s *Store) SaveRun(ctx context.Context, r store.Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = s.ids.Next(r.CreatedAt)
	}
	s.runs[r.ID] = copyRun(r)
	return r.ID, nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, false, nil
	}
	return copyRun(r), true, nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.RunSummary, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteRun removes a run.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return errors.Wrapf(internalerr.ErrNotFound, "run %s", id)
	}
	delete(s.runs, id)
	return nil
}

// TopRules returns the k highest-confidence rules of a run.
func (s *Store) TopRules(ctx context.Context, runID string, k int) ([]store.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, errors.Wrapf(internalerr.ErrNotFound, "run %s", runID)
	}

	rules := copyRules(r.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Confidence > rules[j].Confidence
	})
	if k > 0 && len(rules) > k {
		rules = rules[:k]
	}
	return rules, nil
}

// ItemsetsBySize returns a run's frequent itemsets of one size.
func (s *Store) ItemsetsBySize(ctx context.Context, runID string, size int) ([]store.Itemset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, errors.Wrapf(internalerr.ErrNotFound, "run %s", runID)
	}

	var out []store.Itemset
	for _, is := range r.Itemsets {
		if len(is.Items) == size {
			out = append(out, store.Itemset{Items: copyStrings(is.Items), Count: is.Count})
		}
	}
	return out, nil
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyRules(in []store.Rule) []store.Rule {
	out := make([]store.Rule, len(in))
	for i, r := range in {
		r.Antecedent = copyStrings(r.Antecedent)
		r.Consequent = copyStrings(r.Consequent)
		out[i] = r
	}
	return out
}

func copyRun(r store.Run) store.Run {
	out := r
	out.Itemsets = make([]store.Itemset, len(r.Itemsets))
	for i, is := range r.Itemsets {
		out.Itemsets[i] = store.Itemset{Items: copyStrings(is.Items), Count: is.Count}
	}
	out.Rules = copyRules(r.Rules)
	return out
}
