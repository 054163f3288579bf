package rules

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
	"github.com/cognicore/apriori/pkg/apriori/miner"
)

func buildFrequent(entries map[string]int64, sets map[string]itemset.Itemset) *itemset.Frequent {
	f := itemset.NewFrequent()
	levels := map[int]*itemset.Counts{}
	for name, s := range sets {
		c, ok := levels[len(s)]
		if !ok {
			c = itemset.NewCounts()
			levels[len(s)] = c
		}
		c.Set(s, entries[name])
	}
	for size, c := range levels {
		f.SetLevel(size, c)
	}
	return f
}

func findRule(rs []Rule, ante, cons itemset.Itemset) (Rule, bool) {
	for _, r := range rs {
		if r.Antecedent.Equal(ante) && r.Consequent.Equal(cons) {
			return r, true
		}
	}
	return Rule{}, false
}

func TestGenerateConfidenceAndLift(t *testing.T) {
	// a=0 b=1; {a,b}:10 {a}:10 {b}:15, n=20
	freq := buildFrequent(
		map[string]int64{"a": 10, "b": 15, "ab": 10},
		map[string]itemset.Itemset{"a": {0}, "b": {1}, "ab": {0, 1}},
	)

	rs, err := Generate(0, freq, 20)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rs))
	}

	ab, ok := findRule(rs, itemset.Itemset{0}, itemset.Itemset{1})
	if !ok {
		t.Fatal("missing rule a => b")
	}
	if ab.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", ab.Confidence)
	}
	if math.Abs(ab.Lift-4.0/3.0) > 1e-9 {
		t.Errorf("lift = %v, want 1.333...", ab.Lift)
	}
	if ab.Support != 0.5 {
		t.Errorf("support = %v, want 0.5", ab.Support)
	}

	ba, ok := findRule(rs, itemset.Itemset{1}, itemset.Itemset{0})
	if !ok {
		t.Fatal("missing rule b => a")
	}
	if math.Abs(ba.Confidence-10.0/15.0) > 1e-9 {
		t.Errorf("confidence = %v", ba.Confidence)
	}
	if math.Abs(ba.Lift-(10.0/15.0)/(10.0/20.0)) > 1e-9 {
		t.Errorf("lift = %v", ba.Lift)
	}

	if rs[0].Confidence < rs[1].Confidence {
		t.Error("rules should be sorted by descending confidence")
	}
}

func TestGenerateAllSplits(t *testing.T) {
	freq := buildFrequent(
		map[string]int64{"a": 4, "b": 4, "c": 4, "ab": 3, "ac": 3, "bc": 3, "abc": 2},
		map[string]itemset.Itemset{
			"a": {0}, "b": {1}, "c": {2},
			"ab": {0, 1}, "ac": {0, 2}, "bc": {1, 2},
			"abc": {0, 1, 2},
		},
	)
	rs, err := Generate(0, freq, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 3 pairs * 2 splits + 1 triple * 6 splits
	if len(rs) != 12 {
		t.Fatalf("expected 12 rules, got %d", len(rs))
	}
	r, ok := findRule(rs, itemset.Itemset{0}, itemset.Itemset{1, 2})
	if !ok {
		t.Fatal("missing multi-item consequent rule a => b,c")
	}
	if r.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", r.Confidence)
	}
}

func TestGenerateMinConfidenceFilter(t *testing.T) {
	freq := buildFrequent(
		map[string]int64{"a": 10, "b": 15, "ab": 10},
		map[string]itemset.Itemset{"a": {0}, "b": {1}, "ab": {0, 1}},
	)

	rs, err := Generate(1.0, freq, 20)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rs) != 1 || !rs[0].Antecedent.Equal(itemset.Itemset{0}) {
		t.Errorf("only a => b has confidence 1, got %+v", rs)
	}

	rs, err = Generate(1.5, freq, 20)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rs) != 0 {
		t.Errorf("no rule can exceed confidence 1, got %d", len(rs))
	}
}

func TestGenerateNoMultiItemSets(t *testing.T) {
	freq := buildFrequent(map[string]int64{"x": 1}, map[string]itemset.Itemset{"x": {0}})
	rs, err := Generate(0.1, freq, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rs) != 0 {
		t.Errorf("expected no rules, got %d", len(rs))
	}
}

func TestGenerateEmptyTable(t *testing.T) {
	rs, err := Generate(0.5, itemset.NewFrequent(), 0)
	if err != nil || len(rs) != 0 {
		t.Errorf("Generate on empty table = %v, %v", rs, err)
	}
}

func TestGenerateInvalidInput(t *testing.T) {
	freq := itemset.NewFrequent()
	for _, c := range []float64{-0.1, math.NaN()} {
		if _, err := Generate(c, freq, 10); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Generate(%v) err = %v, want ErrInvalidInput", c, err)
		}
	}
	if _, err := Generate(0.5, freq, -1); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("negative n err = %v", err)
	}
}

func TestGenerateCorruptTable(t *testing.T) {
	// {a,b} present but {b} missing
	freq := buildFrequent(
		map[string]int64{"a": 3, "ab": 2},
		map[string]itemset.Itemset{"a": {0}, "ab": {0, 1}},
	)
	_, err := Generate(0, freq, 5)
	if !errors.Is(err, internalerr.ErrCorruptTable) {
		t.Errorf("expected ErrCorruptTable, got %v", err)
	}
}

func TestSortNaNTerminates(t *testing.T) {
	rs := []Rule{
		{Confidence: 0.2},
		{Confidence: math.NaN()},
		{Confidence: 0.9},
		{Confidence: 0.5},
	}
	Sort(rs)
	if len(rs) != 4 {
		t.Fatal("sort lost rules")
	}
}

func TestSortStable(t *testing.T) {
	rs := []Rule{
		{Antecedent: itemset.Itemset{1}, Confidence: 0.5},
		{Antecedent: itemset.Itemset{2}, Confidence: 0.9},
		{Antecedent: itemset.Itemset{3}, Confidence: 0.5},
	}
	Sort(rs)
	if rs[0].Antecedent[0] != 2 || rs[1].Antecedent[0] != 1 || rs[2].Antecedent[0] != 3 {
		t.Errorf("unexpected order: %+v", rs)
	}
}

func minedTable(t *testing.T) (*itemset.Frequent, int) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	txs := make([]itemset.Itemset, 250)
	for i := range txs {
		ids := make([]itemset.ItemID, 1+rng.Intn(6))
		for j := range ids {
			ids[j] = itemset.ItemID(rng.Intn(8) * rng.Intn(8) / 8)
		}
		txs[i] = itemset.New(ids...)
	}
	res, err := miner.Mine(context.Background(), txs, miner.Options{MinSupport: 0.05, MaxLength: 4})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	return res.Itemsets, len(txs)
}

func TestGenerateRuleValidity(t *testing.T) {
	freq, n := minedTable(t)
	const minConf = 0.3

	rs, err := Generate(minConf, freq, n)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(rs) == 0 {
		t.Fatal("expected some rules from mined data")
	}

	for i, r := range rs {
		if len(r.Antecedent) == 0 || len(r.Consequent) == 0 {
			t.Fatalf("rule %d has an empty side: %+v", i, r)
		}
		union := itemset.New(append(append([]itemset.ItemID{}, r.Antecedent...), r.Consequent...)...)
		if len(union) != len(r.Antecedent)+len(r.Consequent) {
			t.Errorf("rule %d sides overlap: %v / %v", i, r.Antecedent, r.Consequent)
		}
		if _, ok := freq.Count(union); !ok {
			t.Errorf("rule %d union %v not frequent", i, union)
		}
		if r.Confidence < minConf || r.Confidence > 1 {
			t.Errorf("rule %d confidence %v out of range", i, r.Confidence)
		}
		if r.Lift < 0 {
			t.Errorf("rule %d lift %v negative", i, r.Lift)
		}
		if i > 0 && rs[i-1].Confidence < r.Confidence {
			t.Errorf("rules not sorted at %d", i)
		}
	}
}

func TestGenerateParallelMatchesSerial(t *testing.T) {
	freq, n := minedTable(t)

	serial, err := Generate(0.2, freq, n)
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	parallel, err := Generate(0.2, freq, n, WithWorkers(4))
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if len(serial) != len(parallel) {
		t.Fatalf("serial %d rules, parallel %d", len(serial), len(parallel))
	}
	for i := range serial {
		s, p := serial[i], parallel[i]
		if !s.Antecedent.Equal(p.Antecedent) || !s.Consequent.Equal(p.Consequent) || s.Confidence != p.Confidence {
			t.Errorf("rule %d differs: %+v vs %+v", i, s, p)
		}
	}
}
