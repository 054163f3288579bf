package miner

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
)

// a=0 b=1 c=2
func scenarioOne() []itemset.Itemset {
	return []itemset.Itemset{
		{0, 1},
		{0, 1, 2},
		{0},
		{1, 2},
	}
}

func TestThreshold(t *testing.T) {
	cases := []struct {
		support float64
		n       int
		want    int64
	}{
		{0.5, 4, 2},
		{0.3, 10, 3},
		{0.7, 10, 7},
		{0.25, 3, 1},
		{0.26, 4, 2},
		{1.0, 4, 4},
		{0, 4, 1},
		{0.1, 1, 1},
		{1.5, 4, 5},
		{0.5, 0, 1},
	}
	for _, tc := range cases {
		if got := Threshold(tc.support, tc.n); got != tc.want {
			t.Errorf("Threshold(%v, %d) = %d, want %d", tc.support, tc.n, got, tc.want)
		}
	}
}

func TestJoinSharedPrefix(t *testing.T) {
	prev := []itemset.Itemset{
		{1, 2}, {1, 3}, {1, 4}, {2, 3}, {3, 5},
	}
	got := Join(prev)
	want := []itemset.Itemset{{1, 2, 3}, {1, 2, 4}, {1, 3, 4}}
	if len(got) != len(want) {
		t.Fatalf("Join = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("candidate %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestJoinSingletons(t *testing.T) {
	got := Join([]itemset.Itemset{{0}, {1}, {2}})
	if len(got) != 3 {
		t.Fatalf("expected all 3 pairs, got %v", got)
	}
}

func TestJoinEmpty(t *testing.T) {
	if got := Join(nil); len(got) != 0 {
		t.Errorf("Join(nil) = %v", got)
	}
}

func TestPruneDropsInfrequentSubsets(t *testing.T) {
	prev := itemset.NewCounts()
	for _, s := range []itemset.Itemset{{1, 2}, {1, 3}, {1, 4}, {2, 3}} {
		prev.Set(s, 2)
	}
	candidates := []itemset.Itemset{{1, 2, 3}, {1, 2, 4}, {1, 3, 4}}

	kept, pruned := Prune(candidates, prev)
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
	if len(kept) != 1 || !kept[0].Equal(itemset.Itemset{1, 2, 3}) {
		t.Errorf("kept = %v", kept)
	}
}

func TestCountScan(t *testing.T) {
	txs := scenarioOne()
	counts := CountScan(txs, []itemset.Itemset{{0, 1}, {0, 2}, {1, 2}})
	want := []int64{2, 1, 2}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("count %d = %d, want %d", i, counts[i], want[i])
		}
	}
}

func TestVerticalIndexSupport(t *testing.T) {
	idx := NewVerticalIndex(scenarioOne(), nil)
	cases := map[string]struct {
		s    itemset.Itemset
		want int64
	}{
		"single": {itemset.Itemset{0}, 3},
		"pair":   {itemset.Itemset{1, 2}, 2},
		"triple": {itemset.Itemset{0, 1, 2}, 1},
		"absent": {itemset.Itemset{9}, 0},
		"empty":  {itemset.Itemset{}, 0},
	}
	for name, tc := range cases {
		if got := idx.Support(tc.s); got != tc.want {
			t.Errorf("%s: Support(%v) = %d, want %d", name, tc.s, got, tc.want)
		}
	}
}

func TestShardBounds(t *testing.T) {
	b := shardBounds(10, 3)
	if len(b) != 3 || b[0] != (bounds{0, 4}) || b[1] != (bounds{4, 7}) || b[2] != (bounds{7, 10}) {
		t.Errorf("shardBounds(10,3) = %v", b)
	}
	if got := shardBounds(2, 5); len(got) != 2 {
		t.Errorf("shardBounds(2,5) = %v", got)
	}
	if got := shardBounds(0, 4); len(got) != 0 {
		t.Errorf("shardBounds(0,4) = %v", got)
	}
}

func TestMineScenarioOne(t *testing.T) {
	res, err := Mine(context.Background(), scenarioOne(), Options{MinSupport: 0.5, MaxLength: 3})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	freq := res.Itemsets

	expect := map[string]int64{
		itemset.Itemset{0}.String():    3,
		itemset.Itemset{1}.String():    3,
		itemset.Itemset{2}.String():    2,
		itemset.Itemset{0, 1}.String(): 2,
		itemset.Itemset{1, 2}.String(): 2,
	}
	got := map[string]int64{}
	for s, c := range freq.All() {
		got[s.String()] = c
	}
	if len(got) != len(expect) {
		t.Fatalf("frequent = %v, want %v", got, expect)
	}
	for k, v := range expect {
		if got[k] != v {
			t.Errorf("count %s = %d, want %d", k, got[k], v)
		}
	}
	if freq.Level(2).Has(itemset.Itemset{0, 2}) {
		t.Error("{a,c} has support 1/4 and must not be frequent")
	}
	if freq.Level(3) != nil {
		t.Error("no itemset of size 3 should be frequent")
	}
	if res.Threshold != 2 {
		t.Errorf("threshold = %d", res.Threshold)
	}
}

func TestMineScenarioTwoSingleItem(t *testing.T) {
	res, err := Mine(context.Background(), []itemset.Itemset{{0}}, Options{MinSupport: 0.1, MaxLength: 5})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if got := res.Itemsets.Sizes(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("sizes = %v", got)
	}
	if n, ok := res.Itemsets.Count(itemset.Itemset{0}); !ok || n != 1 {
		t.Errorf("count({x}) = %d, %v", n, ok)
	}
}

func TestMineScenarioThreeFullSupport(t *testing.T) {
	txs := []itemset.Itemset{{0, 1}, {2, 3}}
	res, err := Mine(context.Background(), txs, Options{MinSupport: 1.0, MaxLength: 4})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !res.Itemsets.IsEmpty() {
		t.Errorf("expected nothing frequent, got %d itemsets", res.Itemsets.Len())
	}
	if len(res.Levels) != 1 {
		t.Errorf("mining should halt after level 1, levels = %+v", res.Levels)
	}
}

func TestMineEmptyInput(t *testing.T) {
	res, err := Mine(context.Background(), nil, Options{MinSupport: 0.5, MaxLength: 3})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !res.Itemsets.IsEmpty() || res.Transactions != 0 {
		t.Error("empty input should give empty result")
	}
}

func TestMineSupportAboveOne(t *testing.T) {
	res, err := Mine(context.Background(), scenarioOne(), Options{MinSupport: 1.2, MaxLength: 3})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !res.Itemsets.IsEmpty() {
		t.Error("support above 1 should leave nothing frequent")
	}
}

func TestMineZeroSupportKeepsObserved(t *testing.T) {
	res, err := Mine(context.Background(), scenarioOne(), Options{MinSupport: 0, MaxLength: 3})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if n, ok := res.Itemsets.Count(itemset.Itemset{0, 1, 2}); !ok || n != 1 {
		t.Errorf("count({a,b,c}) = %d, %v", n, ok)
	}
	if res.Itemsets.Level(2).Len() != 3 {
		t.Errorf("all three observed pairs should be kept, got %d", res.Itemsets.Level(2).Len())
	}
}

func TestMineMaxLengthBound(t *testing.T) {
	res, err := Mine(context.Background(), scenarioOne(), Options{MinSupport: 0, MaxLength: 1})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if res.Itemsets.MaxSize() != 1 {
		t.Errorf("MaxSize = %d, want 1", res.Itemsets.MaxSize())
	}
}

func TestMineValidation(t *testing.T) {
	cases := []Options{
		{MinSupport: 0.5, MaxLength: 0},
		{MinSupport: -0.1, MaxLength: 2},
		{MinSupport: nan(), MaxLength: 2},
		{MinSupport: 0.5, MaxLength: 2, Strategy: Strategy(7)},
	}
	for _, opts := range cases {
		_, err := Mine(context.Background(), scenarioOne(), opts)
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Mine(%+v) err = %v, want ErrInvalidInput", opts, err)
		}
	}
}

func TestMineRejectsNonCanonicalTransactions(t *testing.T) {
	_, err := Mine(context.Background(), []itemset.Itemset{{2, 1}}, Options{MinSupport: 0.5, MaxLength: 2})
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestMineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Mine(ctx, scenarioOne(), Options{MinSupport: 0.25, MaxLength: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMineLevelStats(t *testing.T) {
	res, err := Mine(context.Background(), scenarioOne(), Options{MinSupport: 0.5, MaxLength: 3})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if len(res.Levels) != 3 {
		t.Fatalf("levels = %+v", res.Levels)
	}
	l2 := res.Levels[1]
	if l2.Candidates != 3 || l2.Frequent != 2 {
		t.Errorf("level 2 stats = %+v", l2)
	}
	// {a,c} is infrequent, and {a,b} and {b,c} share no prefix to join on
	l3 := res.Levels[2]
	if l3.Candidates != 0 || l3.Frequent != 0 {
		t.Errorf("level 3 stats = %+v", l3)
	}
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{"": StrategyScan, "scan": StrategyScan, "Bitmap": StrategyBitmap} {
		got, err := ParseStrategy(name)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseStrategy("magic"); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if StrategyBitmap.String() != "bitmap" {
		t.Errorf("String = %q", StrategyBitmap.String())
	}
}

func randomTransactions(seed int64, n, items, maxLen int) []itemset.Itemset {
	rng := rand.New(rand.NewSource(seed))
	out := make([]itemset.Itemset, n)
	for i := range out {
		size := 1 + rng.Intn(maxLen)
		ids := make([]itemset.ItemID, size)
		for j := range ids {
			// skew towards low ids so larger itemsets become frequent
			ids[j] = itemset.ItemID(rng.Intn(items) * rng.Intn(items) / items)
		}
		out[i] = itemset.New(ids...)
	}
	return out
}

// bruteForce counts every subset of every transaction up to maxLen.
func bruteForce(txs []itemset.Itemset, maxLen int) map[itemset.Key]int64 {
	counts := make(map[itemset.Key]int64)
	for _, tx := range txs {
		total := uint64(1) << uint(len(tx))
		for mask := uint64(1); mask < total; mask++ {
			sub, _ := tx.Split(mask)
			if len(sub) > maxLen {
				continue
			}
			counts[sub.Key()]++
		}
	}
	return counts
}

func TestMineMatchesBruteForce(t *testing.T) {
	txs := randomTransactions(42, 200, 12, 6)
	const support, maxLen = 0.08, 4

	res, err := Mine(context.Background(), txs, Options{MinSupport: support, MaxLength: maxLen})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	threshold := Threshold(support, len(txs))

	want := 0
	for k, c := range bruteForce(txs, maxLen) {
		s := k.Itemset()
		got, ok := res.Itemsets.Count(s)
		if c >= threshold {
			want++
			if !ok || got != c {
				t.Errorf("itemset %v: got %d (present=%v), want %d", s, got, ok, c)
			}
		} else if ok {
			t.Errorf("itemset %v with count %d below threshold %d reported frequent", s, c, threshold)
		}
	}
	if res.Itemsets.Len() != want {
		t.Errorf("frequent itemsets = %d, want %d", res.Itemsets.Len(), want)
	}
	if res.Itemsets.MaxSize() < 2 {
		t.Fatalf("test data should produce multi-item itemsets, max size %d", res.Itemsets.MaxSize())
	}
}

func TestMineAntiMonotone(t *testing.T) {
	txs := randomTransactions(7, 300, 10, 7)
	res, err := Mine(context.Background(), txs, Options{MinSupport: 0.05, MaxLength: 5})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	for s, c := range res.Itemsets.All() {
		if len(s) < 2 {
			continue
		}
		for i := range s {
			sub := s.Without(i)
			sc, ok := res.Itemsets.Count(sub)
			if !ok {
				t.Fatalf("subset %v of frequent %v missing", sub, s)
			}
			if sc < c {
				t.Errorf("count(%v)=%d < count(%v)=%d", sub, sc, s, c)
			}
		}
	}
}

func TestMineStrategiesAgree(t *testing.T) {
	txs := randomTransactions(99, 500, 15, 8)
	base, err := Mine(context.Background(), txs, Options{MinSupport: 0.04, MaxLength: 5})
	if err != nil {
		t.Fatalf("Mine scan: %v", err)
	}

	variants := map[string]Options{
		"parallel scan":     {MinSupport: 0.04, MaxLength: 5, Workers: 4},
		"bitmap":            {MinSupport: 0.04, MaxLength: 5, Strategy: StrategyBitmap},
		"parallel bitmap":   {MinSupport: 0.04, MaxLength: 5, Strategy: StrategyBitmap, Workers: 3},
		"excess workers":    {MinSupport: 0.04, MaxLength: 5, Workers: 1000},
	}
	for name, opts := range variants {
		res, err := Mine(context.Background(), txs, opts)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Itemsets.Len() != base.Itemsets.Len() {
			t.Errorf("%s: %d itemsets, want %d", name, res.Itemsets.Len(), base.Itemsets.Len())
			continue
		}
		for s, c := range base.Itemsets.All() {
			got, ok := res.Itemsets.Count(s)
			if !ok || got != c {
				t.Errorf("%s: count(%v) = %d, %v; want %d", name, s, got, ok, c)
			}
		}
	}
}

func TestMineDeterministic(t *testing.T) {
	txs := randomTransactions(5, 150, 9, 5)
	a, err := Mine(context.Background(), txs, Options{MinSupport: 0.1, MaxLength: 4})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	b, err := Mine(context.Background(), txs, Options{MinSupport: 0.1, MaxLength: 4})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	var as, bs []itemset.Entry
	for s, c := range a.Itemsets.All() {
		as = append(as, itemset.Entry{Items: s, Count: c})
	}
	for s, c := range b.Itemsets.All() {
		bs = append(bs, itemset.Entry{Items: s, Count: c})
	}
	if len(as) != len(bs) {
		t.Fatalf("runs differ in size: %d vs %d", len(as), len(bs))
	}
	for i := range as {
		if !as[i].Items.Equal(bs[i].Items) || as[i].Count != bs[i].Count {
			t.Errorf("entry %d differs: %+v vs %+v", i, as[i], bs[i])
		}
	}
}

func nan() float64 { return math.NaN() }
