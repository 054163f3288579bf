package miner

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/apriori/pkg/apriori/itemset"
)

// counter returns, for each candidate of one size, the number of
// transactions containing it. counts[i] belongs to candidates[i].
type counter interface {
	count(ctx context.Context, candidates []itemset.Itemset) ([]int64, error)
}

// countSingletons counts every item across all transactions.
func countSingletons(transactions []itemset.Itemset) map[itemset.ItemID]int64 {
	counts := make(map[itemset.ItemID]int64)
	for _, tx := range transactions {
		for _, id := range tx {
			counts[id]++
		}
	}
	return counts
}

// CountScan counts candidates with one pass over the transactions, using a
// merge-style subset test per (transaction, candidate) pair.
func CountScan(transactions, candidates []itemset.Itemset) []int64 {
	counts := make([]int64, len(candidates))
	scanInto(counts, transactions, candidates)
	return counts
}

func scanInto(counts []int64, transactions, candidates []itemset.Itemset) {
	if len(candidates) == 0 {
		return
	}
	size := len(candidates[0])
	for _, tx := range transactions {
		if len(tx) < size {
			continue
		}
		for i, cand := range candidates {
			if itemset.IsSubset(cand, tx) {
				counts[i]++
			}
		}
	}
}

type scanCounter struct {
	transactions []itemset.Itemset
	workers      int
}

func (s *scanCounter) count(ctx context.Context, candidates []itemset.Itemset) ([]int64, error) {
	if s.workers <= 1 || len(s.transactions) < s.workers {
		return CountScan(s.transactions, candidates), nil
	}

	shards := shardBounds(len(s.transactions), s.workers)
	partials := make([][]int64, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			local := make([]int64, len(candidates))
			scanInto(local, s.transactions[shard.lo:shard.hi], candidates)
			partials[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make([]int64, len(candidates))
	for _, local := range partials {
		for i, n := range local {
			counts[i] += n
		}
	}
	return counts, nil
}

// VerticalIndex stores, for each item, the set of transactions containing it.
type VerticalIndex struct {
	tids map[itemset.ItemID]*roaring.Bitmap
}

// NewVerticalIndex builds the index over transactions. When keep is non-nil,
// only items for which keep returns true are indexed.
func NewVerticalIndex(transactions []itemset.Itemset, keep func(itemset.ItemID) bool) *VerticalIndex {
	idx := &VerticalIndex{tids: make(map[itemset.ItemID]*roaring.Bitmap)}
	for tid, tx := range transactions {
		for _, id := range tx {
			if keep != nil && !keep(id) {
				continue
			}
			bm, ok := idx.tids[id]
			if !ok {
				bm = roaring.New()
				idx.tids[id] = bm
			}
			bm.Add(uint32(tid))
		}
	}
	for _, bm := range idx.tids {
		bm.RunOptimize()
	}
	return idx
}

// Support returns the number of transactions containing every item of s.
func (idx *VerticalIndex) Support(s itemset.Itemset) int64 {
	bms := make([]*roaring.Bitmap, 0, len(s))
	for _, id := range s {
		bm, ok := idx.tids[id]
		if !ok {
			return 0
		}
		bms = append(bms, bm)
	}
	switch len(bms) {
	case 0:
		return 0
	case 1:
		return int64(bms[0].GetCardinality())
	case 2:
		return int64(bms[0].AndCardinality(bms[1]))
	default:
		return int64(roaring.FastAnd(bms...).GetCardinality())
	}
}

type bitmapCounter struct {
	index   *VerticalIndex
	workers int
}

func (b *bitmapCounter) count(ctx context.Context, candidates []itemset.Itemset) ([]int64, error) {
	counts := make([]int64, len(candidates))
	if b.workers <= 1 || len(candidates) < b.workers {
		for i, cand := range candidates {
			counts[i] = b.index.Support(cand)
		}
		return counts, nil
	}

	// each shard writes a disjoint range of counts
	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shardBounds(len(candidates), b.workers) {
		g.Go(func() error {
			for i := shard.lo; i < shard.hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				counts[i] = b.index.Support(candidates[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

type bounds struct{ lo, hi int }

// shardBounds splits [0,n) into at most parts contiguous ranges.
func shardBounds(n, parts int) []bounds {
	if parts > n {
		parts = n
	}
	if parts <= 0 {
		return nil
	}
	out := make([]bounds, 0, parts)
	size := n / parts
	rem := n % parts
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		out = append(out, bounds{lo: lo, hi: hi})
		lo = hi
	}
	return out
}
