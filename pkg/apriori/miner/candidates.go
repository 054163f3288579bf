package miner

import (
	"slices"

	"github.com/cognicore/apriori/pkg/apriori/itemset"
)

// Join builds size-k candidates from the frequent itemsets of size k-1.
// prev must be sorted lexicographically (as returned by Counts.Itemsets).
// Two itemsets are joined when they share their first k-2 items; the result
// is that prefix followed by both last items in ascending order. Output is
// sorted lexicographically and contains no duplicates.
func Join(prev []itemset.Itemset) []itemset.Itemset {
	var out []itemset.Itemset
	for i := 0; i < len(prev); i++ {
		a := prev[i]
		if len(a) == 0 {
			continue
		}
		prefix := a[:len(a)-1]
		for j := i + 1; j < len(prev); j++ {
			b := prev[j]
			// sorted input keeps equal prefixes contiguous
			if len(b) != len(a) || !slices.Equal(prefix, b[:len(b)-1]) {
				break
			}
			cand := make(itemset.Itemset, len(a)+1)
			copy(cand, a)
			cand[len(a)] = b[len(b)-1]
			out = append(out, cand)
		}
	}
	return out
}

// Prune drops every candidate that has a (k-1)-subset missing from prev.
// It returns the survivors in input order and the number removed.
func Prune(candidates []itemset.Itemset, prev *itemset.Counts) ([]itemset.Itemset, int) {
	kept := make([]itemset.Itemset, 0, len(candidates))
	for _, cand := range candidates {
		if allSubsetsFrequent(cand, prev) {
			kept = append(kept, cand)
		}
	}
	return kept, len(candidates) - len(kept)
}

func allSubsetsFrequent(cand itemset.Itemset, prev *itemset.Counts) bool {
	for i := range cand {
		if !prev.Has(cand.Without(i)) {
			return false
		}
	}
	return true
}
