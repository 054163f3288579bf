package itemset

import (
	"encoding/binary"
	"slices"
	"strconv"
	"strings"
)

// ItemID is a dense, zero-based handle assigned to an item during interning.
type ItemID uint32

// Itemset is a set of items in canonical form: strictly ascending, no duplicates.
type Itemset []ItemID

// Key is the structural map key for an Itemset. Two itemsets with the same
// members always produce the same Key.
type Key string

// New returns the canonical itemset for ids. The input is not modified.
func New(ids ...ItemID) Itemset {
	out := make(Itemset, len(ids))
	copy(out, ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// IsCanonical reports whether s is strictly ascending.
func (s Itemset) IsCanonical() bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] >= s[i] {
			return false
		}
	}
	return true
}

// Key encodes s as 4 big-endian bytes per handle, so Key order matches
// lexicographic itemset order.
func (s Itemset) Key() Key {
	buf := make([]byte, 4*len(s))
	for i, id := range s {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(id))
	}
	return Key(buf)
}

// Itemset decodes k back into the itemset it was built from.
func (k Key) Itemset() Itemset {
	n := len(k) / 4
	out := make(Itemset, n)
	for i := 0; i < n; i++ {
		out[i] = ItemID(binary.BigEndian.Uint32([]byte(k[4*i : 4*i+4])))
	}
	return out
}

// Equal reports whether s and other have the same members.
func (s Itemset) Equal(other Itemset) bool {
	return slices.Equal(s, other)
}

// Compare orders itemsets lexicographically, shorter prefixes first.
func Compare(a, b Itemset) int {
	return slices.Compare(a, b)
}

// Without returns a copy of s with the element at index i removed.
func (s Itemset) Without(i int) Itemset {
	out := make(Itemset, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// IsSubset reports whether every element of sub is in super.
// Both must be canonical; the test is a single merge pass.
func IsSubset(sub, super Itemset) bool {
	if len(sub) > len(super) {
		return false
	}
	j := 0
	for _, id := range sub {
		for j < len(super) && super[j] < id {
			j++
		}
		if j == len(super) || super[j] != id {
			return false
		}
		j++
	}
	return true
}

// Split partitions s by mask: bit i set puts s[i] in the first result.
func (s Itemset) Split(mask uint64) (in, out Itemset) {
	in = make(Itemset, 0, len(s))
	out = make(Itemset, 0, len(s))
	for i, id := range s {
		if mask&(1<<uint(i)) != 0 {
			in = append(in, id)
		} else {
			out = append(out, id)
		}
	}
	return in, out
}

func (s Itemset) String() string {
	parts := make([]string, len(s))
	for i, id := range s {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
