package itemset

import (
	"iter"
	"slices"
)

// Entry pairs an itemset with its support count.
type Entry struct {
	Items Itemset
	Count int64
}

// Counts maps itemsets of one size to the number of transactions that
// contain them.
type Counts struct {
	entries map[Key]int64
}

// NewCounts creates an empty count table.
func NewCounts() *Counts {
	return &Counts{entries: make(map[Key]int64)}
}

// Set records the count for s. s must be canonical.
func (c *Counts) Set(s Itemset, count int64) {
	c.entries[s.Key()] = count
}

// Get returns the count for s and whether s is present.
func (c *Counts) Get(s Itemset) (int64, bool) {
	if c == nil {
		return 0, false
	}
	n, ok := c.entries[s.Key()]
	return n, ok
}

// Has reports whether s is present.
func (c *Counts) Has(s Itemset) bool {
	_, ok := c.Get(s)
	return ok
}

// Len returns the number of itemsets in the table.
func (c *Counts) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns every itemset with its count in lexicographic order.
func (c *Counts) Entries() []Entry {
	if c == nil {
		return nil
	}
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	// big-endian keys sort in itemset order
	slices.Sort(keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Items: k.Itemset(), Count: c.entries[k]}
	}
	return out
}

// Itemsets returns the itemsets of the table in lexicographic order.
func (c *Counts) Itemsets() []Itemset {
	entries := c.Entries()
	out := make([]Itemset, len(entries))
	for i, e := range entries {
		out[i] = e.Items
	}
	return out
}

// Frequent holds frequent itemsets grouped by size. Only sizes with at least
// one itemset are present.
type Frequent struct {
	levels map[int]*Counts
}

// NewFrequent creates an empty table.
func NewFrequent() *Frequent {
	return &Frequent{levels: make(map[int]*Counts)}
}

// SetLevel stores the counts for itemsets of the given size. Empty tables
// are not stored.
func (f *Frequent) SetLevel(size int, c *Counts) {
	if c.Len() == 0 {
		delete(f.levels, size)
		return
	}
	f.levels[size] = c
}

// Level returns the counts for one size, or nil.
func (f *Frequent) Level(size int) *Counts {
	if f == nil {
		return nil
	}
	return f.levels[size]
}

// Count looks up s at its own size level.
func (f *Frequent) Count(s Itemset) (int64, bool) {
	return f.Level(len(s)).Get(s)
}

// Sizes returns the populated sizes in ascending order.
func (f *Frequent) Sizes() []int {
	if f == nil {
		return nil
	}
	sizes := make([]int, 0, len(f.levels))
	for k := range f.levels {
		sizes = append(sizes, k)
	}
	slices.Sort(sizes)
	return sizes
}

// MaxSize returns the largest populated size, or 0 when empty.
func (f *Frequent) MaxSize() int {
	sizes := f.Sizes()
	if len(sizes) == 0 {
		return 0
	}
	return sizes[len(sizes)-1]
}

// Len returns the total number of frequent itemsets across all sizes.
func (f *Frequent) Len() int {
	if f == nil {
		return 0
	}
	total := 0
	for _, c := range f.levels {
		total += c.Len()
	}
	return total
}

// IsEmpty reports whether no itemset is frequent.
func (f *Frequent) IsEmpty() bool {
	return f.Len() == 0
}

// All yields every frequent itemset, by ascending size then lexicographically.
func (f *Frequent) All() iter.Seq2[Itemset, int64] {
	return func(yield func(Itemset, int64) bool) {
		for _, size := range f.Sizes() {
			for _, e := range f.levels[size].Entries() {
				if !yield(e.Items, e.Count) {
					return
				}
			}
		}
	}
}
