package intern

import (
	"github.com/cockroachdb/errors"

	"github.com/cognicore/apriori/pkg/apriori/internalerr"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
)

// ReverseLookup maps a token to its handle.
type ReverseLookup[T comparable] map[T]itemset.ItemID

// Inventory maps handles back to the tokens they were assigned to.
// It is immutable once returned by an Interner.
type Inventory[T comparable] struct {
	tokens []T
}

// Token returns the token for id.
func (inv *Inventory[T]) Token(id itemset.ItemID) (T, bool) {
	var zero T
	if inv == nil || int(id) >= len(inv.tokens) {
		return zero, false
	}
	return inv.tokens[id], true
}

// Len returns the number of distinct tokens.
func (inv *Inventory[T]) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.tokens)
}

// Resolve maps every handle in s to its token, preserving order.
func (inv *Inventory[T]) Resolve(s itemset.Itemset) ([]T, error) {
	out := make([]T, len(s))
	for i, id := range s {
		tok, ok := inv.Token(id)
		if !ok {
			return nil, errors.Wrapf(internalerr.ErrUnknownItem, "item %d (inventory size %d)", id, inv.Len())
		}
		out[i] = tok
	}
	return out, nil
}

// Interner assigns dense handles to tokens in first-seen order.
type Interner[T comparable] struct {
	lookup ReverseLookup[T]
	tokens []T
}

// NewInterner creates an empty interner.
func NewInterner[T comparable]() *Interner[T] {
	return &Interner[T]{lookup: make(ReverseLookup[T])}
}

// ID returns the handle for tok, assigning the next one on first encounter.
func (in *Interner[T]) ID(tok T) itemset.ItemID {
	if id, ok := in.lookup[tok]; ok {
		return id
	}
	id := itemset.ItemID(len(in.tokens))
	in.lookup[tok] = id
	in.tokens = append(in.tokens, tok)
	return id
}

// Lookup returns the handle for tok without assigning one.
func (in *Interner[T]) Lookup(tok T) (itemset.ItemID, bool) {
	id, ok := in.lookup[tok]
	return id, ok
}

// Transaction interns one record. Duplicate tokens collapse to one handle.
func (in *Interner[T]) Transaction(raw []T) itemset.Itemset {
	ids := make([]itemset.ItemID, len(raw))
	for i, tok := range raw {
		ids[i] = in.ID(tok)
	}
	return itemset.New(ids...)
}

// Inventory returns a snapshot of the handle-to-token table.
func (in *Interner[T]) Inventory() *Inventory[T] {
	tokens := make([]T, len(in.tokens))
	copy(tokens, in.tokens)
	return &Inventory[T]{tokens: tokens}
}

// ReverseLookup returns a copy of the token-to-handle table.
func (in *Interner[T]) ReverseLookup() ReverseLookup[T] {
	out := make(ReverseLookup[T], len(in.lookup))
	for k, v := range in.lookup {
		out[k] = v
	}
	return out
}

// Intern converts raw transactions into canonical itemsets, in input order,
// and returns the completed lookup tables.
func Intern[T comparable](raw [][]T) ([]itemset.Itemset, *Inventory[T], ReverseLookup[T]) {
	in := NewInterner[T]()
	out := make([]itemset.Itemset, len(raw))
	for i, tx := range raw {
		out[i] = in.Transaction(tx)
	}
	return out, in.Inventory(), in.lookup
}
