package apriori

import (
	"github.com/cognicore/apriori/pkg/apriori/intern"
	"github.com/cognicore/apriori/pkg/apriori/itemset"
	"github.com/cognicore/apriori/pkg/apriori/rules"
)

// Rule is an association rule expressed in the caller's tokens.
type Rule[T comparable] struct {
	Antecedent []T
	Consequent []T
	Confidence float64
	Lift       float64
	Support    float64
}

// Itemset is a frequent itemset expressed in the caller's tokens.
type Itemset[T comparable] struct {
	Items []T
	Count int64
}

// ConvertRules maps the handles of each rule back to tokens, keeping the
// order of rs.
func ConvertRules[T comparable](rs []rules.Rule, inv *intern.Inventory[T]) ([]Rule[T], error) {
	out := make([]Rule[T], 0, len(rs))
	for _, r := range rs {
		ante, err := inv.Resolve(r.Antecedent)
		if err != nil {
			return nil, err
		}
		cons, err := inv.Resolve(r.Consequent)
		if err != nil {
			return nil, err
		}
		out = append(out, Rule[T]{
			Antecedent: ante,
			Consequent: cons,
			Confidence: r.Confidence,
			Lift:       r.Lift,
			Support:    r.Support,
		})
	}
	return out, nil
}

// DecodeItemsets flattens freq into token itemsets, ordered by size and
// then by handle order.
func DecodeItemsets[T comparable](freq *itemset.Frequent, inv *intern.Inventory[T]) ([]Itemset[T], error) {
	out := make([]Itemset[T], 0, freq.Len())
	for s, count := range freq.All() {
		items, err := inv.Resolve(s)
		if err != nil {
			return nil, err
		}
		out = append(out, Itemset[T]{Items: items, Count: count})
	}
	return out, nil
}
