// Package balance merges account balances and outgoing stake into
// per-identity totals and derives network statistics from them.
package balance

import (
	"fmt"
	"slices"

	"ChainSnap/internal/amount"
	"ChainSnap/internal/chain"
	"ChainSnap/internal/identity"
)

// Totals maps each identity to its aggregated holdings.
type Totals map[identity.Identity]amount.Amount

// Ranked is one identity with its total.
type Ranked struct {
	ID    identity.Identity `json:"address"` // ID is the ranked identity
	Total amount.Amount     `json:"total"`   // Total is its aggregated amount
}

// Aggregate sums free + reserved + frozen for each account and adds every
// stake edge to its staking side. Recipients of stake are not credited, and
// an identity that only receives stake has no entry. The result does not
// depend on input order.
func Aggregate(accounts []chain.AccountEntry, stake []chain.StakeEdge) (Totals, error) {
	totals := make(Totals, len(accounts))

	for _, edge := range stake {
		if err := totals.add(edge.From, edge.Amount); err != nil {
			return nil, fmt.Errorf("stake %s -> %s:\n%w", edge.From, edge.To, err)
		}
	}

	for _, acct := range accounts {
		holdings, err := acct.Info.Holdings()
		if err != nil {
			return nil, fmt.Errorf("account %s:\n%w", acct.ID, err)
		}

		if err := totals.add(acct.ID, holdings); err != nil {
			return nil, fmt.Errorf("account %s:\n%w", acct.ID, err)
		}
	}

	return totals, nil
}

func (t Totals) add(id identity.Identity, v amount.Amount) error {
	sum, err := t[id].Add(v)
	if err != nil {
		return err
	}

	t[id] = sum

	return nil
}

// Issuance returns the sum of all totals.
func Issuance(t Totals) (amount.Amount, error) {
	sum := amount.Zero()

	for _, v := range t {
		var err error
		if sum, err = sum.Add(v); err != nil {
			return amount.Zero(), fmt.Errorf("total issuance:\n%w", err)
		}
	}

	return sum, nil
}

// Dust counts the identities whose total is strictly below threshold and sums them.
func Dust(t Totals, threshold amount.Amount) (count int, sum amount.Amount, err error) {
	sum = amount.Zero()

	for _, v := range t {
		if v.Cmp(threshold) >= 0 {
			continue
		}

		count++

		// Each term is below threshold, so only a huge map can overflow.
		if sum, err = sum.Add(v); err != nil {
			return 0, amount.Zero(), fmt.Errorf("dust sum:\n%w", err)
		}
	}

	return count, sum, nil
}

// TopN returns up to n identities in descending order of total.
// Ties are broken by identity bytes ascending.
func TopN(t Totals, n int) []Ranked {
	ranked := make([]Ranked, 0, len(t))
	for id, v := range t {
		ranked = append(ranked, Ranked{ID: id, Total: v})
	}

	slices.SortFunc(ranked, func(a, b Ranked) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}

		return identity.Compare(a.ID, b.ID)
	})

	if n >= 0 && n < len(ranked) {
		ranked = ranked[:n]
	}

	return ranked
}

// Percent returns part / whole * 100 in floating point, or 0 when whole is zero.
func Percent(part, whole amount.Amount) float64 {
	if whole.IsZero() {
		return 0
	}

	return part.Float64() / whole.Float64() * 100.0
}
