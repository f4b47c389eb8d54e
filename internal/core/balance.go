package core

import (
	"sort"
	"time"
)

// ComputeBalances folds a user's transactions into the two origin-scoped
// balances. CashIn adds to its track; every other category subtracts. The
// fold is commutative, so input order does not matter.
func ComputeBalances(txs []Transaction) Balance {
	var b Balance
	for _, t := range txs {
		amount := t.Amount
		if t.Category != CashIn {
			amount = -amount
		}
		switch t.Origin {
		case OriginBorrowed:
			b.Borrowed += amount
		default:
			b.Own += amount
		}
	}
	b.Total = b.Own + b.Borrowed
	return b
}

// OwnBalanceBefore folds only own-track transactions whose calendar date is
// strictly before the cutoff date; time of day is ignored on both sides.
// Answers "what was the balance immediately before this event".
func OwnBalanceBefore(txs []Transaction, cutoff time.Time) float64 {
	limit := Date(cutoff)
	var balance float64
	for _, t := range txs {
		if t.Origin != OriginOwn {
			continue
		}
		if !Date(t.Timestamp).Before(limit) {
			continue
		}
		if t.Category == CashIn {
			balance += t.Amount
		} else {
			balance -= t.Amount
		}
	}
	return balance
}

// SortByTimestamp orders transactions ascending by timestamp, breaking ties
// on the insertion sequence so derivations are deterministic.
func SortByTimestamp(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Seq < txs[j].Seq
		}
		return txs[i].Timestamp.Before(txs[j].Timestamp)
	})
}
