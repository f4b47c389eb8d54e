package core

import (
	"math"
	"time"
)

// SessionFold is the accumulator for cash-session derivation: the running
// own-track balance and whether a session is currently open. The zero value
// is the correct starting state.
type SessionFold struct {
	Balance float64
	Open    bool
}

// Apply advances the fold by one transaction and returns the session tag the
// transaction earns, or nil. Borrowed-track transactions are ignored. The
// rules, over the own track:
//
//   - CashIn from a zero balance with no open session opens one.
//   - CashOut always closes, even with no session open; the orphan close tag
//     is kept as a standalone marker for reporting.
//   - CashIn that brings a negative balance exactly back to zero closes.
//   - Any other category shifts the balance without tagging, so ordinary
//     spending still drives later open/close decisions.
func (f *SessionFold) Apply(t Transaction) *time.Time {
	if t.Origin != OriginOwn {
		return nil
	}

	before := f.Balance
	switch t.Category {
	case CashIn:
		f.Balance += t.Amount
		// A balance within Epsilon of zero counts as zero, inclusively.
		if math.Abs(before) <= Epsilon && !f.Open {
			f.Open = true
			return tagDate(t.Timestamp)
		}
		if before < -Epsilon && math.Abs(f.Balance) <= Epsilon {
			f.Open = false
			return tagDate(t.Timestamp)
		}
	case CashOut:
		f.Balance -= t.Amount
		f.Open = false
		return tagDate(t.Timestamp)
	default:
		f.Balance -= t.Amount
	}
	return nil
}

// RetagSessions recomputes every session tag for one user's complete ledger.
// It returns the tag (possibly nil) for each own-track transaction id; the
// caller persists the whole map in a single store operation. Running it
// twice over the same input yields identical results, and replaying inserts
// one at a time in timestamp order produces the same tags.
func RetagSessions(txs []Transaction) map[string]*time.Time {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	SortByTimestamp(ordered)

	tags := make(map[string]*time.Time)
	var fold SessionFold
	for _, t := range ordered {
		if t.Origin != OriginOwn {
			continue
		}
		tags[t.ID] = fold.Apply(t)
	}
	return tags
}

// FoldBefore replays a user's existing transactions in timestamp order and
// returns the fold state seen just before a new transaction would apply.
// The insert path classifies a new row against this state, which keeps
// insert-time tagging equivalent to a full recompute.
func FoldBefore(txs []Transaction) SessionFold {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	SortByTimestamp(ordered)

	var fold SessionFold
	for _, t := range ordered {
		fold.Apply(t)
	}
	return fold
}

func tagDate(ts time.Time) *time.Time {
	d := Date(ts)
	return &d
}
