// Package reports provides the read side of the ledger: balances, listings
// and the cash-session status projection.
package reports

import (
	"context"
	"fmt"
	"time"

	"zelar/internal/core"
	"zelar/internal/ledger"
)

const (
	SeverityOK       = "ok"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

const (
	// projectionDays is the settlement horizon projected from session open.
	projectionDays = 30
	// warningDays is where an open session starts being flagged.
	warningDays = 25
)

// SessionStatus is the supervisor view of one user's cash session.
type SessionStatus struct {
	User             string
	Open             bool
	OpenedOn         *time.Time
	DaysOpen         int
	ProjectedCloseOn *time.Time
	Severity         string
}

type Reports struct {
	store ledger.Store
	now   func() time.Time
}

func New(store ledger.Store) *Reports {
	return &Reports{store: store, now: time.Now}
}

// Balances folds one user's complete ledger into the two track balances.
func (r *Reports) Balances(ctx context.Context, user string) (core.Balance, error) {
	txs, err := r.store.ListByUser(ctx, user)
	if err != nil {
		return core.Balance{}, fmt.Errorf("load ledger for %s: %w", user, err)
	}
	return core.ComputeBalances(txs), nil
}

// BalanceAsOf returns the own-track balance immediately before the given
// date. Transactions on the cutoff date itself do not count.
func (r *Reports) BalanceAsOf(ctx context.Context, user string, cutoff time.Time) (float64, error) {
	txs, err := r.store.ListByUser(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("load ledger for %s: %w", user, err)
	}
	return core.OwnBalanceBefore(txs, cutoff), nil
}

// Transactions lists one user's ledger in timestamp order.
func (r *Reports) Transactions(ctx context.Context, user string) ([]core.Transaction, error) {
	txs, err := r.store.ListByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("load ledger for %s: %w", user, err)
	}
	return txs, nil
}

// AllTransactions lists every user's ledger in timestamp order.
func (r *Reports) AllTransactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return txs, nil
}

// Users lists every user that has at least one transaction.
func (r *Reports) Users(ctx context.Context) ([]string, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SessionStatus projects the current cash-session state for one user.
func (r *Reports) SessionStatus(ctx context.Context, user string) (SessionStatus, error) {
	txs, err := r.store.ListByUser(ctx, user)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("load ledger for %s: %w", user, err)
	}
	status := sessionStatusAt(txs, r.now())
	status.User = user
	return status, nil
}

// AllSessionStatuses projects the session state of every known user, for the
// supervisor overview.
func (r *Reports) AllSessionStatuses(ctx context.Context) ([]SessionStatus, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	statuses := make([]SessionStatus, 0, len(users))
	for _, user := range users {
		status, err := r.SessionStatus(ctx, user)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// sessionStatusAt reads the persisted session tags: the latest tagged CashIn
// is the open marker, the latest tagged CashOut the close marker, and the
// session counts as open when the open marker is strictly newer. A CashIn
// that earned its tag by zeroing a negative balance therefore reads as an
// open marker here; how long it has been open and the projected close date
// follow from the marker's date.
func sessionStatusAt(txs []core.Transaction, now time.Time) SessionStatus {
	var openedOn, closedOn *time.Time
	for _, t := range txs {
		if t.Origin != core.OriginOwn || t.SessionTag == nil {
			continue
		}
		switch t.Category {
		case core.CashIn:
			if openedOn == nil || !t.SessionTag.Before(*openedOn) {
				tag := *t.SessionTag
				openedOn = &tag
			}
		case core.CashOut:
			if closedOn == nil || !t.SessionTag.Before(*closedOn) {
				tag := *t.SessionTag
				closedOn = &tag
			}
		}
	}

	status := SessionStatus{Severity: SeverityOK}
	open := openedOn != nil && (closedOn == nil || closedOn.Before(*openedOn))
	if !open {
		return status
	}

	status.Open = true
	status.OpenedOn = openedOn
	status.DaysOpen = int(core.Date(now).Sub(*openedOn).Hours() / 24)

	projected := openedOn.AddDate(0, 0, projectionDays)
	status.ProjectedCloseOn = &projected

	switch {
	case status.DaysOpen >= projectionDays:
		status.Severity = SeverityCritical
	case status.DaysOpen >= warningDays:
		status.Severity = SeverityWarning
	}
	return status
}
