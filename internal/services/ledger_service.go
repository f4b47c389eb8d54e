// Package services orchestrates ledger mutations across the store and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zelar/internal/amqp"
	"zelar/internal/core"
	"zelar/internal/ledger"
)

// EventPublisher is the outbound event port. A nil publisher disables events.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, id, user, action string) error
}

// LedgerService serializes all mutations per user so balance and session
// derivations always see a consistent ledger.
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher

	locks sync.Map // user -> *sync.Mutex
}

func NewLedgerService(store ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// AddTransactionInput carries the raw boundary values for a new transaction.
// Amount arrives as free-form text and goes through the normalizer.
type AddTransactionInput struct {
	User          string
	Category      core.Category
	RawAmount     string
	Origin        core.Origin
	Timestamp     time.Time
	Description   string
	AttachmentRef string
}

// EditTransactionInput replaces the mutable fields of a transaction. User
// and origin are immutable after creation.
type EditTransactionInput struct {
	Category      core.Category
	RawAmount     string
	Timestamp     time.Time
	Description   string
	AttachmentRef string
}

// AddTransaction normalizes, validates and persists a new transaction, then
// derives its session tag against the user's existing ledger.
func (s *LedgerService) AddTransaction(ctx context.Context, in AddTransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		ID:            uuid.NewString(),
		User:          strings.TrimSpace(in.User),
		Category:      in.Category,
		Amount:        core.NormalizeAmount(in.RawAmount),
		Origin:        in.Origin,
		Timestamp:     in.Timestamp.UTC(),
		Description:   in.Description,
		AttachmentRef: in.AttachmentRef,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	lock := s.userLock(t.User)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.ListByUser(ctx, t.User)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load ledger for %s: %w", t.User, err)
	}

	// An append classifies against the fold state of the existing ledger.
	// A backdated insert shifts every later decision, so it retags below.
	backdated := isBackdated(existing, t.Timestamp)
	if t.Origin == core.OriginOwn && !backdated {
		fold := core.FoldBefore(existing)
		t.SessionTag = fold.Apply(t)
	}

	stored, err := s.store.Insert(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if t.Origin == core.OriginOwn && backdated {
		if err := s.retag(ctx, t.User); err != nil {
			return core.Transaction{}, err
		}
		stored, err = s.store.Get(ctx, stored.ID)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("reload transaction: %w", err)
		}
	}

	s.publish(ctx, stored.ID, stored.User, amqp.ActionCreated)
	return stored, nil
}

// EditTransaction replaces the mutable fields of an existing transaction and
// recomputes the user's session tags from scratch when the own track changed.
func (s *LedgerService) EditTransaction(ctx context.Context, id string, in EditTransactionInput) (core.Transaction, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %s: %w", id, err)
	}

	lock := s.userLock(existing.User)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock; a concurrent delete may have won the race.
	existing, err = s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %s: %w", id, err)
	}

	updated := existing
	updated.Category = in.Category
	updated.Amount = core.NormalizeAmount(in.RawAmount)
	updated.Timestamp = in.Timestamp.UTC()
	updated.Description = in.Description
	updated.AttachmentRef = in.AttachmentRef
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	if err := s.store.Update(ctx, updated); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}

	if updated.Origin == core.OriginOwn {
		if err := s.retag(ctx, updated.User); err != nil {
			return core.Transaction{}, err
		}
		updated, err = s.store.Get(ctx, id)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("reload transaction: %w", err)
		}
	}

	s.publish(ctx, updated.ID, updated.User, amqp.ActionUpdated)
	return updated, nil
}

// DeleteTransaction removes a transaction and recomputes the user's session
// tags when an own-track row disappears. It returns the removed row so
// callers can act on its owner without another lookup.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) (core.Transaction, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction %s: %w", id, err)
	}

	lock := s.userLock(existing.User)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %s: %w", id, err)
	}

	if existing.Origin == core.OriginOwn {
		if err := s.retag(ctx, existing.User); err != nil {
			return core.Transaction{}, err
		}
	}

	s.publish(ctx, existing.ID, existing.User, amqp.ActionDeleted)
	return existing, nil
}

func (s *LedgerService) retag(ctx context.Context, user string) error {
	txs, err := s.store.ListByUser(ctx, user)
	if err != nil {
		return fmt.Errorf("load ledger for %s: %w", user, err)
	}
	tags := core.RetagSessions(txs)
	if err := s.store.ApplySessionTags(ctx, user, tags); err != nil {
		return fmt.Errorf("apply session tags for %s: %w", user, err)
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, id, user, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, id, user, action); err != nil {
		// The mutation is already committed; events are best effort.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", id, "user", user, "action", action, "error", err)
	}
}

func (s *LedgerService) userLock(user string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(user, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *LedgerService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}

func isBackdated(existing []core.Transaction, ts time.Time) bool {
	if len(existing) == 0 {
		return false
	}
	last := existing[len(existing)-1].Timestamp
	return ts.Before(last)
}
