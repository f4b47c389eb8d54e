// Package ledger declares the persistence ports the services depend on.
// Implementations live in internal/storage.
package ledger

import (
	"context"
	"errors"
	"time"

	"zelar/internal/core"
)

var ErrNotFound = errors.New("transaction not found")

// Store persists transactions for all users. Insert assigns the insertion
// sequence and returns the stored row; list operations return rows ordered
// by timestamp ascending with the sequence as tie-break.
type Store interface {
	Insert(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	Update(ctx context.Context, t core.Transaction) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, user string) ([]core.Transaction, error)
	ListAll(ctx context.Context) ([]core.Transaction, error)
	ListUsers(ctx context.Context) ([]string, error)

	// ApplySessionTags replaces the session tags for one user's own-track
	// transactions atomically. A nil map value clears the tag.
	ApplySessionTags(ctx context.Context, user string, tags map[string]*time.Time) error

	Close() error
}
