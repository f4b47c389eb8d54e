// Package memory provides an in-memory Store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"zelar/internal/core"
	"zelar/internal/ledger"
)

type Store struct {
	mu      sync.RWMutex
	txs     []core.Transaction
	nextSeq int64
}

func NewStore() *Store {
	return &Store{nextSeq: 1}
}

func (s *Store) Insert(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.Seq = s.nextSeq
	s.nextSeq++
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.txs {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, ledger.ErrNotFound
}

func (s *Store) Update(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].ID == t.ID {
			t.Seq = s.txs[i].Seq
			t.User = s.txs[i].User
			t.Origin = s.txs[i].Origin
			s.txs[i] = t
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) ListByUser(_ context.Context, user string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Transaction
	for _, t := range s.txs {
		if t.User == user {
			out = append(out, t)
		}
	}
	core.SortByTimestamp(out)
	return out, nil
}

func (s *Store) ListAll(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	core.SortByTimestamp(out)
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var users []string
	for _, t := range s.txs {
		if !seen[t.User] {
			seen[t.User] = true
			users = append(users, t.User)
		}
	}
	return users, nil
}

func (s *Store) ApplySessionTags(_ context.Context, user string, tags map[string]*time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.txs {
		if s.txs[i].User != user {
			continue
		}
		if tag, ok := tags[s.txs[i].ID]; ok {
			s.txs[i].SessionTag = tag
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
