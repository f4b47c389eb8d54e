package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"zelar/internal/core"
	"zelar/internal/ledger"
)

func tx(user string, ts time.Time) core.Transaction {
	return core.Transaction{
		ID:        user + "-" + ts.Format(core.TimeLayout),
		User:      user,
		Category:  core.Lunch,
		Amount:    10,
		Origin:    core.OriginOwn,
		Timestamp: ts,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestInsertAssignsSequence(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.Insert(ctx, tx("ana", at(1, 12)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, err := s.Insert(ctx, tx("ana", at(2, 12)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected sequences 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
}

func TestListByUserOrdersByTimestamp(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.Insert(ctx, tx("ana", at(5, 12))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, tx("ana", at(1, 12))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, tx("bia", at(2, 12))); err != nil {
		t.Fatalf("insert: %v", err)
	}

	txs, err := s.ListByUser(ctx, "ana")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if !txs[0].Timestamp.Before(txs[1].Timestamp) {
		t.Fatalf("expected ascending timestamp order")
	}
}

func TestUpdatePreservesImmutableFields(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, tx("ana", at(1, 12)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed := stored
	changed.User = "mallory"
	changed.Origin = core.OriginBorrowed
	changed.Amount = 99
	if err := s.Update(ctx, changed); err != nil {
		t.Fatalf("update: %v", err)
	}

	reloaded, err := s.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.User != "ana" || reloaded.Origin != core.OriginOwn {
		t.Fatalf("user and origin must not change on update: %+v", reloaded)
	}
	if reloaded.Amount != 99 {
		t.Fatalf("mutable fields must change: %+v", reloaded)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, tx("ana", at(1, 12)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Delete(ctx, stored.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, stored.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, stored.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestApplySessionTags(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	stored, err := s.Insert(ctx, tx("ana", at(1, 12)))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	tag := core.Date(at(1, 12))
	if err := s.ApplySessionTags(ctx, "ana", map[string]*time.Time{stored.ID: &tag}); err != nil {
		t.Fatalf("apply tags: %v", err)
	}

	reloaded, err := s.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.SessionTag == nil || !reloaded.SessionTag.Equal(tag) {
		t.Fatalf("expected session tag %v, got %v", tag, reloaded.SessionTag)
	}

	if err := s.ApplySessionTags(ctx, "ana", map[string]*time.Time{stored.ID: nil}); err != nil {
		t.Fatalf("clear tags: %v", err)
	}
	reloaded, err = s.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.SessionTag != nil {
		t.Fatalf("expected cleared session tag, got %v", reloaded.SessionTag)
	}
}
