// Package worker runs the background jobs of the ledger: scheduled database
// snapshots and the mutation event audit trail.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"zelar/internal/amqp"
	"zelar/internal/backup"
	"zelar/internal/ledger"
)

// BackupWorker checks the snapshot schedule on a fixed interval and consumes
// mutation events for the audit log.
type BackupWorker struct {
	snapshotter *backup.Snapshotter
	store       ledger.Store
	amqpClient  *amqp.Client
	interval    time.Duration
}

func NewBackupWorker(snapshotter *backup.Snapshotter, store ledger.Store, amqpClient *amqp.Client, interval time.Duration) *BackupWorker {
	return &BackupWorker{
		snapshotter: snapshotter,
		store:       store,
		amqpClient:  amqpClient,
		interval:    interval,
	}
}

// Run blocks until the context ends or one of the loops fails.
func (w *BackupWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.snapshotLoop(ctx)
	})

	if w.amqpClient != nil {
		g.Go(func() error {
			return w.consumeEvents(ctx)
		})
	} else {
		slog.InfoContext(ctx, "AMQP client not available, skipping event consumption")
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("backup worker: %w", err)
	}
	return nil
}

func (w *BackupWorker) snapshotLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			path, err := w.snapshotter.MaybeSnapshot(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Snapshot failed", "error", err)
				continue
			}
			if path != "" {
				slog.InfoContext(ctx, "Snapshot taken", "path", path)
			}
		}
	}
}

// HandleTransactionEvent logs a mutation event with the transaction's
// current state. A deleted transaction no longer resolves; that is expected.
func (w *BackupWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	t, err := w.store.Get(ctx, msg.ID)
	if err != nil {
		slog.InfoContext(ctx, "Transaction event",
			"id", msg.ID,
			"user", msg.User,
			"action", msg.Action)
		return nil
	}

	slog.InfoContext(ctx, "Transaction event",
		"id", msg.ID,
		"user", msg.User,
		"action", msg.Action,
		"category", t.Category,
		"amount", t.Amount,
		"origin", t.Origin)

	// Mutations also drive the snapshot schedule, so a busy ledger does not
	// depend on the ticker alone.
	if path, err := w.snapshotter.MaybeSnapshot(ctx); err != nil {
		slog.ErrorContext(ctx, "Snapshot failed", "error", err)
	} else if path != "" {
		slog.InfoContext(ctx, "Snapshot taken", "path", path)
	}
	return nil
}

func (w *BackupWorker) consumeEvents(ctx context.Context) error {
	return w.amqpClient.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		return w.HandleTransactionEvent(ctx, msg)
	})
}
