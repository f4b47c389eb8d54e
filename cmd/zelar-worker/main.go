package main

import (
	"context"
	"os"
	"time"

	"zelar/internal/amqp"
	"zelar/internal/backup"
	"zelar/internal/cli"
	"zelar/internal/storage"
	"zelar/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting zelar-worker")

	// The worker snapshots the SQLite file directly, so it always uses the
	// sqlite store regardless of the server's backend.
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
		}
	}

	snapshotter := backup.NewSnapshotter(cfg.SQLiteDBPath, cfg.BackupDir, cfg.BackupRetention)
	backupWorker := worker.NewBackupWorker(snapshotter, repo, amqpClient, cfg.BackupInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := backupWorker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
