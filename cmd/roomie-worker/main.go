// roomie-worker mirrors the state document from the SQLite store into the
// shared Google spreadsheet, so the sheet stays the household's source of
// truth even when the API server runs on the local backend. It reacts to
// document-saved AMQP messages and re-mirrors periodically as a backstop.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"roomie/internal/amqp"
	"roomie/internal/config"
	applog "roomie/internal/log"
	"roomie/internal/store/sheets"
	"roomie/internal/store/sqlite"
	"roomie/internal/worker"
)

func main() {
	_ = godotenv.Load()
	applog.Setup()

	slog.Info("Starting roomie-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	primary, err := sqlite.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer primary.Close()

	mirror, err := sheets.NewFromEnv(context.Background())
	if err != nil {
		slog.Error("Failed to initialize Google Sheets store", "error", err)
		os.Exit(1)
	}

	mirrorWorker := worker.NewMirrorWorker(primary, mirror)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Mirror once on startup to recover from any missed notifications.
	if err := mirrorWorker.MirrorOnce(ctx); err != nil {
		slog.Error("Startup mirror failed", "error", err)
		// Keep running; the periodic loop retries.
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeDocumentSaved(ctx, func(msg *amqp.DocumentSavedMessage) error {
				return mirrorWorker.HandleSavedMessage(ctx, msg)
			})
		})
	} else {
		slog.Info("AMQP disabled, mirroring on timer only")
	}

	g.Go(func() error {
		return mirrorWorker.RunPeriodic(ctx, cfg.MirrorInterval)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		slog.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Worker shutdown complete")
}
