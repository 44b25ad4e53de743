package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"roomie/internal/amqp"
	"roomie/internal/config"
	"roomie/internal/core"
	roomiehttp "roomie/internal/http"
	applog "roomie/internal/log"
	"roomie/internal/service"
	"roomie/internal/store"
	"roomie/internal/store/memory"
	"roomie/internal/store/sheets"
	"roomie/internal/store/sqlite"
)

func main() {
	// Load .env for local development; production sets real env vars.
	_ = godotenv.Load()
	applog.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	roster := core.Roster{House: cfg.HouseMembers, Cat: cfg.CatMembers}

	var docStore store.DocumentStore
	switch cfg.DataBackend {
	case "sheets":
		cli, err := sheets.NewFromEnv(context.Background())
		if err != nil {
			slog.Error("Failed to initialize Google Sheets store", "error", err)
			os.Exit(1)
		}
		docStore = cli
		slog.Info("Initialized Google Sheets backend",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			slog.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		docStore = repo
		slog.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		docStore = memory.New()
		slog.Info("Initialized memory backend")
	}

	opts := []service.Option{}
	if cfg.AMQPURL != "" {
		notifier, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer notifier.Close()
		opts = append(opts, service.WithNotifier(notifier))
		slog.Info("AMQP notifications enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	svc := service.NewHousehold(docStore, roster, opts...)
	srv := roomiehttp.NewServer(":"+cfg.Port, svc)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	slog.Info("Starting roomie server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"house", cfg.HouseMembers,
		"cat_parents", cfg.CatMembers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Server stopped gracefully")
}
