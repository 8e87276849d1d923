package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dime/internal/amqp"
	"dime/internal/category"
	"dime/internal/config"
	"dime/internal/goals"
	apphttp "dime/internal/http"
	"dime/internal/ledger"
	applog "dime/internal/log"
	"dime/internal/notify"
	"dime/internal/payments"
	"dime/internal/rules"
	"dime/internal/session"
	"dime/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer db.Close()

	sessions := session.NewStore(db)
	notifier := notify.NewEngine(db, sessions)
	categories := category.NewService(db, sessions)
	ruleEngine := rules.NewEngine(db, sessions)
	goalTracker := goals.NewTracker(db, sessions)
	payTracker := payments.NewTracker(db, sessions)

	// The event feed is optional; the ledger works without a broker.
	var publisher ledger.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to connect to AMQP, event feed disabled", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP event feed enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	ledgerSvc := ledger.NewService(db, sessions, notifier,
		[]ledger.Observer{ruleEngine, goalTracker, payTracker}, publisher)

	srv := apphttp.NewServer(":"+cfg.Port, sessions, categories, ruleEngine, ledgerSvc, goalTracker, payTracker, notifier)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting dime server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
