package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adboard/internal/amqp"
	"adboard/internal/config"
	"adboard/internal/dashboard"
	apphttp "adboard/internal/http"
	applog "adboard/internal/log"
	"adboard/internal/metrics"
	"adboard/internal/sheets"
	gsheet "adboard/internal/sheets/google"
	mem "adboard/internal/sheets/memory"
	"adboard/internal/storage"
)

func main() {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	logger := applog.New(applog.ParseLevel(os.Getenv("LOG_LEVEL")), applog.ComponentApp)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reader sheets.RangeReader
	switch cfg.DataBackend {
	case "sheets":
		cli, err := gsheet.New(ctx, cfg.SpreadsheetID)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client",
				applog.FieldError, err.Error(), applog.FieldBackend, cfg.DataBackend)
			os.Exit(1)
		}
		reader = cli
		logger.Info("Initialized Google Sheets backend", applog.FieldBackend, cfg.DataBackend)
	default:
		reader = mem.NewFromFiles(cfg.DataDir, cfg.MetricsRange, cfg.ExpenseRange)
		logger.Info("Initialized memory backend",
			applog.FieldBackend, cfg.DataBackend, "data_dir", cfg.DataDir)
	}

	var store dashboard.SnapshotStore
	if cfg.SnapshotDBPath != "" {
		repo, err := storage.NewSnapshotRepository(cfg.SnapshotDBPath)
		if err != nil {
			logger.Error("Failed to open snapshot store", applog.FieldError, err.Error())
			os.Exit(1)
		}
		defer repo.Close()
		store = repo
		logger.Info("Snapshot persistence enabled", "db_path", cfg.SnapshotDBPath)
	}

	var notifier dashboard.RefreshNotifier
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", applog.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()
		notifier = client
		logger.Info("Refresh event publishing enabled", "exchange", cfg.AMQPExchange)
	}

	// The age gauge reads through this pointer; the service is assigned
	// right below, before anything scrapes.
	var svc *dashboard.Service
	m := metrics.New(func() time.Time {
		if svc == nil {
			return time.Time{}
		}
		return svc.SnapshotTime()
	})

	svc = dashboard.New(reader, dashboard.Options{
		MetricsRange: cfg.MetricsRange,
		ExpenseRange: cfg.ExpenseRange,
		Pipeline:     cfg.Pipeline(),
		Store:        store,
		Notifier:     notifier,
		Metrics:      m,
		Logger:       logger,
	})

	svc.WarmStart(ctx)
	if err := svc.Refresh(ctx); err != nil {
		// Not fatal: the warm-started snapshot, if any, keeps serving and
		// the ticker retries.
		logger.Error("Initial refresh failed", applog.FieldError, err.Error())
	}
	go svc.Run(ctx, cfg.RefreshInterval)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Service:       svc,
		Countries:     cfg.CountryCodes,
		CacheTTL:      cfg.CacheTTL,
		AuthSecret:    cfg.AuthSecret,
		AllowedEmails: cfg.AllowedEmails,
		Metrics:       m,
		Logger:        logger.WithComponent(applog.ComponentHTTP),
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting adboard server",
		"port", cfg.Port,
		applog.FieldBackend, cfg.DataBackend,
		"refresh_interval", cfg.RefreshInterval.String())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
