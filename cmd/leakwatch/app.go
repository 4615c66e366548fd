package main

import (
	"context"
	"log/slog"

	promadapter "github.com/ericfisherdev/leakwatch/internal/adapter/driven/prometheus"
	sqliteadapter "github.com/ericfisherdev/leakwatch/internal/adapter/driven/sqlite"
	webhookadapter "github.com/ericfisherdev/leakwatch/internal/adapter/driven/webhook"
	"github.com/ericfisherdev/leakwatch/internal/application"
	"github.com/ericfisherdev/leakwatch/internal/config"
)

// app holds the wired engine shared by every subcommand.
type app struct {
	cfg      *config.Config
	db       *sqliteadapter.DB
	alerts   *sqliteadapter.AlertRepo
	metrics  *promadapter.Metrics
	pool     *application.TaskPool
	alertSvc *application.AlertService
	dispatch *application.DispatchService
	registry *application.RegistryService
}

// newApp loads configuration, opens and migrates the database, and wires the
// adapters into the application services.
func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"max_retries", cfg.MaxRetries,
		"max_concurrent_deliveries", cfg.MaxConcurrentDeliveries,
		"secret_key_set", cfg.SecretKey != nil,
	)

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("database ready", "path", cfg.DBPath)

	watchlists := sqliteadapter.NewWatchlistRepo(db)
	webhooks := sqliteadapter.NewWebhookRepo(db, cfg.SecretKey)
	alerts := sqliteadapter.NewAlertRepo(db)
	corpus := sqliteadapter.NewCorpusRepo(db)

	metrics := promadapter.New()
	sender := webhookadapter.NewClient(slog.Default(), cfg.RetryBase)
	pool := application.NewTaskPool(cfg.MaxConcurrentDeliveries)

	dispatch := application.NewDispatchService(sender, alerts, webhooks, watchlists, metrics, application.DispatchConfig{
		Timeout:     cfg.DeliveryTimeout,
		TestTimeout: cfg.TestTimeout,
		MaxRetries:  cfg.MaxRetries,
		UserAgent:   cfg.UserAgent,
	})

	return &app{
		cfg:      cfg,
		db:       db,
		alerts:   alerts,
		metrics:  metrics,
		pool:     pool,
		alertSvc: application.NewAlertService(watchlists, webhooks, corpus, dispatch, pool, metrics),
		dispatch: dispatch,
		registry: application.NewRegistryService(watchlists, webhooks),
	}, nil
}

// close drains in-flight deliveries for up to the configured grace period and
// closes the database.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer cancel()

	if err := a.pool.Shutdown(ctx); err != nil {
		slog.Warn("deliveries still in flight at shutdown", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
