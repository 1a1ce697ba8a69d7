package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ramonehamilton/deckstats/internal/aggregate"
	"github.com/ramonehamilton/deckstats/internal/config"
	"github.com/ramonehamilton/deckstats/internal/metrics"
	"github.com/ramonehamilton/deckstats/internal/oracle"
	"github.com/ramonehamilton/deckstats/internal/stats"
	"github.com/ramonehamilton/deckstats/internal/storage"
)

// app holds the components shared by the commands that touch the database.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *storage.DB
	store   *storage.Service
	loader  *aggregate.Loader
	catalog *oracle.Catalog
	stats   *stats.Service
}

// newLogger builds the process logger from the log section and installs it
// as the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	storageConfig, err := cfg.StorageConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	db, err := storage.Open(storageConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := storage.NewService(db)

	engine, err := aggregate.NewEngine(aggregate.EngineConfig{
		DB:      db.Conn(),
		Logger:  logger,
		Metrics: metrics.NewRefreshMetrics(),
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	loader, err := aggregate.NewLoader(aggregate.LoaderConfig{Engine: engine, Logger: logger})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	catalog := oracle.NewCatalog(store.Cards(), logger)
	statsService, err := stats.NewService(stats.ServiceConfig{
		DB:     db.Conn(),
		Loader: loader,
		Cards:  catalog,
		Logger: logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Opened database", "path", db.Path())
	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   store,
		loader:  loader,
		catalog: catalog,
		stats:   statsService,
	}, nil
}

// mustApp opens the app or exits.
func mustApp(cfg *config.Config) *app {
	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	return a
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

// newImporter builds a card metadata importer backed by the Scryfall API.
func (a *app) newImporter() (*oracle.Importer, error) {
	rateLimit, err := a.cfg.GetScryfallRateLimit()
	if err != nil {
		return nil, fmt.Errorf("invalid scryfall rate limit: %w", err)
	}
	client := oracle.NewClient(oracle.ClientConfig{
		BaseURL:   a.cfg.Scryfall.BaseURL,
		UserAgent: a.cfg.Scryfall.UserAgent,
		RateLimit: rateLimit,
	})
	return oracle.NewImporter(a.store.Cards(), client, a.catalog, a.logger), nil
}
