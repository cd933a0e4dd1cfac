package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/bus"
	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/dispatcher"
	"github.com/fundtrace/fundtrace/internal/fetcher"
	"github.com/fundtrace/fundtrace/internal/handlers"
	"github.com/fundtrace/fundtrace/internal/normalize"
	"github.com/fundtrace/fundtrace/internal/stockmeta"
	storage "github.com/fundtrace/fundtrace/internal/storage/badger"
	"github.com/fundtrace/fundtrace/internal/transform"
	"github.com/fundtrace/fundtrace/internal/workflow"
	"github.com/fundtrace/fundtrace/internal/workflow/sources"
)

// App owns every service the process runs and the order they shut down in.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB    *storage.BadgerDB
	Store *storage.Store
	Bus   *bus.Bus

	Fetcher    *fetcher.Service
	Registry   *workflow.Registry
	Engine     *workflow.Engine
	Dispatcher *dispatcher.Dispatcher
	Transform  *transform.Service

	CollectHandler   *handlers.CollectHandler
	TransformHandler *handlers.TransformHandler
	StatusHandler    *handlers.StatusHandler
}

// New builds the full service graph from configuration. Reference data is
// loaded and seeded here so every component starts against a warm store.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := storage.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.DB = db

	store, err := storage.NewStore(db, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	a.Store = store

	b, err := bus.New(db.Store().Badger(), bus.Config{
		VisibilityTimeout: common.Duration(cfg.Bus.VisibilityTimeout, 10*time.Minute),
		MaxReceive:        cfg.Bus.MaxReceive,
		RetryDeadline:     common.Duration(cfg.Bus.RetryDeadline, time.Minute),
		PollInterval:      common.Duration(cfg.Bus.PollInterval, time.Second),
		PublishTimeout:    common.Duration(cfg.Bus.PublishTimeout, 30*time.Second),
	}, logger.WithPrefix("bus"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize bus: %w", err)
	}
	a.Bus = b

	fetch, err := fetcher.New(&cfg.Fetcher, logger.WithPrefix("fetcher"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize fetcher: %w", err)
	}
	a.Fetcher = fetch

	a.Registry = workflow.NewRegistry()
	sources.RegisterAll(a.Registry)

	a.Engine = workflow.NewEngine(workflow.Deps{
		Fetcher: fetch,
		Bus:     b,
		Store:   store,
		Logger:  logger.WithPrefix("workflow"),
		Topic:   cfg.Bus.RetrievalTopic,
	}, a.Registry)

	a.Dispatcher = dispatcher.New(b, store, a.Engine, dispatcher.Config{
		Subscription:  cfg.Bus.RetrievalSubscription,
		CleaningTopic: cfg.Bus.CleaningTopic,
		BatchSize:     cfg.Bus.BatchSize,
		MaxWorkers:    cfg.Dispatcher.MaxWorkers,
	}, logger.WithPrefix("dispatcher"))

	countryISO, err := loadCountryISO(&cfg.Reference)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load country codes: %w", err)
	}
	if err := seedReference(ctx, store, &cfg.Reference, countryISO); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to seed reference tables: %w", err)
	}

	currencies, err := loadCurrencyCodes(cfg.Reference.CurrencyCodesFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load currency codes: %w", err)
	}

	std, err := transform.NewStandardizer(&cfg.Reference)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load standardization maps: %w", err)
	}

	rates, err := normalize.LoadTable(ctx, fetch, &cfg.Rates)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load rate tables: %w", err)
	}

	metaOpts := []stockmeta.ClientOption{stockmeta.WithLogger(logger.WithPrefix("stockmeta"))}
	if cfg.StockMeta.MaxRequestsPerWindow > 0 {
		metaOpts = append(metaOpts, stockmeta.WithRateWindow(common.Duration(cfg.StockMeta.RateWindow, stockmeta.DefaultRateWindow), cfg.StockMeta.MaxRequestsPerWindow))
	}
	meta := stockmeta.NewClient(cfg.StockMeta.BaseURL, cfg.StockMeta.APIKey, metaOpts...)

	projects := transform.NewProjectTransformer(store, std, rates, countryISO, currencies, cfg.Transform.BatchSize, logger.WithPrefix("transform"))
	filings := transform.NewFilingTransformer(store, meta, cfg.Transform.BatchSize, logger.WithPrefix("transform"))
	a.Transform = transform.NewService(b, store, projects, filings, cfg.Bus.CleaningTopic, logger.WithPrefix("transform"))

	a.CollectHandler = handlers.NewCollectHandler(store, b, a.Registry, cfg.Bus.RetrievalTopic, logger.WithPrefix("collect"))
	a.TransformHandler = handlers.NewTransformHandler(a.Transform, logger.WithPrefix("transform"))
	a.StatusHandler = handlers.NewStatusHandler(store, logger.WithPrefix("status"))

	logger.Info().
		Str("environment", cfg.Environment).
		Int("sources", len(a.Registry.Sources())).
		Msg("Application initialized")

	return a, nil
}

// Close releases storage resources. Safe on a partially constructed App.
func (a *App) Close() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
