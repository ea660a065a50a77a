package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/nba-datalake/internal/cache"
	"github.com/andresuchdata/nba-datalake/internal/catalog"
	"github.com/andresuchdata/nba-datalake/internal/config"
	"github.com/andresuchdata/nba-datalake/internal/pipeline"
	"github.com/andresuchdata/nba-datalake/internal/query"
	"github.com/andresuchdata/nba-datalake/internal/repository/postgres"
	"github.com/andresuchdata/nba-datalake/internal/service"
	"github.com/andresuchdata/nba-datalake/internal/sportsdata"
	"github.com/andresuchdata/nba-datalake/internal/storage"
	"github.com/andresuchdata/nba-datalake/pkg/logger"
)

// App holds the collaborators built once per process from configuration.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Runs     *service.RunService
	Queries  *service.QueryService

	registry cache.ExecutionRegistry
	db       *postgres.DB
}

// Build creates the provider clients and the optional ledger and registry.
// Ledger and registry failures degrade to no-op implementations.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	l := logger.Component("app")

	if missing := cfg.Missing(); len(missing) > 0 {
		l.Warn().Strs("keys", missing).Msg("required configuration is empty; affected steps will fail")
	}

	if !config.KnownBucketPolicy(cfg.Storage.Policy) {
		l.Warn().Str("policy", cfg.Storage.Policy).Msgf("unknown BUCKET_POLICY; %q will be used", config.PolicyCreate)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	registrar, err := catalog.NewRegistrar(ctx, cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	trigger, err := query.NewTrigger(ctx, cfg.AWS, cfg.AthenaOutputLocation())
	if err != nil {
		return nil, fmt.Errorf("init query trigger: %w", err)
	}

	fetcher := sportsdata.NewClient(
		cfg.SportsData.Endpoint,
		cfg.SportsData.APIKey,
		time.Duration(cfg.SportsData.TimeoutSeconds)*time.Second,
	)

	a := &App{Config: cfg}

	registry, err := cache.NewExecutionRegistry(cfg.Cache)
	if err != nil {
		l.Warn().Err(err).Msg("execution registry unavailable; continuing without it")
		registry = cache.NewNoopExecutionRegistry()
	}
	a.registry = registry

	var runStore service.RunStore
	recorderOpt := pipeline.WithRecorder(nil)
	if cfg.Database.Enabled {
		repo, err := a.openLedger(ctx, cfg)
		if err != nil {
			l.Warn().Err(err).Msg("run ledger unavailable; continuing without it")
		} else {
			runStore = repo
			recorderOpt = pipeline.WithRecorder(repo)
		}
	}

	a.Pipeline = pipeline.New(
		pipeline.SettingsFromConfig(cfg, catalog.PlayerColumns()),
		store, fetcher, registrar, trigger,
		recorderOpt,
		pipeline.WithExecutionRegistry(registry),
		pipeline.WithLogger(logger.Component("pipeline")),
	)
	a.Runs = service.NewRunService(a.Pipeline, runStore)
	a.Queries = service.NewQueryService(trigger, registry, cfg.Catalog.Database)

	return a, nil
}

func (a *App) openLedger(ctx context.Context, cfg *config.Config) (*postgres.RunRepository, error) {
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	repo := postgres.NewRunRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	a.db = db
	return repo, nil
}

// Close releases the ledger and registry connections.
func (a *App) Close() error {
	var errs []error
	if a.registry != nil {
		errs = append(errs, a.registry.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
