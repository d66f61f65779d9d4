package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/config"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/guess"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/jobscheduler"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/match"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/domain/ranking"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/infrastructure/eventbus"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/infrastructure/jobqueue"
	cacherepo "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/infrastructure/repository/cache"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/infrastructure/repository/memory"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/infrastructure/repository/postgres"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/interfaces/httpapi"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/observability"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/cache"
	idgen "github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/id"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/logging"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/platform/resilience"
	"github.com/palmeirasbolao-jpg/Bolao-Alviverde/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App owns the HTTP server and every background resource behind it.
type App struct {
	Server *http.Server

	bus    *eventbus.Bus
	db     *sqlx.DB
	logger *logging.Logger
}

type repositories struct {
	matches  match.Repository
	guesses  guess.Repository
	rankings ranking.Repository
	uow      ranking.UnitOfWork
	dispatch jobscheduler.Repository
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{logger: logger}
	repos, err := a.openRepositories(cfg)
	if err != nil {
		return nil, err
	}

	var (
		registerer     prometheus.Registerer
		metricsHandler http.Handler
		metrics        usecase.AggregationMetrics
	)
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		aggMetrics, err := observability.NewAggregationMetrics(registry)
		if err != nil {
			a.closeDB()
			return nil, fmt.Errorf("register aggregation metrics: %w", err)
		}
		metrics = aggMetrics
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		registerer = registry
	}

	var (
		rankingCache *cache.Store
		matchReads   = repos.matches
	)
	if cfg.CacheEnabled {
		rankingCache = cache.NewStore(cfg.CacheTTL)
		matchReads = cacherepo.NewMatchRepository(repos.matches, cache.NewStore(cfg.CacheTTL))
	}
	rankingSvc := usecase.NewRankingService(repos.rankings, rankingCache)

	aggregationSvc := usecase.NewAggregationService(
		repos.matches,
		repos.guesses,
		repos.uow,
		repos.dispatch,
		metrics,
		rankingSvc,
		usecase.AggregationConfig{
			Points:        cfg.PointsTable,
			Workers:       cfg.ScoringWorkers,
			MaxAttempts:   cfg.CommitMaxAttempts,
			RetryBackoff:  cfg.CommitRetryBackoff,
			MonthLocation: cfg.MonthLocation,
		},
		logger.Named("aggregation"),
	)

	dispatcher, err := a.buildDispatcher(cfg, registerer, repos.dispatch, aggregationSvc)
	if err != nil {
		a.closeDB()
		return nil, err
	}

	matchSvc := usecase.NewMatchService(
		matchReads,
		dispatcher,
		metrics,
		idgen.NewUUIDGenerator(),
		cfg.RescorePolicy,
		logger.Named("match"),
	)
	handler := httpapi.NewHandler(
		matchSvc,
		usecase.NewGuessService(repos.guesses, repos.matches, cfg.GuessLockWindow),
		usecase.NewUserService(repos.rankings, rankingSvc),
		rankingSvc,
		aggregationSvc,
		repos.dispatch,
		logger.Named("http"),
	)

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger.Named("http"), cfg.CORSAllowedOrigins, cfg.InternalJobToken, metricsHandler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return a, nil
}

func (a *App) openRepositories(cfg config.Config) (repositories, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		settings := parsePostgresSettings(cfg.DBURL, cfg.DBDisablePreparedBinary)
		db, err := openPostgres(context.Background(), settings)
		if err != nil {
			return repositories{}, err
		}
		a.db = db
		a.logger.Info("storage ready", "driver", cfg.StorageDriver, "db_host", settings.host, "db_name", settings.dbName)
		return repositories{
			matches:  postgres.NewMatchRepository(db),
			guesses:  postgres.NewGuessRepository(db),
			rankings: postgres.NewRankingRepository(db),
			uow:      postgres.NewAggregationUnitOfWork(db),
			dispatch: postgres.NewJobDispatchRepository(db),
		}, nil
	default:
		store := memory.NewStore()
		a.logger.Info("storage ready", "driver", config.StorageMemory)
		return repositories{
			matches:  memory.NewMatchRepository(store),
			guesses:  memory.NewGuessRepository(store),
			rankings: memory.NewRankingRepository(store),
			uow:      memory.NewAggregationStore(store),
			dispatch: memory.NewDispatchRepository(store),
		}, nil
	}
}

func (a *App) buildDispatcher(
	cfg config.Config,
	registry prometheus.Registerer,
	dispatchRepo jobscheduler.Repository,
	handler usecase.AggregationTaskHandler,
) (usecase.TaskDispatcher, error) {
	switch cfg.TaskDispatchDriver {
	case config.DispatchInline:
		return usecase.NewInlineDispatcher(handler), nil
	case config.DispatchQStash:
		publisher, err := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			Circuit: resilience.CircuitBreakerConfig{
				Enabled:          cfg.QStashCircuitEnabled,
				FailureThreshold: cfg.QStashCircuitFailureCount,
				OpenTimeout:      cfg.QStashCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
			},
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("build qstash publisher: %w", err)
		}
		return usecase.NewQueueDispatcher(publisher, dispatchRepo, a.logger), nil
	default:
		bus, err := eventbus.New(eventbus.Config{
			Buffer:        cfg.EventBusBuffer,
			MaxRetries:    cfg.EventBusMaxRetries,
			RetryInterval: cfg.EventBusRetryInterval,
			DedupWindow:   time.Minute,
			Registry:      registry,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("build event bus: %w", err)
		}
		eventbus.HandleAggregation(bus, handler)
		a.bus = bus
		return usecase.NewQueueDispatcher(bus, dispatchRepo, a.logger), nil
	}
}

// Start runs background consumers and returns once they accept work.
func (a *App) Start(ctx context.Context) error {
	if a.bus == nil {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.bus.Run(ctx)
	}()

	select {
	case <-a.bus.Running():
		a.logger.Info("event bus running")
		go func() {
			if err := <-errCh; err != nil {
				a.logger.Error("event bus stopped", "error", err)
			}
		}()
		return nil
	case err := <-errCh:
		if err == nil {
			err = errors.New("event bus exited before running")
		}
		return fmt.Errorf("start event bus: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the bus and the database. The HTTP server is shut down by the caller.
func (a *App) Close() error {
	var errs []error
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if err := a.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}
