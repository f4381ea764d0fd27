// Package main is the entry point for the rate feed service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratefeed/internal/config"
	"ratefeed/internal/metrics"
	"ratefeed/internal/provider"
	"ratefeed/internal/publisher"
	"ratefeed/internal/repository"
	"ratefeed/internal/scheduler"
	"ratefeed/internal/service"
	"ratefeed/internal/worker"
)

// App holds all application dependencies and manages their lifecycle.
type App struct {
	cfg         *config.Config
	logger      *zap.SugaredLogger
	metrics     *metrics.RateMetrics
	db          *sql.DB
	rdbCache    *redis.Client
	rdbAsynq    *redis.Client
	asynqClient *asynq.Client
	asynqServer *asynq.Server
	asynqMux    *asynq.ServeMux
	kafka       *publisher.KafkaPublisher
	rateService *service.RateService
	httpServer  *http.Server
}

// NewApp initializes all dependencies and returns a ready-to-run App.
func NewApp(cfg *config.Config, logger *zap.SugaredLogger, reg prometheus.Registerer) (*App, error) {
	app := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRateMetrics(reg),
	}

	if err := app.initStorage(); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	return app, nil
}

// close releases database, Redis and Kafka connections
func (app *App) close() error {
	var errs []error
	if app.kafka != nil {
		if err := app.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka writer close: %w", err))
		}
	}
	if app.asynqClient != nil {
		if err := app.asynqClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("asynq client close: %w", err))
		}
	}
	if app.rdbAsynq != nil {
		if err := app.rdbAsynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis asynq close: %w", err))
		}
	}
	if app.rdbCache != nil {
		if err := app.rdbCache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis cache close: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (app *App) initStorage() error {
	if app.cfg.Database.Enabled() {
		db, err := repository.OpenConfigStore(context.Background(), &app.cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to Postgres: %w", err)
		}
		app.db = db

		if err := repository.RunMigrations(app.db); err != nil {
			return fmt.Errorf("run DB migrations: %w", err)
		}
		app.logger.Infow("Connected to Postgres", "host", app.cfg.Database.Host, "db", app.cfg.Database.Name)
	} else {
		app.logger.Infow("Postgres not configured, config overrides are in-memory only")
	}

	if addr := app.cfg.Redis.CacheAddr; addr != "" {
		app.rdbCache = redis.NewClient(&redis.Options{Addr: addr})
		if err := app.rdbCache.Ping(context.Background()).Err(); err != nil {
			return fmt.Errorf("connect to Redis (cache, %s): %w", addr, err)
		}
		app.logger.Infow("Connected to Redis cache", "addr", addr)
	}

	return nil
}

func (app *App) initServices() error {
	var enqueuer service.RefreshEnqueuer
	if addr := app.cfg.Redis.AsynqAddr; addr != "" {
		redisOpt := asynq.RedisClientOpt{Addr: addr}
		app.rdbAsynq = redis.NewClient(&redis.Options{Addr: addr})
		app.asynqClient = asynq.NewClient(redisOpt)
		app.asynqServer = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: app.cfg.Worker.Concurrency,
			Logger:      app.logger,
		})
		enqueuer = worker.NewAsynqEnqueuer(
			app.asynqClient,
			app.cfg.Worker.MaxRetry,
			time.Duration(app.cfg.Worker.TimeoutSec)*time.Second,
			time.Duration(app.cfg.Worker.CoalesceSec)*time.Second,
		)
		app.logger.Infow("Asynq configured", "addr", addr)
	}

	var configRepo repository.ConfigRepository
	if app.db != nil {
		configRepo = repository.NewPostgresConfigRepository(app.db)
	}

	rateService, err := service.NewRateService(
		newSources(app.cfg, app.rdbCache, app.logger),
		configRepo,
		enqueuer,
		app.logger,
		app.metrics,
		app.cfg.Pricing,
	)
	if err != nil {
		return fmt.Errorf("create rate service: %w", err)
	}
	app.rateService = rateService

	if app.rdbCache != nil {
		snapshot := publisher.NewRedisSnapshot(app.rdbCache, time.Duration(app.cfg.Cache.LatestSnapshotTTLSec)*time.Second)
		rateService.Subscribe(snapshot.Publish)
	}
	if app.cfg.Kafka.Enabled() {
		app.kafka = publisher.NewKafkaPublisher(app.cfg.Kafka.Brokers, app.cfg.Kafka.Topic)
		rateService.Subscribe(app.kafka.Publish)
		app.logger.Infow("Kafka publishing enabled", "brokers", app.cfg.Kafka.Brokers, "topic", app.cfg.Kafka.Topic)
	}

	if app.asynqServer != nil {
		app.asynqMux = asynq.NewServeMux()
		app.asynqMux.HandleFunc(service.TaskTypeRefreshRate, worker.NewRefreshHandler(rateService, app.logger))
	}

	app.initHTTP(rateService)
	return nil
}

// newSources builds one adapter per known source. Each adapter falls back to
// the relay when one is configured and is cached in Redis when a cache is.
func newSources(cfg *config.Config, cache *redis.Client, logger *zap.SugaredLogger) []provider.Source {
	var relay provider.Relayer
	if cfg.Sources.RelayURL != "" {
		relay = provider.NewRelayClient(cfg.Sources.RelayURL, cfg.Sources.TimeoutSec)
	}

	timeout := cfg.Sources.TimeoutSec
	sources := []provider.Source{
		provider.NewCoinGeckoSource(cfg.Sources.CoinGeckoURL, timeout, relay),
		provider.NewBinanceSource(cfg.Sources.BinanceURL, timeout, relay, logger),
		provider.NewCoinbaseSource(cfg.Sources.CoinbaseURL, timeout, relay),
	}

	if cache == nil {
		return sources
	}
	ttl := time.Duration(cfg.Cache.SourceTTLSec) * time.Second
	for i, s := range sources {
		sources[i] = provider.NewCachedSource(s, cache, ttl)
	}
	return sources
}

// Run starts the HTTP server, the refresh scheduler and the Asynq worker,
// blocking until the context is canceled.
func (app *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Infow("HTTP server listening", "port", app.cfg.Server.Port)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := app.rateService.Start(ctx); err != nil && !errors.Is(err, scheduler.ErrStopped) {
			return fmt.Errorf("rate service failed to start: %w", err)
		}
		app.logger.Infow("Rate scheduler started", "interval", app.rateService.Config().RefreshInterval)
		return nil
	})

	if app.asynqServer != nil {
		g.Go(func() error {
			app.logger.Infow("Starting Asynq worker server")
			if err := app.asynqServer.Start(app.asynqMux); err != nil {
				return fmt.Errorf("asynq worker failed to start: %w", err)
			}

			<-ctx.Done()
			return nil
		})
	}

	// Graceful shutdown: triggered by context cancellation (signal or component failure).
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// shutdown performs ordered teardown: HTTP server, Asynq worker, scheduler,
// then connections.
func (app *App) shutdown() error {
	app.logger.Infow("Shutting down server...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests, drain in-flight
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Errorw("HTTP server shutdown error", "error", err)
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// 2. Drain in-flight Asynq tasks
	if app.asynqServer != nil {
		app.asynqServer.Shutdown()
	}

	// 3. Stop the scheduler; no notification fires after this
	app.rateService.Destroy()

	// 4. Close connections (Kafka, asynq client, Redis, database)
	if err := app.close(); err != nil {
		app.logger.Errorw("Connection cleanup errors", "error", err)
		errs = append(errs, err)
	}

	app.logger.Infow("Shutdown complete")
	return errors.Join(errs...)
}
