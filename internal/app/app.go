package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jia-app/venuepricing/internal/cache"
	"github.com/jia-app/venuepricing/internal/circuitbreaker"
	"github.com/jia-app/venuepricing/internal/config"
	"github.com/jia-app/venuepricing/internal/db"
	"github.com/jia-app/venuepricing/internal/log"
	"github.com/jia-app/venuepricing/internal/metrics"
	"github.com/jia-app/venuepricing/internal/pricing"
	"github.com/jia-app/venuepricing/internal/quote"
	"github.com/jia-app/venuepricing/internal/ratelimit"
	"github.com/jia-app/venuepricing/internal/repository"
	"github.com/jia-app/venuepricing/internal/repository/postgres"
	"github.com/jia-app/venuepricing/internal/retry"
	"github.com/jia-app/venuepricing/internal/server"
	"github.com/jia-app/venuepricing/internal/tracing"
)

// Version is reported to the tracing backend
var Version = "dev"

// App represents the application
type App struct {
	config          *config.Config
	logger          *zap.Logger
	dbPool          *db.Pool
	cache           *cache.Cache
	httpServer      *server.HTTPServer
	metricsServer   *metrics.Server
	tracingShutdown func(context.Context) error
}

// New creates a new application instance
func New(cfg *config.Config) (*App, error) {
	if err := log.Init(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := log.L(context.Background())

	logger.Info("Initializing venue pricing application",
		zap.String("app_name", cfg.AppName),
		zap.String("http_address", cfg.HTTP.Address))

	a := &App{
		config: cfg,
		logger: logger,
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(tracing.Config{
			ServiceName:    cfg.AppName,
			ServiceVersion: Version,
			Environment:    cfg.Tracing.Environment,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SamplingRatio:  cfg.Tracing.SamplingRatio,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.tracingShutdown = shutdown
	}

	dbPool, err := initializeDatabase(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.dbPool = dbPool

	// Redis is optional: without it quotes are computed on every request.
	if cfg.Redis.Addr != "" {
		c, err := cache.NewCache(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis initialization failed, continuing without quote cache",
				zap.Error(err),
				zap.String("redis_addr", cfg.Redis.Addr))
		} else {
			a.cache = c
		}
	}

	ruleStore, err := postgres.NewRuleStore(dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule store: %w", err)
	}
	rulesBreaker := circuitbreaker.New("payment_rules", circuitbreaker.DefaultConfig(), logger)
	rules := repository.WithCircuitBreaker(ruleStore, rulesBreaker)
	accounts, err := postgres.NewAccountStore(dbPool)
	if err != nil {
		return nil, fmt.Errorf("failed to create account store: %w", err)
	}

	var quoteCache quote.Cache
	if a.cache != nil {
		quoteCache = a.cache
	}
	quotes := quote.NewService(rules, quoteCache, pricing.NewEngine(logger), cfg.Quote.CacheTTL)
	checkout := quote.NewCheckoutService(quotes, accounts)

	checks := map[string]server.HealthCheck{
		"database":      dbPool.Health,
		"payment_rules": rulesBreaker.Check,
	}
	routerCfg := server.RouterConfig{
		Quotes:         server.NewQuoteHandler(quotes, checkout),
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
	if a.cache != nil {
		checks["redis"] = a.cache.Ping
		if cfg.RateLimit.Enabled {
			routerCfg.RateLimiter = ratelimit.NewRedisRateLimiter(a.cache.Client(), ratelimit.Config{
				Limit:     cfg.RateLimit.RequestsPerMinute,
				Window:    time.Minute,
				KeyPrefix: cfg.AppName + ":rate_limit",
			}, logger)
		}
	}
	routerCfg.Health = server.NewHealthHandler(checks)

	gin.SetMode(gin.ReleaseMode)
	a.httpServer = server.NewHTTPServer(cfg.HTTP, server.NewRouter(routerCfg), logger)

	if cfg.Metrics.Enabled {
		a.metricsServer = metrics.NewServer(cfg.Metrics.Address, logger)
	}

	return a, nil
}

// Run starts the servers and blocks until one of them fails or ctx is done
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting venue pricing application")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpServer.Serve(ctx)
	})
	if a.metricsServer != nil {
		g.Go(func() error {
			return a.metricsServer.Start(ctx)
		})
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down venue pricing application")

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	if a.tracingShutdown != nil {
		if err := a.tracingShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
	}

	a.logger.Info("Application shutdown complete")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// initializeDatabase connects to PostgreSQL, retrying while it is unreachable
func initializeDatabase(cfg *config.Config, logger *zap.Logger) (*db.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbCfg := db.DefaultConfig(cfg.Postgres.DSN)
	dbCfg.MaxConns = cfg.Postgres.MaxConns
	dbCfg.MinConns = cfg.Postgres.MinConns

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5

	var pool *db.Pool
	err := retry.Do(ctx, retryCfg, logger, func(ctx context.Context) error {
		var err error
		pool, err = db.NewPool(ctx, dbCfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}
