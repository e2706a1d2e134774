// Package app provides application-level coordination and dependency injection.
// It builds the storage backends, the provider client, the forecast engine and
// the HTTP surface from configuration, and manages their lifecycles.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sean-rowe/best-bike-day/internal/adapters/primary/rest"
	"github.com/sean-rowe/best-bike-day/internal/adapters/secondary/openweather"
	"github.com/sean-rowe/best-bike-day/internal/config"
	"github.com/sean-rowe/best-bike-day/internal/core/ports"
	"github.com/sean-rowe/best-bike-day/internal/core/scoring"
	"github.com/sean-rowe/best-bike-day/internal/core/services"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/cache"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/circuitbreaker"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/database"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/ratelimit"
	"github.com/sean-rowe/best-bike-day/internal/infrastructure/scheduler"
	"github.com/sean-rowe/best-bike-day/internal/middleware"
	"github.com/sean-rowe/best-bike-day/internal/observability"
)

// rateLimiterIdleAfter evicts in-memory rate limit windows of quiet clients.
const rateLimiterIdleAfter = 10 * time.Minute

// App manages the application lifecycle and dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	server    *http.Server
	telemetry *observability.Telemetry
	redis     *redis.Client
	db        *database.PostgresDB
	store     ports.KeyValueStore
	engine    *Engine
	scheduler *scheduler.Scheduler

	stop context.CancelFunc
}

// Engine is the assembled forecast engine, shared by the HTTP server and the CLI.
type Engine struct {
	Controller *services.ForecastController
	Favorites  *services.Favorites
	Theme      *services.ThemeSettings
	Cache      *cache.ForecastCache
	Breakers   *circuitbreaker.Manager
}

// New creates a new application instance from the layered configuration.
//
// Returns:
//   - *App: Configured application instance
//   - error: Configuration or logger initialization error
func New() (*App, error) {
	cfg, err := config.Load()

	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Server.Environment, cfg.Server.LogLevel)

	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewWithConfig(cfg, logger), nil
}

// NewWithConfig creates an application from an explicit configuration.
func NewWithConfig(cfg *config.Config, logger *zap.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Start initializes and starts all application components.
//
// Parameters:
//   - ctx: Context for initialization
//
// Returns:
//   - error: Storage or engine initialization error
func (a *App) Start(ctx context.Context) error {
	handler, err := a.Build(ctx)

	if err != nil {
		return err
	}

	if err := a.startScheduler(); err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	go func() {
		a.logger.Info("starting HTTP server", zap.String("port", a.cfg.Server.Port))

		if err := a.server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				a.logger.Fatal("failed to start server", zap.Error(err))
			}
		}
	}()

	return nil
}

// Build assembles the engine and the HTTP handler without listening.
//
// Parameters:
//   - ctx: Context for backend connections and initial loads
//
// Returns:
//   - http.Handler: Router serving the API
//   - error: Storage or engine initialization error
func (a *App) Build(ctx context.Context) (http.Handler, error) {
	runCtx, stop := context.WithCancel(context.Background())
	a.stop = stop

	if a.cfg.Observability.Enabled {
		if err := a.initTelemetry(ctx); err != nil {
			a.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
		}
	}

	a.initRedis(ctx)

	if err := a.initDatabase(ctx); err != nil {
		a.logger.Warn("failed to connect to database, continuing without it", zap.Error(err))
	}

	engine, err := a.BuildEngine(ctx)

	if err != nil {
		return nil, err
	}

	var rateLimit *middleware.RateLimitMiddleware

	if a.cfg.RateLimit.Enabled {
		rateLimit = middleware.NewRateLimitMiddleware(
			a.initRateLimiter(runCtx),
			a.cfg.RateLimit.Requests,
			a.cfg.RateLimit.Window,
			a.logger,
		)
	}

	deps := RouterDeps{
		Weather:   rest.NewWeatherHandler(engine.Controller, a.logger),
		Favorites: rest.NewFavoritesHandler(engine.Favorites, a.logger),
		Theme:     rest.NewThemeHandler(engine.Theme, a.logger),
		RateLimit: rateLimit,
		Breakers:  engine.Breakers,
		Logger:    a.logger,
	}

	if a.telemetry != nil {
		deps.Observability = middleware.NewObservabilityMiddleware(a.telemetry, a.logger)
		deps.MetricsHandler = a.telemetry.MetricsHandler()
	}

	deps.ReadyChecks = map[string]func(ctx context.Context) error{}

	if a.db != nil {
		deps.FetchStats = NewDatabaseAdapter(a.db)
		deps.ReadyChecks["database"] = a.db.Ping
	}

	if a.redis != nil {
		deps.ReadyChecks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}

	return NewRouter(deps), nil
}

// BuildEngine assembles the forecast engine over the configured storage backend.
// Backends are connected lazily, so the CLI can call it without Build.
func (a *App) BuildEngine(ctx context.Context) (*Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	store, err := a.initStore(ctx)

	if err != nil {
		return nil, err
	}

	a.store = store

	policy, err := scoring.ByName(a.cfg.Forecast.ScoringPolicy)

	if err != nil {
		return nil, err
	}

	if a.cfg.OpenWeather.APIKey == "" {
		a.logger.Warn("OPENWEATHER_API_KEY is not set, provider calls will be rejected")
	}

	client := openweather.NewClient(openweather.Config{
		BaseURL:           a.cfg.OpenWeather.BaseURL,
		APIKey:            a.cfg.OpenWeather.APIKey,
		RequestsPerSecond: a.cfg.OpenWeather.RequestsPerSecond,
		Burst:             a.cfg.OpenWeather.Burst,
	}, &http.Client{Timeout: a.cfg.OpenWeather.HTTPTimeout}, a.logger)

	breakers := circuitbreaker.NewManager(circuitbreaker.Config{
		MaxRequests: a.cfg.Breaker.MaxRequests,
		Interval:    a.cfg.Breaker.Interval,
		Timeout:     a.cfg.Breaker.Timeout,
	}, a.logger)

	source := NewCircuitBreakerForecastSource(client, breakers.Get("openweather-forecast"))
	geocoder := NewCircuitBreakerGeocoder(client, breakers.Get("openweather-geocoding"))

	forecastCache := cache.NewForecastCache(store, a.cfg.Forecast.CacheTTL, time.Now, a.logger)
	search := services.NewLocationSearch(geocoder, a.cfg.OpenWeather.SearchLimit, a.logger)

	var opts []services.ControllerOption

	if a.telemetry != nil {
		opts = append(opts, services.WithMetrics(a.telemetry))
	}

	if a.db != nil {
		opts = append(opts, services.WithFetchRecorder(NewDatabaseAdapter(a.db)))
	}

	a.engine = &Engine{
		Controller: services.NewForecastController(source, search, forecastCache, policy, a.logger, opts...),
		Favorites:  services.NewFavorites(ctx, store, a.logger),
		Theme:      services.NewThemeSettings(ctx, store, a.logger),
		Cache:      forecastCache,
		Breakers:   breakers,
	}

	a.logger.Info("forecast engine ready",
		zap.String("policy", policy.Name()),
		zap.String("storage", a.cfg.Storage.Backend),
		zap.Duration("cache_ttl", a.cfg.Forecast.CacheTTL))

	return a.engine, nil
}

// Stop gracefully shuts down all application components.
func (a *App) Stop() {
	a.logger.Info("shutting down application...")

	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown server gracefully", zap.Error(err))
		}
	}

	if a.scheduler != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Error("failed to stop scheduler", zap.Error(err))
		}
	}

	if a.engine != nil {
		a.engine.Controller.Close()
	}

	if a.stop != nil {
		a.stop()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis connection", zap.Error(err))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database connection", zap.Error(err))
		}
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to shutdown telemetry", zap.Error(err))
		}
	}

	// Sync can fail on some platforms
	_ = a.logger.Sync()
}

// WaitForShutdown blocks until the server receives a shutdown signal.
func (a *App) WaitForShutdown() {
	quit := make(chan os.Signal, 1)

	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	a.logger.Info("shutdown signal received")
}

// initTelemetry initializes OpenTelemetry providers.
func (a *App) initTelemetry(ctx context.Context) error {
	telemetryConfig := observability.Config{
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: a.cfg.Observability.ServiceVersion,
		Environment:    a.cfg.Server.Environment,
		OTLPEndpoint:   a.cfg.Observability.OTLPEndpoint,
		SampleRate:     a.cfg.Observability.SampleRate,
	}

	var err error
	a.telemetry, err = observability.InitTelemetry(ctx, telemetryConfig, a.logger)

	return err
}

// initRedis connects when Redis serves storage or rate limiting. A failed
// connection leaves a.redis nil and the memory backends take over.
func (a *App) initRedis(ctx context.Context) {
	if !a.cfg.Redis.Enabled && a.cfg.Storage.Backend != config.BackendRedis {
		a.logger.Info("Redis disabled, using memory-based services")
		return
	}

	client, err := cache.NewRedisClient(ctx, cache.Config{
		Addr:         a.cfg.Redis.Addr,
		Password:     a.cfg.Redis.Password,
		DB:           a.cfg.Redis.DB,
		PoolSize:     a.cfg.Redis.PoolSize,
		MinIdleConns: a.cfg.Redis.MinIdleConns,
		MaxRetries:   a.cfg.Redis.MaxRetries,
		DialTimeout:  a.cfg.Redis.DialTimeout,
		ReadTimeout:  a.cfg.Redis.ReadTimeout,
		WriteTimeout: a.cfg.Redis.WriteTimeout,
	})

	if err != nil {
		a.logger.Warn("Redis connection failed, falling back to memory-based services", zap.Error(err))
		return
	}

	a.logger.Info("Redis connected successfully")
	a.redis = client
}

// initDatabase initializes the PostgreSQL connection and applies migrations.
func (a *App) initDatabase(ctx context.Context) error {
	if !a.cfg.Database.Enabled {
		return nil
	}

	db, err := database.NewPostgresDB(ctx, database.Config{
		Host:                  a.cfg.Database.Host,
		Port:                  a.cfg.Database.Port,
		User:                  a.cfg.Database.User,
		Password:              a.cfg.Database.Password,
		Database:              a.cfg.Database.Name,
		SSLMode:               a.cfg.Database.SSLMode,
		MaxConnections:        a.cfg.Database.MaxConnections,
		MaxIdleConnections:    a.cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: a.cfg.Database.ConnectionMaxLifetime,
	}, a.logger)

	if err != nil {
		return err
	}

	if a.cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB(), a.logger); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a.db = db

	return nil
}

// initStore selects the durable key-value backend. Redis falls back to memory
// when unreachable; postgres has no fallback since its data would silently fork.
func (a *App) initStore(ctx context.Context) (ports.KeyValueStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		if a.db == nil {
			if err := a.initDatabase(ctx); err != nil {
				return nil, fmt.Errorf("postgres storage unavailable: %w", err)
			}
		}

		if a.db == nil {
			return nil, errors.New("postgres storage requires the database to be enabled")
		}

		return a.db, nil
	case config.BackendRedis:
		if a.redis == nil {
			a.initRedis(ctx)
		}

		if a.redis != nil {
			return cache.NewRedisStore(a.redis, a.logger), nil
		}

		a.logger.Warn("Redis storage unavailable, falling back to memory store")
	}

	store, err := cache.NewMemoryStore(a.cfg.Storage.SnapshotPath, a.logger)

	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}

	return store, nil
}

// initRateLimiter returns the Redis limiter when connected, the in-memory one otherwise.
func (a *App) initRateLimiter(ctx context.Context) ports.RateLimitService {
	if a.redis != nil {
		return ratelimit.NewRedisRateLimiter(a.redis, a.logger)
	}

	return middleware.NewMemoryRateLimiter(ctx, rateLimiterIdleAfter, a.logger)
}

// startScheduler registers the cache purge job.
func (a *App) startScheduler() error {
	if a.cfg.Forecast.CachePurgeSchedule == "" || a.engine == nil {
		return nil
	}

	a.scheduler = scheduler.New(a.logger)

	if err := a.scheduler.Add(a.cfg.Forecast.CachePurgeSchedule, scheduler.NewCachePurgeJob(a.engine.Cache, a.logger)); err != nil {
		return err
	}

	a.scheduler.Start()

	return nil
}
