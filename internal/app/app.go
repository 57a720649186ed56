// Package app wires configuration, clients, adapters and services into the
// components the binaries run.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/saudeaberta/medstock-api/internal/adapters/cache"
	"github.com/saudeaberta/medstock-api/internal/adapters/database"
	"github.com/saudeaberta/medstock-api/internal/adapters/locks"
	"github.com/saudeaberta/medstock-api/internal/adapters/providers/geolocation"
	"github.com/saudeaberta/medstock-api/internal/adapters/providers/stocksource"
	"github.com/saudeaberta/medstock-api/internal/application/services"
	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/demas"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/postgres"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/redis"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	"github.com/saudeaberta/medstock-api/pkg/config"
)

// Components holds everything a binary may need. Cache and Lock are nil without Redis.
type Components struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Metrics *observability.Metrics

	Repository repositories.HealthUnitRepository
	Cache      providers.CacheProvider
	Lock       providers.JobLock

	Queries     *services.HealthUnitService
	ETL         *services.ETLService
	Coordinates *services.CoordinatesService
	KeepAlive   *services.KeepAliveService

	closers []func() error
}

// Build connects to the store (and Redis when enabled) and assembles the services
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{
		Config: cfg,
		Logger: observability.GetLogger(),
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	c.Metrics = metrics

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	c.closers = append(c.closers, pgClient.Close)

	if err := database.EnsureSchema(ctx, pgClient); err != nil {
		c.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	c.Repository = database.NewHealthUnitAdapter(pgClient)

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// the API works without Redis: no response cache, no geocode cache, local job guard only
			c.Logger.Warn().Err(err).Msg("redis unavailable, continuing without cache and job lock")
		} else {
			c.closers = append(c.closers, redisClient.Close)
			c.Cache = cache.NewRedisAdapter(redisClient)
			c.Lock = locks.NewRedisLock(redisClient)
		}
	}

	invalidator := services.NewCacheInvalidationService(c.Cache)
	loc := cfg.App.Location()

	c.Queries = services.NewHealthUnitService(c.Repository)

	stockSource := stocksource.NewDemasSource(demas.NewClient(demas.Config{
		BaseURL:           cfg.Demas.BaseURL,
		RegionCode:        cfg.Demas.RegionCode,
		MunicipalityCode:  cfg.Demas.MunicipalityCode,
		Timeout:           cfg.Demas.Timeout,
		MaxAttempts:       cfg.Demas.MaxAttempts,
		RequestsPerSecond: cfg.Demas.RequestsPerSecond,
	}))

	c.ETL = services.NewETLService(services.ETLDeps{
		Discovery:   services.NewDateDiscovery(stockSource, cfg.ETL.ProbeDays, loc),
		Fetcher:     services.NewStockFetcher(stockSource, cfg.Demas.PageSize),
		Aggregator:  services.NewAggregator(cfg.ETL.ClassifyLocations),
		Loader:      services.NewLoader(c.Repository),
		Repository:  c.Repository,
		Invalidator: invalidator,
		Metrics:     metrics,
	}, cfg.ETL.SkipIfUpToDate)

	c.Coordinates = services.NewCoordinatesService(
		c.Repository,
		newGeocoder(cfg.Geolocation, cfg.App.Env, c.Cache, c.Logger),
		invalidator,
		metrics,
		services.CoordinatesOptions{
			ClassifyLocations: cfg.ETL.ClassifyLocations,
			PageSize:          cfg.Backfill.PageSize,
			Pause:             cfg.Backfill.Pause,
		},
	)

	if cfg.KeepAlive.URL != "" {
		c.KeepAlive = services.NewKeepAliveService(cfg.KeepAlive.URL, nil)
	}

	return c, nil
}

// Close releases connections in reverse order of acquisition
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.Logger.Warn().Err(err).Msg("error closing resource")
		}
	}
	c.closers = nil
}

// newGeocoder picks the provider. The Google provider always runs behind the breaker.
// Without an API key, or with the mock outside development, every lookup fails and the
// backfill leaves coordinates as they are.
func newGeocoder(cfg config.GeolocationConfig, env string, cacheProvider providers.CacheProvider, logger *zerolog.Logger) providers.GeolocationProvider {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "google":
		if cfg.APIKey == "" {
			logger.Warn().Msg("GEOLOCATION_API_KEY is not set; coordinate backfill will not geocode")
			return geolocation.NewUnavailableProvider("GEOLOCATION_API_KEY is not set")
		}
		google := geolocation.NewGoogleGeolocationProvider(cfg.APIKey, cacheProvider, cfg.Timeout)
		return geolocation.NewCircuitBreakerProvider(google, geolocation.DefaultBreakerSettings())
	case "mock":
		if env == config.EnvDevelopment {
			return geolocation.NewMockGeolocationProvider()
		}
		logger.Warn().Str("env", env).Msg("mock geolocation provider is only allowed in development")
		return geolocation.NewUnavailableProvider("mock provider outside development")
	default:
		logger.Warn().Str("provider", cfg.Provider).Msg("unknown geolocation provider")
		return geolocation.NewUnavailableProvider("unknown provider " + cfg.Provider)
	}
}

// SetupTelemetry starts the OpenTelemetry pipelines when enabled. The returned
// function flushes and stops them; it is a no-op when telemetry is off.
func SetupTelemetry(ctx context.Context, cfg *config.Config) func() {
	logger := observability.GetLogger()
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint == "" {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		return func() {}
	}
	logger.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("error shutting down OpenTelemetry")
		}
	}
}
