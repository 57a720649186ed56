package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saudeaberta/medstock-api/internal/api/handlers"
	"github.com/saudeaberta/medstock-api/internal/api/middleware"
	"github.com/saudeaberta/medstock-api/internal/api/routes"
	"github.com/saudeaberta/medstock-api/internal/app"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	"github.com/saudeaberta/medstock-api/internal/scheduler"
	"github.com/saudeaberta/medstock-api/internal/supervisor"
	"github.com/saudeaberta/medstock-api/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := app.SetupTelemetry(ctx, cfg)
	defer shutdownTelemetry()

	components, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer components.Close()

	sched := scheduler.New(components.Lock, logger)
	if err := app.RegisterJobs(sched, cfg, components.Jobs()); err != nil {
		logger.Fatal().Err(err).Msg("failed to register jobs")
	}

	var cacheMiddleware *middleware.CacheMiddleware
	if components.Cache != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(components.Cache, components.Metrics, nil)
	}

	router := routes.NewRouter(
		handlers.NewHealthUnitHandler(components.Queries),
		handlers.NewMedicineHandler(components.Queries),
		handlers.NewAdminHandler(sched),
		cacheMiddleware,
		components.Metrics,
		routes.Options{
			AllowedOrigins: middleware.ParseAllowedOrigins(cfg.Server.AllowedOrigins),
			AdminToken:     cfg.App.AdminToken,
		},
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	tree.AddJobService(supervisor.NewSchedulerService(sched))

	logger.Info().
		Str("addr", serverAddr).
		Bool("redis", components.Cache != nil).
		Str("timezone", cfg.App.Timezone).
		Msg("server starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("supervisor stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logger.Warn().Int("services", len(report)).Msg("services did not stop within the shutdown timeout")
	}
	logger.Info().Msg("server stopped")
}
