package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/saudeaberta/medstock-api/internal/app"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	"github.com/saudeaberta/medstock-api/pkg/config"
)

func main() {
	var pageSize int
	var pause time.Duration
	var provider string
	flag.IntVar(&pageSize, "page-size", 0, "Override BACKFILL_PAGE_SIZE for this run")
	flag.DurationVar(&pause, "pause", -1, "Override BACKFILL_PAUSE for this run")
	flag.StringVar(&provider, "provider", "", "Override GEOLOCATION_PROVIDER (google or mock)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if pageSize > 0 {
		cfg.Backfill.PageSize = pageSize
	}
	if pause >= 0 {
		cfg.Backfill.Pause = pause
	}
	if provider != "" {
		cfg.Geolocation.Provider = provider
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-backfill", cfg.App.Env, cfg.App.LogLevel)
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

	summary, err := components.Coordinates.Run(ctx)
	if summary != nil {
		_ = json.NewEncoder(os.Stdout).Encode(summary)
	}
	if err != nil {
		logger.Error().Err(err).Msg("coordinate backfill failed")
		components.Close()
		shutdownTelemetry()
		os.Exit(1)
	}
}
