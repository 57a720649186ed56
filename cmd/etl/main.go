package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/saudeaberta/medstock-api/internal/app"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	"github.com/saudeaberta/medstock-api/pkg/config"
)

func main() {
	var force bool
	var probeDays int
	flag.BoolVar(&force, "force", false, "Reload even when the stored snapshot is already up to date")
	flag.IntVar(&probeDays, "probe-days", 0, "Override ETL_PROBE_DAYS for this run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if force {
		cfg.ETL.SkipIfUpToDate = false
	}
	if probeDays > 0 {
		cfg.ETL.ProbeDays = probeDays
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-etl", cfg.App.Env, cfg.App.LogLevel)
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

	summary, err := components.ETL.Run(ctx)
	if summary != nil {
		_ = json.NewEncoder(os.Stdout).Encode(summary)
	}
	if err != nil {
		logger.Error().Err(err).Msg("stock refresh failed")
		components.Close()
		shutdownTelemetry()
		os.Exit(1)
	}
}
