package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

// ETLState is the stage the refresh pipeline is in
type ETLState string

const (
	ETLStateIdle        ETLState = "IDLE"
	ETLStateDiscovering ETLState = "DISCOVERING"
	ETLStateFetching    ETLState = "FETCHING"
	ETLStateAggregating ETLState = "AGGREGATING"
	ETLStateLoading     ETLState = "LOADING"
)

// ETLOutcome is how a run ended
type ETLOutcome string

const (
	ETLOutcomeLoaded   ETLOutcome = "loaded"
	ETLOutcomeNoDate   ETLOutcome = "no_date"
	ETLOutcomeUpToDate ETLOutcome = "up_to_date"
	ETLOutcomeEmpty    ETLOutcome = "empty"
	ETLOutcomeFailed   ETLOutcome = "failed"
)

// ETLSummary describes one pipeline run
type ETLSummary struct {
	RunID          string         `json:"runId"`
	Outcome        ETLOutcome     `json:"outcome"`
	TargetDate     *entities.Date `json:"targetDate,omitempty"`
	RecordsFetched int            `json:"recordsFetched"`
	UnitsLoaded    int            `json:"unitsLoaded"`
	StartedAt      time.Time      `json:"startedAt"`
	Duration       time.Duration  `json:"duration"`
}

// ETLService drives discovery, fetch, aggregation and load of the daily stock snapshot
type ETLService struct {
	discovery      *DateDiscovery
	fetcher        *StockFetcher
	aggregator     *Aggregator
	loader         *Loader
	repo           repositories.HealthUnitRepository
	invalidator    *CacheInvalidationService
	metrics        *observability.Metrics
	skipIfUpToDate bool
	state          atomic.Value
}

// ETLDeps groups the collaborators of the pipeline
type ETLDeps struct {
	Discovery   *DateDiscovery
	Fetcher     *StockFetcher
	Aggregator  *Aggregator
	Loader      *Loader
	Repository  repositories.HealthUnitRepository
	Invalidator *CacheInvalidationService
	Metrics     *observability.Metrics
}

// NewETLService creates the pipeline. With skipIfUpToDate the run stops before
// fetching when the discovered date is not newer than what is stored.
func NewETLService(deps ETLDeps, skipIfUpToDate bool) *ETLService {
	s := &ETLService{
		discovery:      deps.Discovery,
		fetcher:        deps.Fetcher,
		aggregator:     deps.Aggregator,
		loader:         deps.Loader,
		repo:           deps.Repository,
		invalidator:    deps.Invalidator,
		metrics:        deps.Metrics,
		skipIfUpToDate: skipIfUpToDate,
	}
	s.state.Store(ETLStateIdle)
	return s
}

// State returns the current pipeline stage
func (s *ETLService) State() ETLState {
	return s.state.Load().(ETLState)
}

// Run executes one refresh. Warnings (no date, empty snapshot) and the staleness
// short-circuit end the run without error. Any failure aborts it; the state always
// returns to IDLE.
func (s *ETLService) Run(ctx context.Context) (*ETLSummary, error) {
	summary := &ETLSummary{RunID: uuid.NewString(), StartedAt: time.Now()}

	logger := observability.LoggerFromContext(ctx).With().Str("run_id", summary.RunID).Str("job", "etl").Logger()
	ctx = observability.ContextWithLogger(ctx, logger)
	ctx, span := observability.StartSpan(ctx, "etl.run")
	defer span.End()

	defer func() {
		s.state.Store(ETLStateIdle)
		summary.Duration = time.Since(summary.StartedAt)
		observability.SetSpanAttributes(span,
			attribute.String("etl.run_id", summary.RunID),
			attribute.String("etl.outcome", string(summary.Outcome)),
			attribute.Int("etl.records_fetched", summary.RecordsFetched),
			attribute.Int("etl.units_loaded", summary.UnitsLoaded),
		)
		observability.RecordETLRun(ctx, s.metrics, string(summary.Outcome), summary.RecordsFetched, summary.UnitsLoaded, summary.Duration)
		logger.Info().
			Str("outcome", string(summary.Outcome)).
			Str("target_date", dateString(summary.TargetDate)).
			Int("records_fetched", summary.RecordsFetched).
			Int("units_loaded", summary.UnitsLoaded).
			Dur("duration", summary.Duration).
			Msg("etl run finished")
	}()

	fail := func(stage string, err error) (*ETLSummary, error) {
		summary.Outcome = ETLOutcomeFailed
		observability.RecordError(span, err)
		logger.Error().Err(err).Str("stage", stage).Msg("etl run aborted")
		return summary, fmt.Errorf("etl %s: %w", stage, err)
	}

	logger.Info().Msg("etl run started")

	s.state.Store(ETLStateDiscovering)
	date, err := s.discovery.Discover(ctx)
	if err != nil {
		return fail("discovery", err)
	}
	if date == nil {
		logger.Warn().Msg("no published stock date found in the probe window")
		summary.Outcome = ETLOutcomeNoDate
		return summary, nil
	}
	summary.TargetDate = date

	if s.skipIfUpToDate {
		latest, err := s.repo.LatestStockUpdate(ctx)
		if err != nil {
			return fail("staleness check", err)
		}
		if latest != nil && !date.After(*latest) {
			logger.Info().Str("date", date.String()).Str("stored", latest.String()).Msg("store is up to date")
			summary.Outcome = ETLOutcomeUpToDate
			return summary, nil
		}
	}

	s.state.Store(ETLStateFetching)
	records, err := s.fetcher.FetchAll(ctx, *date)
	if err != nil {
		return fail("fetch", err)
	}
	summary.RecordsFetched = len(records)
	if len(records) == 0 {
		logger.Warn().Str("date", date.String()).Msg("upstream returned no records for the discovered date")
		summary.Outcome = ETLOutcomeEmpty
		return summary, nil
	}

	s.state.Store(ETLStateAggregating)
	units := s.aggregator.Aggregate(records, *date)

	s.state.Store(ETLStateLoading)
	loaded, err := s.loader.Load(ctx, units)
	if err != nil {
		return fail("load", err)
	}
	summary.UnitsLoaded = loaded
	summary.Outcome = ETLOutcomeLoaded

	if err := s.invalidator.InvalidateResponses(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate response cache")
	}

	return summary, nil
}

func dateString(d *entities.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
