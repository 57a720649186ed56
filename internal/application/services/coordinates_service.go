package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

const (
	// DefaultBackfillPageSize is how many facilities are read per page
	DefaultBackfillPageSize = 100
	// DefaultGeocodePause is the wait after each geocoding attempt
	DefaultGeocodePause = 50 * time.Millisecond

	minAddressLength      = 10
	maxPreciseDecimals    = 3
	missingNumberMarker   = "S/N"
	addressPartsSeparator = ", "
)

// BackfillSummary counts what one coordinate backfill run did
type BackfillSummary struct {
	RunID      string        `json:"runId"`
	Scanned    int           `json:"scanned"`
	Incomplete int           `json:"incomplete"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration"`
}

// CoordinatesService replaces missing or imprecise facility coordinates with
// geocoded ones
type CoordinatesService struct {
	repo        repositories.HealthUnitRepository
	geocoder    providers.GeolocationProvider
	invalidator *CacheInvalidationService
	metrics     *observability.Metrics
	target      entities.LocationType
	pageSize    int
	pause       time.Duration
}

// CoordinatesOptions tunes the backfill
type CoordinatesOptions struct {
	// ClassifyLocations restricts the backfill to URBAN facilities. Without
	// classification every facility is considered.
	ClassifyLocations bool
	PageSize          int
	Pause             time.Duration
}

// NewCoordinatesService creates a coordinate backfill service
func NewCoordinatesService(
	repo repositories.HealthUnitRepository,
	geocoder providers.GeolocationProvider,
	invalidator *CacheInvalidationService,
	metrics *observability.Metrics,
	opts CoordinatesOptions,
) *CoordinatesService {
	target := entities.LocationTypeAll
	if opts.ClassifyLocations {
		target = entities.LocationTypeUrban
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultBackfillPageSize
	}
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	return &CoordinatesService{
		repo:        repo,
		geocoder:    geocoder,
		invalidator: invalidator,
		metrics:     metrics,
		target:      target,
		pageSize:    opts.PageSize,
		pause:       opts.Pause,
	}
}

// Run scans the target facilities page by page and geocodes those with an
// incomplete coordinate. Per-facility failures are logged and counted; only a
// failure to read a page or cancellation aborts the run.
func (s *CoordinatesService) Run(ctx context.Context) (*BackfillSummary, error) {
	started := time.Now()
	summary := &BackfillSummary{RunID: uuid.NewString()}

	logger := observability.LoggerFromContext(ctx).With().Str("run_id", summary.RunID).Str("job", "backfill").Logger()
	ctx = observability.ContextWithLogger(ctx, logger)
	ctx, span := observability.StartSpan(ctx, "backfill.run")
	defer span.End()

	logger.Info().Str("location_type", string(s.target)).Msg("coordinate backfill started")

	for page := 0; ; page++ {
		units, err := s.repo.List(ctx, repositories.HealthUnitFilter{
			LocationType: s.target,
			Limit:        s.pageSize,
			Offset:       entities.Offset(page, s.pageSize),
		})
		if err != nil {
			observability.RecordError(span, err)
			summary.Duration = time.Since(started)
			return summary, fmt.Errorf("list health units page %d: %w", page, err)
		}

		for _, unit := range units {
			summary.Scanned++
			if err := s.processUnit(ctx, unit, summary); err != nil {
				summary.Duration = time.Since(started)
				return summary, err
			}
		}

		if len(units) < s.pageSize {
			break
		}
	}

	summary.Duration = time.Since(started)
	observability.RecordCoordinatesUpdated(ctx, s.metrics, summary.Updated)
	observability.SetSpanAttributes(span,
		attribute.String("backfill.run_id", summary.RunID),
		attribute.Int("backfill.scanned", summary.Scanned),
		attribute.Int("backfill.updated", summary.Updated),
		attribute.Int("backfill.failed", summary.Failed),
	)

	if summary.Updated > 0 {
		if err := s.invalidator.InvalidateResponses(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate response cache")
		}
	}

	logger.Info().
		Int("scanned", summary.Scanned).
		Int("incomplete", summary.Incomplete).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("coordinate backfill finished")
	return summary, nil
}

// processUnit returns an error only when the run must stop
func (s *CoordinatesService) processUnit(ctx context.Context, unit *entities.HealthUnit, summary *BackfillSummary) error {
	if !IsIncompleteCoordinate(unit.Location.Latitude) && !IsIncompleteCoordinate(unit.Location.Longitude) {
		return nil
	}
	summary.Incomplete++

	logger := observability.LoggerFromContext(ctx).With().Str("cnes_code", unit.CnesCode).Logger()

	address := CompositeAddress(unit)
	if utf8.RuneCountInString(address) < minAddressLength {
		summary.Skipped++
		logger.Debug().Str("address", address).Msg("address too short to geocode")
		return nil
	}

	coords, err := s.geocoder.Geocode(ctx, address)
	pauseErr := s.wait(ctx)

	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, providers.ErrNoGeocodeResult):
		summary.Failed++
		observability.RecordGeocodeAttempt(ctx, s.metrics, "no_result")
		logger.Warn().Str("address", address).Msg("geocoder found no location")
	case err != nil:
		summary.Failed++
		observability.RecordGeocodeAttempt(ctx, s.metrics, "error")
		logger.Error().Err(err).Str("address", address).Msg("geocoding failed")
	case coords == nil:
		summary.Failed++
		observability.RecordGeocodeAttempt(ctx, s.metrics, "no_result")
	default:
		observability.RecordGeocodeAttempt(ctx, s.metrics, "success")
		location := entities.Location{Longitude: coords.Longitude, Latitude: coords.Latitude}
		if err := s.repo.UpdateLocation(ctx, unit.CnesCode, location); err != nil {
			summary.Failed++
			logger.Error().Err(err).Msg("failed to save coordinates")
		} else {
			summary.Updated++
			unit.Location = location
			logger.Info().
				Float64("latitude", location.Latitude).
				Float64("longitude", location.Longitude).
				Msg("coordinates updated")
		}
	}

	return pauseErr
}

func (s *CoordinatesService) wait(ctx context.Context) error {
	if s.pause <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsIncompleteCoordinate reports whether v is unknown (zero) or too coarse to place
// a facility, i.e. it has at most three decimal digits in its shortest form
func IsIncompleteCoordinate(v float64) bool {
	if v == 0 {
		return true
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return true
	}
	return len(s)-dot-1 <= maxPreciseDecimals
}

// CompositeAddress joins the non-empty address parts of unit for geocoding. A street
// without a number gets "S/N".
func CompositeAddress(unit *entities.HealthUnit) string {
	street := strings.TrimSpace(unit.Address.Street)
	number := strings.TrimSpace(unit.Address.Number)
	if street != "" && number == "" {
		number = missingNumberMarker
	}

	parts := make([]string, 0, 6)
	for _, p := range []string{
		street,
		number,
		strings.TrimSpace(unit.Address.Neighborhood),
		strings.TrimSpace(unit.City),
		strings.TrimSpace(unit.State),
		strings.TrimSpace(unit.Address.Cep),
	} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, addressPartsSeparator)
}
