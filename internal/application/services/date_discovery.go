package services

import (
	"context"
	"time"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

// DefaultProbeDays bounds how far back discovery looks for published data
const DefaultProbeDays = 30

// DateDiscovery finds the most recent calendar day for which the upstream has
// published stock, walking backwards one day at a time.
type DateDiscovery struct {
	source    providers.StockSource
	probeDays int
	location  *time.Location
	now       func() time.Time
}

// NewDateDiscovery creates a discovery over source. "Today" is evaluated in loc.
func NewDateDiscovery(source providers.StockSource, probeDays int, loc *time.Location) *DateDiscovery {
	if probeDays <= 0 {
		probeDays = DefaultProbeDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DateDiscovery{
		source:    source,
		probeDays: probeDays,
		location:  loc,
		now:       time.Now,
	}
}

// WithClock replaces the wall clock, for tests
func (d *DateDiscovery) WithClock(now func() time.Time) *DateDiscovery {
	d.now = now
	return d
}

// Discover returns the newest day with at least one record, or nil when none of the
// probed days has data. A failed probe counts as "no data" for that day; only
// cancellation of ctx stops the scan early.
func (d *DateDiscovery) Discover(ctx context.Context) (*entities.Date, error) {
	logger := observability.LoggerFromContext(ctx)
	today := entities.NewDate(d.now().In(d.location))

	for i := 0; i < d.probeDays; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := today.AddDays(-i)
		records, err := d.source.FetchPage(ctx, day, 1, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Str("date", day.String()).Msg("stock probe failed, treating day as empty")
			continue
		}
		if len(records) > 0 {
			logger.Info().Str("date", day.String()).Int("probes", i+1).Msg("found latest stock date")
			return &day, nil
		}
		logger.Debug().Str("date", day.String()).Msg("no stock published")
	}

	return nil, nil
}
