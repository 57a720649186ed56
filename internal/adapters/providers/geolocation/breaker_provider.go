package geolocation

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

// BreakerSettings tunes the circuit breaker wrapped around a geocoder
type BreakerSettings struct {
	// ConsecutiveFailures opens the circuit
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing again
	OpenTimeout time.Duration
	// Interval resets the counts while closed
	Interval time.Duration
}

// DefaultBreakerSettings trips after 5 straight failures and probes again after a minute
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         time.Minute,
		Interval:            5 * time.Minute,
	}
}

// CircuitBreakerProvider stops calling a failing geocoder so a backfill run over
// hundreds of facilities does not hammer a dead or quota-exhausted API.
type CircuitBreakerProvider struct {
	next providers.GeolocationProvider
	cb   *gobreaker.CircuitBreaker[*providers.Coordinates]
}

// NewCircuitBreakerProvider wraps next with a circuit breaker
func NewCircuitBreakerProvider(next providers.GeolocationProvider, settings BreakerSettings) *CircuitBreakerProvider {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	logger := observability.GetLogger()

	cb := gobreaker.NewCircuitBreaker[*providers.Coordinates](gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geocoder circuit breaker state change")
		},
		// an address with no match is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, providers.ErrNoGeocodeResult) || errors.Is(err, context.Canceled)
		},
	})

	return &CircuitBreakerProvider{next: next, cb: cb}
}

// Geocode delegates to the wrapped provider unless the circuit is open
func (p *CircuitBreakerProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	coords, err := p.cb.Execute(func() (*providers.Coordinates, error) {
		return p.next.Geocode(ctx, address)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.NewExternalError("geocoder unavailable", err)
	}
	return coords, err
}

// State reports the breaker state, e.g. "closed" or "open"
func (p *CircuitBreakerProvider) State() string {
	return p.cb.State().String()
}
