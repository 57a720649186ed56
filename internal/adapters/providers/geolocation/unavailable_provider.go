package geolocation

import (
	"context"
	"errors"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

// ErrGeocoderNotConfigured is wrapped by every error of an UnavailableProvider
var ErrGeocoderNotConfigured = errors.New("geocoder not configured")

// UnavailableProvider stands in for a geocoder that cannot be used. Every lookup
// fails with an EXTERNAL error so callers leave coordinates untouched.
type UnavailableProvider struct {
	reason string
}

// NewUnavailableProvider creates a provider that rejects every address
func NewUnavailableProvider(reason string) *UnavailableProvider {
	return &UnavailableProvider{reason: reason}
}

// Geocode always fails
func (p *UnavailableProvider) Geocode(ctx context.Context, _ string) (*providers.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, apperrors.NewExternalError("geocoding unavailable: "+p.reason, ErrGeocoderNotConfigured)
}
