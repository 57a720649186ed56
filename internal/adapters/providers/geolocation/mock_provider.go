package geolocation

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
)

// MockGeolocationProvider implements a mock geolocation provider for development and tests
type MockGeolocationProvider struct{}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() providers.GeolocationProvider {
	return &MockGeolocationProvider{}
}

// mockCities are matched case-insensitively against the address
var mockCities = []struct {
	name   string
	coords providers.Coordinates
}{
	{"CAUCAIA", providers.Coordinates{Latitude: -3.736112, Longitude: -38.653057}},
	{"FORTALEZA", providers.Coordinates{Latitude: -3.731862, Longitude: -38.526669}},
	{"MARACANAU", providers.Coordinates{Latitude: -3.876718, Longitude: -38.625457}},
	{"SOBRAL", providers.Coordinates{Latitude: -3.688535, Longitude: -40.349662}},
}

// Geocode returns a deterministic point near the city named in the address.
// Addresses naming no known city yield ErrNoGeocodeResult.
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upper := strings.ToUpper(address)
	for _, city := range mockCities {
		if strings.Contains(upper, city.name) {
			dLat, dLon := jitter(upper)
			return &providers.Coordinates{
				Latitude:  round6(city.coords.Latitude + dLat),
				Longitude: round6(city.coords.Longitude + dLon),
			}, nil
		}
	}
	return nil, providers.ErrNoGeocodeResult
}

// jitter spreads distinct addresses of one city over roughly a kilometre
func jitter(address string) (float64, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	sum := h.Sum64()
	lat := float64(sum%2000)/100000 - 0.01
	lon := float64((sum/2000)%2000)/100000 - 0.01
	return lat, lon
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
