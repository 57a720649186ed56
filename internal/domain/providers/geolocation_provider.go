package providers

import (
	"context"
	"errors"
)

// ErrNoGeocodeResult is returned when the geocoder found nothing for an address
var ErrNoGeocodeResult = errors.New("geocoder returned no result")

// GeolocationProvider defines the interface for geolocation services
type GeolocationProvider interface {
	// Geocode converts a free-form address to coordinates
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
