package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

const (
	googleGeocodeURL       = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultGeocodeCacheTTL = 60 * 60 * 24 * 30
	defaultHTTPTimeout     = 8 * time.Second
	geocodeRegion          = "br"
	geocodeCachePrefix     = "geo:v1:geocode:"
)

// GoogleGeolocationProvider implements the GeolocationProvider using the Google Geocoding API.
type GoogleGeolocationProvider struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	baseURL    string
}

// NewGoogleGeolocationProvider creates a new Google geolocation provider.
func NewGoogleGeolocationProvider(apiKey string, cache providers.CacheProvider, timeout time.Duration) providers.GeolocationProvider {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return NewGoogleGeolocationProviderWithOptions(apiKey, cache, googleGeocodeURL, &http.Client{Timeout: timeout})
}

// NewGoogleGeolocationProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGoogleGeolocationProviderWithOptions(apiKey string, cache providers.CacheProvider, baseURL string, httpClient *http.Client) providers.GeolocationProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleGeocodeURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoogleGeolocationProvider{
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache,
		baseURL:    baseURL,
	}
}

// Geocode converts an address to coordinates. ErrNoGeocodeResult is returned when
// Google knows no location for it.
func (g *GoogleGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("address is required")
	}

	cacheKey := geocodeCachePrefix + hashKey(strings.ToLower(trimmed))
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var coords providers.Coordinates
			if err := json.Unmarshal(cached, &coords); err == nil && (coords.Latitude != 0 || coords.Longitude != 0) {
				return &coords, nil
			}
		}
	}

	resp, err := g.doGeocodeRequest(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	result := resp.Results[0]
	coords := providers.Coordinates{
		Latitude:  result.Geometry.Location.Lat,
		Longitude: result.Geometry.Location.Lng,
	}

	if g.cache != nil {
		if payload, err := json.Marshal(coords); err == nil {
			_ = g.cache.Set(ctx, cacheKey, payload, defaultGeocodeCacheTTL)
		}
	}

	return &coords, nil
}

func (g *GoogleGeolocationProvider) doGeocodeRequest(ctx context.Context, address string) (*googleGeocodeResponse, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewValidationError("google maps api key is required")
	}

	params := url.Values{}
	params.Set("address", address)
	params.Set("region", geocodeRegion)
	params.Set("key", g.apiKey)

	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build geocode request", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError("geocode request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewExternalError(fmt.Sprintf("geocode request returned status %d", resp.StatusCode), nil)
	}

	var payload googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewExternalError("failed to decode geocode response", err)
	}

	switch {
	case payload.Status == "ZERO_RESULTS":
		return nil, providers.ErrNoGeocodeResult
	case payload.Status != "OK":
		msg := "geocode request failed: " + payload.Status
		if payload.ErrorMessage != "" {
			msg += " - " + payload.ErrorMessage
		}
		return nil, apperrors.NewExternalError(msg, nil)
	case len(payload.Results) == 0:
		return nil, providers.ErrNoGeocodeResult
	}

	return &payload, nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

type googleGeocodeResponse struct {
	Status       string                `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Results      []googleGeocodeResult `json:"results"`
}

type googleGeocodeResult struct {
	FormattedAddress string         `json:"formatted_address"`
	Geometry         googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
