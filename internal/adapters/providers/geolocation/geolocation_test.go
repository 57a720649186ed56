package geolocation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) DeletePattern(context.Context, string) error { return nil }

func TestGoogleGeocode_ParsesFirstResult(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"Rua A, 10 - Centro, Caucaia - CE","geometry":{"location":{"lat":-3.7361234,"lng":-38.6531234}}},
			{"formatted_address":"other","geometry":{"location":{"lat":1,"lng":1}}}
		]}`))
	}))
	defer server.Close()

	provider := NewGoogleGeolocationProviderWithOptions("key-123", nil, server.URL, server.Client())
	coords, err := provider.Geocode(context.Background(), "  Rua A, 10, Centro, CAUCAIA, CE  ")
	require.NoError(t, err)
	assert.Equal(t, -3.7361234, coords.Latitude)
	assert.Equal(t, -38.6531234, coords.Longitude)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"Rua A, 10, Centro, CAUCAIA, CE"}, q["address"])
	assert.Equal(t, []string{"br"}, q["region"])
	assert.Equal(t, []string{"key-123"}, q["key"])
}

func TestGoogleGeocode_ZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	provider := NewGoogleGeolocationProviderWithOptions("key", nil, server.URL, server.Client())
	_, err := provider.Geocode(context.Background(), "Rua Inexistente, S/N, CAUCAIA")
	assert.ErrorIs(t, err, providers.ErrNoGeocodeResult)
}

func TestGoogleGeocode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusInternalServerError, body: `oops`},
		{name: "denied", status: http.StatusOK, body: `{"status":"REQUEST_DENIED","error_message":"bad key"}`},
		{name: "malformed", status: http.StatusOK, body: `{"status":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewGoogleGeolocationProviderWithOptions("key", nil, server.URL, server.Client())
			_, err := provider.Geocode(context.Background(), "Rua A, 10, CAUCAIA")
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
			assert.NotErrorIs(t, err, providers.ErrNoGeocodeResult)
		})
	}
}

func TestGoogleGeocode_RequiresKeyAndAddress(t *testing.T) {
	provider := NewGoogleGeolocationProviderWithOptions("", nil, "http://127.0.0.1:1", nil)
	_, err := provider.Geocode(context.Background(), "Rua A, 10, CAUCAIA")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	provider = NewGoogleGeolocationProviderWithOptions("key", nil, "http://127.0.0.1:1", nil)
	_, err = provider.Geocode(context.Background(), "   ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestGoogleGeocode_UsesCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":-3.7,"lng":-38.6}}}]}`))
	}))
	defer server.Close()

	cache := newMemoryCache()
	provider := NewGoogleGeolocationProviderWithOptions("key", cache, server.URL, server.Client())

	first, err := provider.Geocode(context.Background(), "Rua A, 10, CAUCAIA")
	require.NoError(t, err)
	second, err := provider.Geocode(context.Background(), "rua a, 10, caucaia")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for key := range cache.data {
		assert.True(t, strings.HasPrefix(key, geocodeCachePrefix))
	}
}

func TestMockGeocode(t *testing.T) {
	provider := NewMockGeolocationProvider()

	a, err := provider.Geocode(context.Background(), "Rua A, 10, Centro, Caucaia, CE")
	require.NoError(t, err)
	b, err := provider.Geocode(context.Background(), "Rua A, 10, Centro, Caucaia, CE")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.InDelta(t, -3.736112, a.Latitude, 0.011)
	assert.InDelta(t, -38.653057, a.Longitude, 0.011)

	_, err = provider.Geocode(context.Background(), "Somewhere, XX")
	assert.ErrorIs(t, err, providers.ErrNoGeocodeResult)
}

type scriptedProvider struct {
	calls int
	err   error
}

func (s *scriptedProvider) Geocode(context.Context, string) (*providers.Coordinates, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Coordinates{Latitude: -3.7361, Longitude: -38.6531}, nil
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedProvider{err: apperrors.NewExternalError("boom", nil)}
	provider := NewCircuitBreakerProvider(inner, BreakerSettings{ConsecutiveFailures: 3, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := provider.Geocode(context.Background(), "addr")
		require.Error(t, err)
	}
	assert.Equal(t, "open", provider.State())

	_, err := provider.Geocode(context.Background(), "addr")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Equal(t, 3, inner.calls)
}

func TestCircuitBreaker_NoResultDoesNotTrip(t *testing.T) {
	inner := &scriptedProvider{err: providers.ErrNoGeocodeResult}
	provider := NewCircuitBreakerProvider(inner, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		_, err := provider.Geocode(context.Background(), "addr")
		assert.ErrorIs(t, err, providers.ErrNoGeocodeResult)
	}
	assert.Equal(t, "closed", provider.State())
	assert.Equal(t, 5, inner.calls)
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	provider := NewCircuitBreakerProvider(&scriptedProvider{}, DefaultBreakerSettings())
	coords, err := provider.Geocode(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, -3.7361, coords.Latitude)
}
