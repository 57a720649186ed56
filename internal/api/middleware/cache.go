package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

// CacheConfig holds cache configuration for a route prefix
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// DefaultCacheRoutes caches the read endpoints until the next ETL run invalidates them.
// The TTL only bounds staleness when invalidation fails.
func DefaultCacheRoutes() map[string]CacheConfig {
	return map[string]CacheConfig{
		"/health-units": {TTLSeconds: 6 * 60 * 60, Enabled: true},
		"/medicines/":   {TTLSeconds: 6 * 60 * 60, Enabled: true},
	}
}

// CacheMiddleware provides HTTP response caching
type CacheMiddleware struct {
	cache        providers.CacheProvider
	metrics      *observability.Metrics
	routeConfigs map[string]CacheConfig
}

// NewCacheMiddleware creates a new cache middleware. A nil cache disables it.
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics, routes map[string]CacheConfig) *CacheMiddleware {
	if routes == nil {
		routes = DefaultCacheRoutes()
	}
	return &CacheMiddleware{
		cache:        cache,
		metrics:      metrics,
		routeConfigs: routes,
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		route, config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := observability.LoggerFromContext(ctx)
		cacheKey := CacheKey(r)

		if cached, err := m.cache.Get(ctx, cacheKey); err == nil {
			observability.RecordCacheHit(ctx, m.metrics, route)
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		observability.RecordCacheMiss(ctx, m.metrics, route)
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		// only full successful pages are cached; 4xx and 5xx are recomputed
		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(ctx, cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				logger.Warn().Err(err).Str("route", route).Msg("failed to cache response")
			}
		}
	})
}

func (m *CacheMiddleware) getRouteConfig(path string) (string, CacheConfig) {
	if config, exists := m.routeConfigs[path]; exists {
		return path, config
	}

	longest := ""
	for pattern := range m.routeConfigs {
		if strings.HasPrefix(path, pattern) && len(pattern) > len(longest) {
			longest = pattern
		}
	}
	if longest == "" {
		return "", CacheConfig{Enabled: false}
	}
	return longest, m.routeConfigs[longest]
}

// CacheKey derives the response cache key from method, path and the normalized query
func CacheKey(r *http.Request) string {
	key := fmt.Sprintf("%s:%s", r.Method, r.URL.Path)

	// Encode sorts by key, so ?a=1&b=2 and ?b=2&a=1 share an entry
	if query := r.URL.Query(); len(query) > 0 {
		key += "?" + query.Encode()
	}

	hash := sha256.Sum256([]byte(key))
	return providers.ResponseCacheKeyPrefix + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
