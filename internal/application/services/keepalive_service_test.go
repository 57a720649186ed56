package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudeaberta/medstock-api/internal/application/services"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

func TestKeepAliveService_Ping(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"Healthy"}`))
	}))
	defer server.Close()

	svc := services.NewKeepAliveService(server.URL+"/health", server.Client())
	require.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestKeepAliveService_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := services.NewKeepAliveService(server.URL, server.Client()).Ping(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestCacheInvalidationService(t *testing.T) {
	cache := NewMockCacheProvider()
	require.NoError(t, services.NewCacheInvalidationService(cache).InvalidateResponses(context.Background()))
	assert.Equal(t, []string{"http:cache:*"}, cache.DeletedPatterns())

	// a nil cache disables invalidation
	require.NoError(t, services.NewCacheInvalidationService(nil).InvalidateResponses(context.Background()))
}
