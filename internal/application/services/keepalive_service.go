package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

const keepAliveTimeout = 10 * time.Second

// KeepAliveService pings the public health endpoint so idle hosting plans do not
// put the instance to sleep
type KeepAliveService struct {
	url        string
	httpClient *http.Client
}

// NewKeepAliveService creates a pinger for url
func NewKeepAliveService(url string, httpClient *http.Client) *KeepAliveService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: keepAliveTimeout}
	}
	return &KeepAliveService{url: url, httpClient: httpClient}
}

// Ping issues one GET against the configured URL
func (s *KeepAliveService) Ping(ctx context.Context) error {
	logger := observability.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to build keep-alive request", err)
	}

	started := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("url", s.url).Msg("keep-alive ping failed")
		return apperrors.NewExternalError("keep-alive ping failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Warn().Int("status", resp.StatusCode).Str("url", s.url).Msg("keep-alive ping returned an error status")
		return apperrors.NewExternalError(fmt.Sprintf("keep-alive ping returned status %d", resp.StatusCode), nil)
	}

	logger.Debug().Int("status", resp.StatusCode).Dur("latency", time.Since(started)).Msg("keep-alive ping")
	return nil
}
