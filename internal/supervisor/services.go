package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches the lifecycle methods of *http.Server
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server as a supervised service
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. shutdownTimeout bounds connection draining.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}

// JobScheduler matches the lifecycle methods of *scheduler.Scheduler
type JobScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService runs the job scheduler as a supervised service
type SchedulerService struct {
	scheduler JobScheduler
}

// NewSchedulerService wraps scheduler
func NewSchedulerService(scheduler JobScheduler) *SchedulerService {
	return &SchedulerService{scheduler: scheduler}
}

// Serve implements suture.Service. It blocks until ctx is canceled, then waits for
// in-flight job runs.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}
	<-ctx.Done()
	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SchedulerService) String() string {
	return "job-scheduler"
}
