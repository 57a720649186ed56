package supervisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// TreeConfig holds supervisor tree configuration
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds
	FailureDecay float64
	// FailureBackoff is how long to wait once the threshold is exceeded
	FailureBackoff time.Duration
	// ShutdownTimeout bounds graceful shutdown of each service
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's defaults
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree supervises the long-running parts of the API process in two layers:
// "api" for the HTTP server and "jobs" for the scheduler. A crashing scheduler is
// restarted without taking the HTTP server down.
type Tree struct {
	root   *suture.Supervisor
	api    *suture.Supervisor
	jobs   *suture.Supervisor
	config TreeConfig
}

// NewTree creates the supervisor tree. Zero config fields take the defaults.
func NewTree(logger *zerolog.Logger, config TreeConfig) *Tree {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = eventHook(logger)

	root := suture.New("medstock-api", rootSpec)
	api := suture.New("api-layer", childSpec)
	jobs := suture.New("jobs-layer", childSpec)
	root.Add(api)
	root.Add(jobs)

	return &Tree{root: root, api: api, jobs: jobs, config: config}
}

// AddAPIService adds a service to the API layer
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// AddJobService adds a service to the jobs layer
func (t *Tree) AddJobService(svc suture.Service) suture.ServiceToken {
	return t.jobs.Add(svc)
}

// Serve runs the tree until ctx is canceled
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func eventHook(logger *zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		logger.Warn().Fields(e.Map()).Msg(e.String())
	}
}
