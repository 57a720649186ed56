package app

import (
	"context"
	"time"

	"github.com/saudeaberta/medstock-api/internal/application/services"
	"github.com/saudeaberta/medstock-api/internal/scheduler"
	"github.com/saudeaberta/medstock-api/pkg/config"
)

// Job names, also used as lock keys and in the admin endpoints
const (
	JobETL       = "etl"
	JobBackfill  = "backfill"
	JobKeepAlive = "keepalive"
)

// ETLRunner runs one stock refresh
type ETLRunner interface {
	Run(ctx context.Context) (*services.ETLSummary, error)
}

// BackfillRunner runs one coordinate backfill
type BackfillRunner interface {
	Run(ctx context.Context) (*services.BackfillSummary, error)
}

// Pinger pings the keep-alive URL
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobSet is what the scheduler can run. A nil KeepAlive registers no pinger.
type JobSet struct {
	ETL       ETLRunner
	Backfill  BackfillRunner
	KeepAlive Pinger
}

// Jobs returns the set built from the components
func (c *Components) Jobs() JobSet {
	set := JobSet{ETL: c.ETL, Backfill: c.Coordinates}
	if c.KeepAlive != nil {
		set.KeepAlive = c.KeepAlive
	}
	return set
}

// RegisterJobs adds the daily ETL, the daily backfill and the keep-alive pinger
func RegisterJobs(s *scheduler.Scheduler, cfg *config.Config, jobs JobSet) error {
	loc := cfg.App.Location()

	etlSchedule, err := scheduler.NewDaily(cfg.ETL.Schedule, loc)
	if err != nil {
		return err
	}
	backfillSchedule, err := scheduler.NewDaily(cfg.Backfill.Schedule, loc)
	if err != nil {
		return err
	}

	if err := s.Register(scheduler.Job{
		Name:     JobETL,
		Schedule: etlSchedule,
		Run: func(ctx context.Context) error {
			_, err := jobs.ETL.Run(ctx)
			return err
		},
		LockTTL: time.Hour,
	}); err != nil {
		return err
	}

	if err := s.Register(scheduler.Job{
		Name:     JobBackfill,
		Schedule: backfillSchedule,
		Run: func(ctx context.Context) error {
			_, err := jobs.Backfill.Run(ctx)
			return err
		},
		LockTTL: 2 * time.Hour,
	}); err != nil {
		return err
	}

	if jobs.KeepAlive == nil || cfg.KeepAlive.Interval <= 0 {
		return nil
	}
	return s.Register(scheduler.Job{
		Name:     JobKeepAlive,
		Schedule: scheduler.Interval{Every: cfg.KeepAlive.Interval},
		Run:      jobs.KeepAlive.Ping,
		LockTTL:  cfg.KeepAlive.Interval,
	})
}
