package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

var (
	// ErrJobRunning is returned when a run is requested while the job is still running
	ErrJobRunning = errors.New("job already running")
	// ErrJobLocked is returned when another replica holds the job's lock
	ErrJobLocked = errors.New("job locked by another instance")
	// ErrUnknownJob is returned for a name that was never registered
	ErrUnknownJob = errors.New("unknown job")
)

// defaultLockTTL bounds how long a crashed replica can block a job
const defaultLockTTL = 30 * time.Minute

// JobFunc is the work a job performs
type JobFunc func(ctx context.Context) error

// Job is a named unit of work fired on a schedule
type Job struct {
	Name     string
	Schedule Schedule
	Run      JobFunc
	// LockTTL is the lease taken on the shared lock while the job runs
	LockTTL time.Duration
}

// JobStatus is a snapshot of one job
type JobStatus struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	NextRun      *time.Time `json:"nextRun,omitempty"`
	LastStarted  *time.Time `json:"lastStarted,omitempty"`
	LastFinished *time.Time `json:"lastFinished,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	Runs         int64      `json:"runs"`
	Skipped      int64      `json:"skipped"`
}

type jobState struct {
	job     Job
	running atomic.Bool

	// guarded by Scheduler.mu
	nextRun      time.Time
	lastStarted  time.Time
	lastFinished time.Time
	lastError    string
	runs         int64
	skipped      int64
}

// Scheduler fires registered jobs on their schedules. A job never overlaps itself:
// a firing that finds it running is skipped. With a JobLock the guarantee extends
// across every replica sharing the lock.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*jobState
	lock    providers.JobLock
	logger  zerolog.Logger
	now     func() time.Time
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler. lock may be nil for single-instance deployments.
func New(lock providers.JobLock, logger *zerolog.Logger) *Scheduler {
	if logger == nil {
		logger = observability.GetLogger()
	}
	return &Scheduler{
		jobs:    make(map[string]*jobState),
		lock:    lock,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
		baseCtx: context.Background(),
	}
}

// Register adds a job. Names must be unique.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Schedule == nil {
		return fmt.Errorf("job needs a name, a schedule and a run function")
	}
	if job.LockTTL <= 0 {
		job.LockTTL = defaultLockTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	s.jobs[job.Name] = &jobState{job: job}
	return nil
}

// Start launches one timer loop per job. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already running")
	}
	s.started = true
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	for _, st := range s.jobs {
		s.wg.Add(1)
		go s.loop(s.baseCtx, st)
		s.logger.Info().Str("job", st.job.Name).Str("schedule", st.job.Schedule.String()).Msg("job scheduled")
	}
	return nil
}

// Stop cancels the timer loops and waits for in-flight runs to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// Run executes the named job now and waits for it
func (s *Scheduler) Run(ctx context.Context, name string) error {
	st, err := s.get(name)
	if err != nil {
		return err
	}
	return s.execute(ctx, st)
}

// Trigger starts the named job in the background. It fails fast with ErrUnknownJob
// or ErrJobRunning; a lock held by another replica is only reported in the logs.
func (s *Scheduler) Trigger(name string) error {
	st, err := s.get(name)
	if err != nil {
		return err
	}
	if st.running.Load() {
		return ErrJobRunning
	}

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.execute(ctx, st)
	}()
	return nil
}

// Status returns a snapshot of every job, ordered by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, st := range s.jobs {
		out = append(out, JobStatus{
			Name:         st.job.Name,
			Schedule:     st.job.Schedule.String(),
			Running:      st.running.Load(),
			NextRun:      timePtr(st.nextRun),
			LastStarted:  timePtr(st.lastStarted),
			LastFinished: timePtr(st.lastFinished),
			LastError:    st.lastError,
			Runs:         st.runs,
			Skipped:      st.skipped,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) get(name string) (*jobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return st, nil
}

func (s *Scheduler) loop(ctx context.Context, st *jobState) {
	defer s.wg.Done()

	for {
		now := s.now()
		next := st.job.Schedule.Next(now)
		s.mu.Lock()
		st.nextRun = next
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		_ = s.execute(ctx, st)
	}
}

func (s *Scheduler) execute(ctx context.Context, st *jobState) (err error) {
	logger := s.logger.With().Str("job", st.job.Name).Logger()

	if !st.running.CompareAndSwap(false, true) {
		s.markSkipped(st)
		logger.Warn().Msg("job still running, skipping this trigger")
		return ErrJobRunning
	}
	defer st.running.Store(false)

	if s.lock != nil {
		release, ok, lockErr := s.lock.Acquire(ctx, st.job.Name, st.job.LockTTL)
		switch {
		case lockErr != nil:
			logger.Warn().Err(lockErr).Msg("job lock unavailable, running with the local guard only")
		case !ok:
			s.markSkipped(st)
			logger.Info().Msg("job running on another instance, skipping")
			return ErrJobLocked
		default:
			defer func() {
				if relErr := release(context.Background()); relErr != nil {
					logger.Warn().Err(relErr).Msg("failed to release job lock")
				}
			}()
		}
	}

	started := s.now()
	s.mu.Lock()
	st.lastStarted = started
	st.runs++
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		s.mu.Lock()
		st.lastFinished = s.now()
		st.lastError = ""
		if err != nil {
			st.lastError = err.Error()
		}
		s.mu.Unlock()

		if err != nil {
			logger.Error().Err(err).Dur("duration", time.Since(started)).Msg("job failed")
		} else {
			logger.Info().Dur("duration", time.Since(started)).Msg("job finished")
		}
	}()

	logger.Info().Msg("job started")
	return st.job.Run(observability.ContextWithLogger(ctx, logger))
}

func (s *Scheduler) markSkipped(st *jobState) {
	s.mu.Lock()
	st.skipped++
	s.mu.Unlock()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
