// Package scheduler runs the named periodic jobs: price updates, news
// ingestion, enrichment sweeps, outcome analysis and the trading cycles.
// Jobs never overlap with themselves; a tick that finds the previous run
// still going is skipped and logged.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one schedulable unit of work. It must honor ctx cancellation
// and stop at the next safe point on shutdown.
type JobFunc func(ctx context.Context) error

// Job pairs a cron spec with its work.
type Job struct {
	Name string
	Spec string
	Run  JobFunc
}

type jobState struct {
	job     Job
	running atomic.Bool
	runs    atomic.Int64
	skips   atomic.Int64
}

// Scheduler is a cooperative single-process cron dispatcher.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu     sync.Mutex
	jobs   map[string]*jobState
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. Specs use the standard five-field cron format.
func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: log,
		jobs:   make(map[string]*jobState),
	}
}

// Add registers a job. Duplicate names and invalid specs are errors.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	state := &jobState{job: job}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.dispatch(state) }); err != nil {
		return fmt.Errorf("registering job %q: %w", job.Name, err)
	}
	s.jobs[job.Name] = state

	s.logger.Info("job registered", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

// dispatch runs one tick of a job under the non-overlap guard.
func (s *Scheduler) dispatch(state *jobState) {
	if !state.running.CompareAndSwap(false, true) {
		state.skips.Add(1)
		s.logger.Warn("job still running, tick skipped", zap.String("job", state.job.Name))
		return
	}
	defer state.running.Store(false)

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		// RunNow before Start (one-shot CLI use).
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	state.runs.Add(1)
	log := s.logger.With(zap.String("job", state.job.Name))
	log.Debug("job started")
	if err := state.job.Run(ctx); err != nil {
		log.Error("job failed", zap.Error(err))
		return
	}
	log.Debug("job finished")
}

// RunNow triggers one job outside its schedule, under the same guard.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	state, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.dispatch(state)
	return nil
}

// Start begins dispatching ticks until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop cancels in-flight jobs and waits for the dispatcher to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Stats reports per-job run and skip counters.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobStats, len(s.jobs))
	for name, st := range s.jobs {
		out[name] = JobStats{
			Runs:    st.runs.Load(),
			Skips:   st.skips.Load(),
			Running: st.running.Load(),
		}
	}
	return out
}

// JobStats are the counters for one job.
type JobStats struct {
	Runs    int64
	Skips   int64
	Running bool
}
