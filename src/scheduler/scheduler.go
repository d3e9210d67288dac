// Package scheduler runs the periodic jobs of the service on robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"market-analytics/src/logger"
)

// Job is one unit of periodic work. It must honour ctx.
type Job func(ctx context.Context)

// Scheduler manages the cron tasks. Overlapping runs of the same job are
// skipped.
type Scheduler struct {
	Cron   *cron.Cron
	Logger *logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID
	jobs    map[string]Job
}

// cronLogger adapts logger.Logger to cron's Printf logger.
type cronLogger struct{ l *logger.Logger }

func (c cronLogger) Printf(format string, args ...interface{}) {
	c.l.Debug(format, args...)
}

// -----------------------------------------------------------------------------

func NewScheduler(ctx context.Context, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	log = log.Named("Scheduler")
	cl := cron.PrintfLogger(cronLogger{log})
	ctx, cancel := context.WithCancel(ctx)

	return &Scheduler{
		Cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
		jobs:    make(map[string]Job),
	}
}

// -----------------------------------------------------------------------------

// Register adds a named job. spec is a cron expression or descriptor such as
// "@every 5m" or "@daily". Registering an existing name replaces it.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.Cron.AddFunc(spec, func() {
		s.Logger.Debug("Running job %s", name)
		job(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}

	if old, ok := s.entries[name]; ok {
		s.Cron.Remove(old)
	}
	s.entries[name] = id
	s.jobs[name] = job
	s.Logger.Info("Registered job %s (%s)", name, spec)
	return nil
}

// -----------------------------------------------------------------------------

// Every registers job at a fixed interval, e.g. "5m".
func (s *Scheduler) Every(name, interval string, job Job) error {
	return s.Register(name, "@every "+interval, job)
}

// -----------------------------------------------------------------------------

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	job(s.ctx)
	return nil
}

// -----------------------------------------------------------------------------

func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// -----------------------------------------------------------------------------

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("Scheduler started")
}

// -----------------------------------------------------------------------------

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.Cron.Stop().Done()
	s.Logger.Info("Scheduler stopped")
}
