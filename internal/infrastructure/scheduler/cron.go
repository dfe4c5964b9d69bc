package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler runs one-shot jobs keyed by job ID on a robfig/cron run loop.
// Each job fires at most once, at or after its instant, on its own goroutine.
type Scheduler struct {
	cron    *cron.Cron
	log     logger.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	paused  bool
	stopped bool
}

// NewScheduler creates a scheduler evaluating instants in loc. Call Start to run it.
func NewScheduler(log logger.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return &Scheduler{
		cron:    c,
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the run loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Reminder scheduler started.")
}

// onceSchedule yields its instant on the first call and never again.
// robfig/cron asks for Next once when the entry is armed and once after it runs.
type onceSchedule struct {
	at   time.Time
	mu   sync.Mutex
	used bool
}

func (o *onceSchedule) Next(time.Time) time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.used {
		return time.Time{}
	}
	o.used = true
	return o.at
}

// Schedule arms cmd to run at fireAt. A fireAt in the past runs on the next
// pass of the run loop.
func (s *Scheduler) Schedule(jobID string, fireAt time.Time, cmd func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return appErrors.ErrSchedulerStopped
	}
	if _, exists := s.entries[jobID]; exists {
		return fmt.Errorf("%w: %s", appErrors.ErrDuplicateJob, jobID)
	}

	entryID := s.cron.Schedule(&onceSchedule{at: fireAt}, cron.FuncJob(func() {
		s.run(jobID, cmd)
	}))
	s.entries[jobID] = entryID
	s.log.Debug(fmt.Sprintf("Armed job %s at %v (entry %d)", jobID, fireAt, entryID))
	return nil
}

// run claims the job before invoking cmd, so a job races either to Cancel or to
// cmd but never both.
func (s *Scheduler) run(jobID string, cmd func()) {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	if !ok || s.paused || s.stopped {
		s.mu.Unlock()
		if ok {
			s.log.Debug(fmt.Sprintf("Job %s came due while paused; left pending", jobID))
		}
		return
	}
	delete(s.entries, jobID)
	s.mu.Unlock()

	s.cron.Remove(entryID)
	cmd()
}

// Cancel disarms a job that has not fired yet.
// Returns ErrJobNotFound if the job is unknown or has already fired.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", appErrors.ErrJobNotFound, jobID)
	}
	delete(s.entries, jobID)
	s.mu.Unlock()

	s.cron.Remove(entryID)
	s.log.Debug(fmt.Sprintf("Disarmed job %s (entry %d)", jobID, entryID))
	return nil
}

// Has reports whether a job is armed and has not fired.
func (s *Scheduler) Has(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[jobID]
	return ok
}

// Pending returns the number of armed jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Pause stops firing due jobs while still accepting Schedule and Cancel.
// Jobs that come due while paused stay armed and never run in this process.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		s.paused = true
		s.log.Info("Reminder scheduler paused.")
	}
}

// Stop refuses new jobs, stops firing armed ones and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.paused = true
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done() // Wait for running jobs to complete
	s.log.Info("Reminder scheduler stopped.")
}

// cronLogger routes robfig/cron's own logging, recovered job panics included,
// into the application logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: " + msg + formatKeysAndValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg+formatKeysAndValues(keysAndValues), err)
}

func formatKeysAndValues(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, " %v", kv[i])
		}
	}
	return b.String()
}
