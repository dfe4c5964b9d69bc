package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	"medreminder/internal/infrastructure/database/sqlite"
	"medreminder/internal/infrastructure/metrics"
	"medreminder/internal/pkg/config"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// fakeJobScheduler arms jobs in memory and fires them only when the test says so.
type fakeJobScheduler struct {
	mu      sync.Mutex
	jobs    map[string]fakeJob
	stopped bool
}

type fakeJob struct {
	fireAt time.Time
	cmd    func()
}

func newFakeJobScheduler() *fakeJobScheduler {
	return &fakeJobScheduler{jobs: make(map[string]fakeJob)}
}

func (f *fakeJobScheduler) Schedule(jobID string, fireAt time.Time, cmd func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return appErrors.ErrSchedulerStopped
	}
	if _, ok := f.jobs[jobID]; ok {
		return fmt.Errorf("%w: %s", appErrors.ErrDuplicateJob, jobID)
	}
	f.jobs[jobID] = fakeJob{fireAt: fireAt, cmd: cmd}
	return nil
}

func (f *fakeJobScheduler) Cancel(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; !ok {
		return fmt.Errorf("%w: %s", appErrors.ErrJobNotFound, jobID)
	}
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeJobScheduler) Has(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[jobID]
	return ok
}

func (f *fakeJobScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func (f *fakeJobScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// Fire claims the job and runs it on the caller's goroutine.
func (f *fakeJobScheduler) Fire(t *testing.T, jobID string) {
	t.Helper()
	f.mu.Lock()
	job, ok := f.jobs[jobID]
	delete(f.jobs, jobID)
	f.mu.Unlock()
	require.True(t, ok, "job %s is not armed", jobID)
	job.cmd()
}

func (f *fakeJobScheduler) armed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type sentMessage struct {
	target string
	title  string
	body   string
}

// fakeNotifier records messages. The first failures sends fail; failAlways fails every send.
type fakeNotifier struct {
	mu         sync.Mutex
	sent       []sentMessage
	calls      int
	failures   int
	failAlways bool
}

func (n *fakeNotifier) Send(ctx context.Context, target, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.failAlways || n.failures > 0 {
		n.failures--
		return errors.New("push service unavailable")
	}
	n.sent = append(n.sent, sentMessage{target: target, title: title, body: body})
	return nil
}

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

func (n *fakeNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// blockingNotifier blocks every send until released or until its context ends.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (n *blockingNotifier) Send(ctx context.Context, target, title, body string) error {
	n.entered <- struct{}{}
	select {
	case <-n.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fakeClock is the part of clockwork's fake clock the tests drive.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type testEnv struct {
	clock      fakeClock
	jobs       *fakeJobScheduler
	medRepo    repository.MedicationRepository
	jobRepo    repository.JobRepository
	userRepo   repository.UserRepository
	collector  *metrics.Collector
	scheduler  SchedulerService
	dispatcher *ReminderDispatcher
	users      UserService
	svc        MedicationService
}

var testDispatchConfig = DispatchConfig{
	SendTimeout:  time.Second,
	MaxAttempts:  2,
	RetryBackoff: time.Millisecond,
}

func newTestEnv(t *testing.T, now time.Time, notifier Notifier) *testEnv {
	t.Helper()

	db, err := sqlite.NewDB(config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.CloseDB(db) })

	log := logger.New("error")
	env := &testEnv{
		clock:     clockwork.NewFakeClockAt(now),
		jobs:      newFakeJobScheduler(),
		medRepo:   sqlite.NewMedicationRepository(db),
		jobRepo:   sqlite.NewJobRepository(db),
		userRepo:  sqlite.NewUserRepository(db),
		collector: metrics.NewCollector(prometheus.NewRegistry()),
	}
	env.users = NewUserService(env.userRepo, log)
	env.scheduler = NewSchedulerService(env.jobs, env.jobRepo, env.collector, log)
	// Backoff waits use the real clock so retries do not need the fake clock advanced.
	env.dispatcher = NewReminderDispatcher(env.medRepo, env.jobRepo, env.users, notifier, env.collector, clockwork.NewRealClock(), testDispatchConfig, log)
	env.svc = NewMedicationService(env.medRepo, env.scheduler, env.dispatcher, env.clock, time.UTC, log)
	return env
}

func (e *testEnv) pendingJobs(t *testing.T, medicationID uint) []*entity.ScheduledJob {
	t.Helper()
	jobs, err := e.jobRepo.ListPending(context.Background())
	require.NoError(t, err)
	var out []*entity.ScheduledJob
	for _, job := range jobs {
		if job.MedicationID == medicationID {
			out = append(out, job)
		}
	}
	return out
}

func (e *testEnv) medication(t *testing.T, id uint) *entity.Medication {
	t.Helper()
	medication, err := e.medRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return medication
}

func utc(value string) time.Time {
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return ts
}

func strPtr(s string) *string { return &s }
