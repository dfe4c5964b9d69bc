package service

import (
	"context"
	"time"

	"medreminder/internal/domain/entity"
)

// JobScheduler arms one-shot callbacks keyed by job ID.
// Implemented by scheduler.Scheduler.
type JobScheduler interface {
	Schedule(jobID string, fireAt time.Time, cmd func()) error
	Cancel(jobID string) error
	Has(jobID string) bool
	Pending() int
	Stop()
}

// DispatchHandler is invoked once for every job that fires, with the
// medication as it was when the job was scheduled.
type DispatchHandler func(ctx context.Context, jobID string, snapshot entity.Medication) error

// SchedulerService defines the interface for scheduling operations.
type SchedulerService interface {
	// ScheduleOccurrence records a pending job for the medication's NextReminder and arms it.
	ScheduleOccurrence(ctx context.Context, medication *entity.Medication) error
	// CancelOccurrence disarms a job and marks it cancelled. A job that already fired is left alone.
	CancelOccurrence(ctx context.Context, jobID string) error
	// IsArmed reports whether a job is waiting in memory to fire.
	IsArmed(jobID string) bool
	// GetJob retrieves the durable record of a job.
	GetJob(ctx context.Context, jobID string) (*entity.ScheduledJob, error)
	// ListPendingJobs returns every job record still marked pending.
	ListPendingJobs(ctx context.Context) ([]*entity.ScheduledJob, error)
	// Stop stops the underlying scheduler and waits for running dispatches.
	Stop()
}
