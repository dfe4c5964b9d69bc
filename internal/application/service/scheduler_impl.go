package service

import (
	"context"
	"errors"
	"fmt"

	"medreminder/internal/domain/constant"
	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	"medreminder/internal/infrastructure/metrics"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"
)

type schedulerService struct {
	jobs    JobScheduler // The infrastructure scheduler
	jobRepo repository.JobRepository
	metrics *metrics.Collector
	// Set after construction; the dispatcher depends on services built after this one.
	handleDispatchFunc DispatchHandler
	log                logger.Logger
}

// NewSchedulerService creates a new instance of SchedulerService implementation.
// Note: the dispatch handler must be set with SetDispatchHandler before any job fires.
func NewSchedulerService(
	jobs JobScheduler,
	jobRepo repository.JobRepository,
	collector *metrics.Collector,
	log logger.Logger,
) SchedulerService {
	return &schedulerService{
		jobs:    jobs,
		jobRepo: jobRepo,
		metrics: collector,
		log:     log,
	}
}

// SetDispatchHandler sets the function called when a job fires.
func (s *schedulerService) SetDispatchHandler(handler DispatchHandler) {
	s.handleDispatchFunc = handler
}

// ScheduleOccurrence records a pending job for medication.CurrentJobID at
// medication.NextReminder and arms it.
func (s *schedulerService) ScheduleOccurrence(ctx context.Context, medication *entity.Medication) error {
	if s.handleDispatchFunc == nil {
		s.log.Error("Dispatch handler function is not set in SchedulerService", nil)
		return fmt.Errorf("%w: dispatch handler not set", appErrors.ErrInternalServer)
	}
	if medication.NextReminder == nil || medication.CurrentJobID == "" {
		return fmt.Errorf("%w: medication %d has no next reminder", appErrors.ErrScheduling, medication.ID)
	}

	if s.jobs.Has(medication.CurrentJobID) {
		s.log.Debug(fmt.Sprintf("Job %s is already armed.", medication.CurrentJobID))
		return nil
	}

	job := &entity.ScheduledJob{
		ID:           medication.CurrentJobID,
		MedicationID: medication.ID,
		FireAt:       *medication.NextReminder,
		Status:       constant.JobStatusPending,
	}
	if err := s.jobRepo.Put(ctx, job); err != nil {
		s.log.Error(fmt.Sprintf("Failed to record job %s for medication %d", job.ID, medication.ID), err)
		return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}

	snapshot := *medication
	jobID := job.ID
	err := s.jobs.Schedule(jobID, job.FireAt, func() {
		s.fire(jobID, snapshot)
	})
	if err != nil {
		// Leave no pending record behind for a job that was never armed.
		if _, markErr := s.jobRepo.MarkCancelled(ctx, jobID); markErr != nil {
			s.log.Error(fmt.Sprintf("Failed to roll back job record %s", jobID), markErr)
		}
		return fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}

	s.metrics.RecordScheduled()
	s.metrics.SetPending(s.jobs.Pending())
	s.log.Info(fmt.Sprintf("Scheduled reminder for medication %d at %v (Job ID: %s)", medication.ID, job.FireAt, jobID))
	return nil
}

// fire runs on the scheduler's goroutine for the job.
func (s *schedulerService) fire(jobID string, snapshot entity.Medication) {
	ctx := context.Background()
	s.metrics.SetPending(s.jobs.Pending())

	fired, err := s.jobRepo.MarkFired(ctx, jobID)
	if err != nil {
		// The in-memory claim already happened; dispatch rather than lose the occurrence.
		s.log.Error(fmt.Sprintf("Failed to mark job %s as fired", jobID), err)
	} else if !fired {
		s.log.Warn(fmt.Sprintf("Job %s is no longer pending, skipping dispatch.", jobID))
		return
	}
	s.metrics.RecordFired()

	s.log.Info(fmt.Sprintf("Executing reminder job %s for medication %d", jobID, snapshot.ID))
	if err := s.handleDispatchFunc(ctx, jobID, snapshot); err != nil {
		s.log.Error(fmt.Sprintf("Error dispatching reminder job %s", jobID), err)
	}
}

// CancelOccurrence disarms a job and marks its record cancelled. Cancelling an
// unknown or already-fired job is a no-op.
func (s *schedulerService) CancelOccurrence(ctx context.Context, jobID string) error {
	if jobID == "" {
		return nil
	}

	if err := s.jobs.Cancel(jobID); err != nil && !errors.Is(err, appErrors.ErrJobNotFound) {
		return fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}

	cancelled, err := s.jobRepo.MarkCancelled(ctx, jobID)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to mark job %s as cancelled", jobID), err)
		return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	s.metrics.SetPending(s.jobs.Pending())

	if cancelled {
		s.metrics.RecordCancelled()
		s.log.Info(fmt.Sprintf("Cancelled reminder job %s", jobID))
	} else {
		s.log.Debug(fmt.Sprintf("No pending job %s to cancel.", jobID))
	}
	return nil
}

// IsArmed reports whether a job is waiting in memory to fire.
func (s *schedulerService) IsArmed(jobID string) bool {
	return s.jobs.Has(jobID)
}

// GetJob retrieves the durable record of a job.
func (s *schedulerService) GetJob(ctx context.Context, jobID string) (*entity.ScheduledJob, error) {
	job, err := s.jobRepo.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, appErrors.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	return job, nil
}

// ListPendingJobs returns every job record still marked pending.
func (s *schedulerService) ListPendingJobs(ctx context.Context) ([]*entity.ScheduledJob, error) {
	jobs, err := s.jobRepo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	return jobs, nil
}

// Stop stops the underlying scheduler.
func (s *schedulerService) Stop() {
	s.jobs.Stop()
	s.metrics.SetPending(0)
}
