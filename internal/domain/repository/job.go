package repository

import (
	"context"
	"medreminder/internal/domain/entity"
)

// JobRepository is the durable store of scheduled reminder jobs.
// Status transitions are conditional: only a pending job can become fired or cancelled.
type JobRepository interface {
	// Put inserts or replaces a job record.
	Put(ctx context.Context, job *entity.ScheduledJob) error
	// Get retrieves a job by its ID.
	Get(ctx context.Context, id string) (*entity.ScheduledJob, error)
	// MarkFired moves a pending job to fired. Returns false if the job was not pending.
	MarkFired(ctx context.Context, id string) (bool, error)
	// MarkCancelled moves a pending job to cancelled. Returns false if the job was not pending.
	MarkCancelled(ctx context.Context, id string) (bool, error)
	// RecordDelivery stores the outcome of the notification for a fired job.
	RecordDelivery(ctx context.Context, id string, attempts int, deliveryErr string) error
	// ListPending returns all pending jobs ordered by fire time.
	ListPending(ctx context.Context) ([]*entity.ScheduledJob, error)
}
