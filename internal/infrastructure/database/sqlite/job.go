package sqlite

import (
	"context"
	"errors"
	"fmt"
	"medreminder/internal/domain/constant"
	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	appErrors "medreminder/internal/pkg/errors"

	"gorm.io/gorm"
)

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a gorm-backed store of scheduled jobs.
func NewJobRepository(db *gorm.DB) repository.JobRepository {
	return &jobRepository{db: db}
}

// Put inserts the job or replaces the existing record with the same ID.
func (r *jobRepository) Put(ctx context.Context, job *entity.ScheduledJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("🔴 ERROR: failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// Get retrieves a job by its ID.
func (r *jobRepository) Get(ctx context.Context, id string) (*entity.ScheduledJob, error) {
	var job entity.ScheduledJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, appErrors.ErrJobNotFound)
		}
		return nil, fmt.Errorf("🔴 ERROR: failed to find job %s: %w", id, err)
	}
	return &job, nil
}

// MarkFired moves a pending job to fired.
func (r *jobRepository) MarkFired(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, constant.JobStatusFired)
}

// MarkCancelled moves a pending job to cancelled.
func (r *jobRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	return r.transition(ctx, id, constant.JobStatusCancelled)
}

func (r *jobRepository) transition(ctx context.Context, id string, to constant.JobStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.ScheduledJob{}).
		Where("id = ? AND status = ?", id, constant.JobStatusPending).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("🔴 ERROR: failed to mark job %s as %s: %w", id, to, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// RecordDelivery stores the notification outcome for a job.
func (r *jobRepository) RecordDelivery(ctx context.Context, id string, attempts int, deliveryErr string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.ScheduledJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"attempts": attempts, "last_error": deliveryErr})
	if result.Error != nil {
		return fmt.Errorf("🔴 ERROR: failed to record delivery for job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s: %w", id, appErrors.ErrJobNotFound)
	}
	return nil
}

// ListPending returns all pending jobs ordered by fire time.
func (r *jobRepository) ListPending(ctx context.Context) ([]*entity.ScheduledJob, error) {
	var jobs []*entity.ScheduledJob
	if err := r.db.WithContext(ctx).Where("status = ?", constant.JobStatusPending).Order("fire_at asc").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("🔴 ERROR: failed to list pending jobs: %w", err)
	}
	return jobs, nil
}
