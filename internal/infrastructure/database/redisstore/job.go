// Package redisstore keeps scheduled job records in Redis, as an alternative
// to the SQL job table.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"medreminder/internal/domain/constant"
	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	appErrors "medreminder/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix = "medreminder:job:"
	pendingKey   = "medreminder:jobs:pending" // sorted set of pending job ids scored by fire time
)

// transitionScript moves a job out of ARGV[1] only if it is still in that status.
var transitionScript = redis.NewScript(`
	if redis.call("hget", KEYS[1], "status") == ARGV[1] then
		redis.call("hset", KEYS[1], "status", ARGV[2], "updated_at", ARGV[3])
		redis.call("zrem", KEYS[2], ARGV[4])
		return 1
	else
		return 0
	end
`)

type jobRepository struct {
	client *redis.Client
}

// NewClient connects to Redis from a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewJobRepository creates a Redis-backed store of scheduled jobs.
func NewJobRepository(client *redis.Client) repository.JobRepository {
	return &jobRepository{client: client}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Put inserts or replaces a job record.
func (r *jobRepository) Put(ctx context.Context, job *entity.ScheduledJob) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	key := jobKey(job.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"id":            job.ID,
			"medication_id": strconv.FormatUint(uint64(job.MedicationID), 10),
			"fire_at":       job.FireAt.Format(time.RFC3339Nano),
			"status":        job.Status.String(),
			"attempts":      strconv.Itoa(job.Attempts),
			"last_error":    job.LastError,
			"created_at":    job.CreatedAt.Format(time.RFC3339Nano),
			"updated_at":    job.UpdatedAt.Format(time.RFC3339Nano),
		})
		if job.Status == constant.JobStatusPending {
			pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(job.FireAt.Unix()), Member: job.ID})
		} else {
			pipe.ZRem(ctx, pendingKey, job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to save job %s: %v", appErrors.ErrDatabaseOperation, job.ID, err)
	}
	return nil
}

// Get retrieves a job by its ID.
func (r *jobRepository) Get(ctx context.Context, id string) (*entity.ScheduledJob, error) {
	fields, err := r.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get job %s: %v", appErrors.ErrDatabaseOperation, id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, appErrors.ErrJobNotFound)
	}
	return decodeJob(fields)
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
	moved, err := transitionScript.Run(ctx, r.client,
		[]string{jobKey(id), pendingKey},
		constant.JobStatusPending.String(), to.String(), time.Now().Format(time.RFC3339Nano), id,
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: failed to mark job %s as %s: %v", appErrors.ErrDatabaseOperation, id, to, err)
	}
	return moved == 1, nil
}

// RecordDelivery stores the notification outcome for a job.
func (r *jobRepository) RecordDelivery(ctx context.Context, id string, attempts int, deliveryErr string) error {
	key := jobKey(id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: failed to record delivery for job %s: %v", appErrors.ErrDatabaseOperation, id, err)
	}
	if exists == 0 {
		return fmt.Errorf("job %s: %w", id, appErrors.ErrJobNotFound)
	}
	err = r.client.HSet(ctx, key,
		"attempts", strconv.Itoa(attempts),
		"last_error", deliveryErr,
		"updated_at", time.Now().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: failed to record delivery for job %s: %v", appErrors.ErrDatabaseOperation, id, err)
	}
	return nil
}

// ListPending returns all pending jobs ordered by fire time.
func (r *jobRepository) ListPending(ctx context.Context) ([]*entity.ScheduledJob, error) {
	ids, err := r.client.ZRange(ctx, pendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list pending jobs: %v", appErrors.ErrDatabaseOperation, err)
	}
	jobs := make([]*entity.ScheduledJob, 0, len(ids))
	for _, id := range ids {
		job, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func decodeJob(fields map[string]string) (*entity.ScheduledJob, error) {
	medicationID, err := strconv.ParseUint(fields["medication_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt medication_id for job %s: %v", appErrors.ErrDatabaseOperation, fields["id"], err)
	}
	fireAt, err := time.Parse(time.RFC3339Nano, fields["fire_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt fire_at for job %s: %v", appErrors.ErrDatabaseOperation, fields["id"], err)
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])

	return &entity.ScheduledJob{
		ID:           fields["id"],
		MedicationID: uint(medicationID),
		FireAt:       fireAt,
		Status:       constant.JobStatus(fields["status"]),
		Attempts:     attempts,
		LastError:    fields["last_error"],
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}
