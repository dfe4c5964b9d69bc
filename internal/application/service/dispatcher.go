package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	"medreminder/internal/infrastructure/metrics"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/jonboulle/clockwork"
)

const (
	reminderTitle      = "Medication Reminder"
	defaultSendTimeout = 10 * time.Second
)

// Notifier delivers one notification to a target.
type Notifier interface {
	Send(ctx context.Context, target, title, body string) error
}

// DispatchConfig bounds the delivery of a single reminder.
type DispatchConfig struct {
	SendTimeout  time.Duration // Per attempt
	MaxAttempts  int
	RetryBackoff time.Duration
}

// RearmFunc schedules the occurrence after firedJobID for a medication.
type RearmFunc func(ctx context.Context, medicationID uint, firedJobID string) error

// ReminderDispatcher sends the notification for a fired job and hands the
// medication back for re-arming.
type ReminderDispatcher struct {
	medicationRepo repository.MedicationRepository
	jobRepo        repository.JobRepository
	userSvc        UserService
	notifier       Notifier
	metrics        *metrics.Collector
	clock          clockwork.Clock
	cfg            DispatchConfig
	log            logger.Logger

	rearm RearmFunc
}

// NewReminderDispatcher creates a new ReminderDispatcher.
func NewReminderDispatcher(
	medicationRepo repository.MedicationRepository,
	jobRepo repository.JobRepository,
	userSvc UserService,
	notifier Notifier,
	collector *metrics.Collector,
	clock clockwork.Clock,
	cfg DispatchConfig,
	log logger.Logger,
) *ReminderDispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &ReminderDispatcher{
		medicationRepo: medicationRepo,
		jobRepo:        jobRepo,
		userSvc:        userSvc,
		notifier:       notifier,
		metrics:        collector,
		clock:          clock,
		cfg:            cfg,
		log:            log,
	}
}

// SetRearmHandler sets the function called after every dispatch.
func (d *ReminderDispatcher) SetRearmHandler(fn RearmFunc) {
	d.rearm = fn
}

// Dispatch sends the reminder for a fired job. The medication is re-read for
// fresh content; the snapshot is used when the read fails. Re-arming runs
// whether or not delivery succeeded.
func (d *ReminderDispatcher) Dispatch(ctx context.Context, jobID string, snapshot entity.Medication) error {
	medication := &snapshot
	fresh, err := d.medicationRepo.FindByID(ctx, snapshot.ID)
	switch {
	case errors.Is(err, appErrors.ErrMedicationNotFound):
		d.log.Warn(fmt.Sprintf("Medication %d not found while dispatching job %s (already deleted?)", snapshot.ID, jobID))
		return nil
	case err != nil:
		d.log.Warn(fmt.Sprintf("Failed to reload medication %d for job %s, using scheduled snapshot: %v", snapshot.ID, jobID, err))
	default:
		medication = fresh
	}

	deliveryErr := d.deliver(ctx, jobID, medication)

	if d.rearm != nil {
		if err := d.rearm(ctx, medication.ID, jobID); err != nil {
			d.log.Error(fmt.Sprintf("Failed to re-arm medication %d after job %s", medication.ID, jobID), err)
		}
	}
	return deliveryErr
}

func (d *ReminderDispatcher) deliver(ctx context.Context, jobID string, medication *entity.Medication) error {
	start := d.clock.Now()
	var (
		attempts    int
		deliveryErr error
	)

	target := d.resolveTarget(ctx, medication)
	if target == "" {
		deliveryErr = fmt.Errorf("%w: no notification target for medication %d", appErrors.ErrDelivery, medication.ID)
	} else {
		body := fmt.Sprintf("It's time to take your medication '%s' with dosage '%s'.", medication.Name, medication.Dosage)
		attempts, deliveryErr = d.send(ctx, target, reminderTitle, body)
	}
	d.metrics.RecordDelivery(deliveryErr == nil, d.clock.Since(start).Seconds())

	lastError := ""
	if deliveryErr != nil {
		lastError = deliveryErr.Error()
		d.log.Error(fmt.Sprintf("Failed to deliver reminder for medication %d (job %s) after %d attempt(s)", medication.ID, jobID, attempts), deliveryErr)
	} else {
		d.log.Info(fmt.Sprintf("Delivered reminder for medication %d (job %s)", medication.ID, jobID))
	}
	if err := d.jobRepo.RecordDelivery(ctx, jobID, attempts, lastError); err != nil {
		d.log.Error(fmt.Sprintf("Failed to record delivery outcome for job %s", jobID), err)
	}
	return deliveryErr
}

// resolveTarget falls back to the owner's default target.
func (d *ReminderDispatcher) resolveTarget(ctx context.Context, medication *entity.Medication) string {
	if medication.NotificationTarget != "" {
		return medication.NotificationTarget
	}
	user, err := d.userSvc.GetUser(ctx, medication.UserID)
	if err != nil {
		d.log.Warn(fmt.Sprintf("Failed to look up owner %s of medication %d: %v", medication.UserID, medication.ID, err))
		return ""
	}
	return user.NotificationTarget
}

// send makes up to MaxAttempts bounded attempts and returns how many were made.
func (d *ReminderDispatcher) send(ctx context.Context, target, title, body string) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		err := d.notifier.Send(sendCtx, target, title, body)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if attempt == d.cfg.MaxAttempts {
			break
		}

		d.log.Warn(fmt.Sprintf("Notification attempt %d/%d to %s failed: %v", attempt, d.cfg.MaxAttempts, target, err))
		select {
		case <-ctx.Done():
			return attempt, fmt.Errorf("%w: %v", appErrors.ErrDelivery, ctx.Err())
		case <-d.clock.After(d.cfg.RetryBackoff):
		}
	}
	return d.cfg.MaxAttempts, fmt.Errorf("%w: %v", appErrors.ErrDelivery, lastErr)
}
