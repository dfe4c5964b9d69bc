package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medreminder/internal/application/dto"
	"medreminder/internal/domain/constant"
	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/frequency"
	"medreminder/internal/domain/repository"
	appErrors "medreminder/internal/pkg/errors"
	"medreminder/internal/pkg/logger"

	"github.com/jonboulle/clockwork"
)

type medicationService struct {
	medicationRepo repository.MedicationRepository
	schedulerSvc   SchedulerService
	locks          *keyedMutex
	clock          clockwork.Clock
	loc            *time.Location
	log            logger.Logger
}

// NewMedicationService creates a new instance of MedicationService implementation
// and wires the fire path: scheduler -> dispatcher -> re-arm.
func NewMedicationService(
	medicationRepo repository.MedicationRepository,
	schedulerSvc SchedulerService,
	dispatcher *ReminderDispatcher,
	clock clockwork.Clock,
	loc *time.Location,
	log logger.Logger,
) MedicationService {
	if loc == nil {
		loc = time.Local
	}
	ms := &medicationService{
		medicationRepo: medicationRepo,
		schedulerSvc:   schedulerSvc,
		locks:          newKeyedMutex(),
		clock:          clock,
		loc:            loc,
		log:            log,
	}

	// Cast to the implementation type to set the handler (dependency injection workaround)
	if schedulerImpl, ok := schedulerSvc.(*schedulerService); ok {
		schedulerImpl.SetDispatchHandler(dispatcher.Dispatch)
	} else {
		log.Error("🔴 ERROR: SchedulerService provided is not the expected implementation type (*schedulerService)", nil)
	}
	dispatcher.SetRearmHandler(ms.rearmAfterFire)
	log.Info("Dispatch and re-arm handlers set for SchedulerService.")

	return ms
}

func (s *medicationService) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// AddMedication validates the request, computes the first reminder, persists
// the medication and schedules it.
func (s *medicationService) AddMedication(ctx context.Context, userID string, req dto.CreateMedicationRequest) (*dto.MedicationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	spec, err := frequency.Parse(req.Frequency, req.ReminderTimes, req.SpecificTime, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}
	next, err := frequency.Next(spec, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}

	medication := &entity.Medication{
		UserID:             userID,
		Name:               strings.TrimSpace(req.Name),
		Dosage:             strings.TrimSpace(req.Dosage),
		NotificationTarget: strings.TrimSpace(req.NotificationTarget),
	}
	medication.SetFrequency(spec)

	medicationID, err := s.medicationRepo.Create(ctx, medication)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to create medication for user %s", userID), err)
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	medication.ID = medicationID

	unlock := s.locks.Lock(medicationID)
	defer unlock()

	if err := s.arm(ctx, medication, next); err != nil {
		// A medication that cannot be scheduled is not kept.
		if delErr := s.medicationRepo.Delete(ctx, medicationID); delErr != nil {
			s.log.Error(fmt.Sprintf("Failed to remove unscheduled medication %d", medicationID), delErr)
		}
		return nil, err
	}

	s.log.Info(fmt.Sprintf("Added medication %d for user %s, next reminder at %v", medicationID, userID, next))
	resp := dto.ToMedicationResponse(medication)
	return &resp, nil
}

// UpdateMedication applies a partial update. When the frequency or reminder
// times change, the pending job is replaced by one for the recomputed instant.
func (s *medicationService) UpdateMedication(ctx context.Context, userID string, medicationID uint, req dto.UpdateMedicationRequest) (*dto.MedicationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(medicationID)
	defer unlock()

	medication, err := s.findOwned(ctx, userID, medicationID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		medication.Name = strings.TrimSpace(*req.Name)
	}
	if req.Dosage != nil {
		medication.Dosage = strings.TrimSpace(*req.Dosage)
	}
	if req.NotificationTarget != nil {
		medication.NotificationTarget = strings.TrimSpace(*req.NotificationTarget)
	}

	if !req.ChangesSchedule() {
		if err := s.medicationRepo.Update(ctx, medication); err != nil {
			s.log.Error(fmt.Sprintf("Failed to update medication %d", medicationID), err)
			return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
		}
		s.log.Info(fmt.Sprintf("Updated medication %d", medicationID))
		resp := dto.ToMedicationResponse(medication)
		return &resp, nil
	}

	spec, err := s.mergeFrequency(medication, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}
	next, err := frequency.Next(spec, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}

	// A job that already fired is left alone; the new one is created regardless.
	if err := s.schedulerSvc.CancelOccurrence(ctx, medication.CurrentJobID); err != nil {
		return nil, err
	}

	medication.SetFrequency(spec)
	if err := s.arm(ctx, medication, next); err != nil {
		return nil, err
	}

	s.log.Info(fmt.Sprintf("Updated medication %d and rescheduled it at %v", medicationID, next))
	resp := dto.ToMedicationResponse(medication)
	return &resp, nil
}

// mergeFrequency overlays the update onto the stored frequency fields.
func (s *medicationService) mergeFrequency(medication *entity.Medication, req dto.UpdateMedicationRequest) (frequency.Spec, error) {
	kind := medication.FrequencyKind
	if req.Frequency != nil {
		kind = *req.Frequency
	}
	times := medication.ReminderTimes
	if req.ReminderTimes != nil {
		times = req.ReminderTimes
	}
	specific := ""
	if medication.SpecificAt != nil {
		specific = medication.SpecificAt.In(s.loc).Format(frequency.SpecificLayout)
	}
	if req.SpecificTime != nil {
		specific = *req.SpecificTime
	}
	return frequency.Parse(kind, times, specific, s.loc)
}

// DeleteMedication cancels the pending job and removes the medication.
// Deleting a medication that does not exist succeeds.
func (s *medicationService) DeleteMedication(ctx context.Context, userID string, medicationID uint) error {
	unlock := s.locks.Lock(medicationID)
	defer unlock()

	medication, err := s.findOwned(ctx, userID, medicationID)
	if err != nil {
		if errors.Is(err, appErrors.ErrMedicationNotFound) {
			s.log.Debug(fmt.Sprintf("Medication %d already deleted.", medicationID))
			return nil
		}
		return err
	}

	if err := s.schedulerSvc.CancelOccurrence(ctx, medication.CurrentJobID); err != nil {
		return err
	}
	if err := s.medicationRepo.Delete(ctx, medicationID); err != nil {
		s.log.Error(fmt.Sprintf("Failed to delete medication %d", medicationID), err)
		return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}

	s.log.Info(fmt.Sprintf("Deleted medication %d for user %s", medicationID, userID))
	return nil
}

// ListMedications retrieves the caller's medications.
func (s *medicationService) ListMedications(ctx context.Context, userID string) ([]dto.MedicationResponse, error) {
	medications, err := s.medicationRepo.FindByUserID(ctx, userID)
	if err != nil {
		s.log.Error(fmt.Sprintf("Failed to list medications for user %s", userID), err)
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	return dto.ToMedicationResponseList(medications), nil
}

// GetMedication retrieves one of the caller's medications.
func (s *medicationService) GetMedication(ctx context.Context, userID string, medicationID uint) (*dto.MedicationResponse, error) {
	medication, err := s.findOwned(ctx, userID, medicationID)
	if err != nil {
		return nil, err
	}
	resp := dto.ToMedicationResponse(medication)
	return &resp, nil
}

func (s *medicationService) findOwned(ctx context.Context, userID string, medicationID uint) (*entity.Medication, error) {
	medication, err := s.medicationRepo.FindByID(ctx, medicationID)
	if err != nil {
		if errors.Is(err, appErrors.ErrMedicationNotFound) {
			return nil, appErrors.ErrMedicationNotFound
		}
		s.log.Error(fmt.Sprintf("Failed to find medication %d", medicationID), err)
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	if medication.UserID != userID {
		s.log.Warn(fmt.Sprintf("User %s attempted to access medication %d owned by %s", userID, medicationID, medication.UserID))
		return nil, appErrors.ErrForbidden
	}
	return medication, nil
}

// arm persists next as the medication's next reminder and schedules its job.
// The caller holds the medication's lock.
func (s *medicationService) arm(ctx context.Context, medication *entity.Medication, next time.Time) error {
	medication.NextReminder = &next
	medication.CurrentJobID = entity.JobID(medication.ID, next)
	if err := s.medicationRepo.Update(ctx, medication); err != nil {
		s.log.Error(fmt.Sprintf("Failed to persist next reminder for medication %d", medication.ID), err)
		return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}

	if err := s.schedulerSvc.ScheduleOccurrence(ctx, medication); err != nil {
		s.log.Error(fmt.Sprintf("Failed to schedule medication %d at %v", medication.ID, next), err)
		medication.NextReminder = nil
		medication.CurrentJobID = ""
		if updErr := s.medicationRepo.Update(ctx, medication); updErr != nil {
			s.log.Error(fmt.Sprintf("Failed to clear next reminder for medication %d", medication.ID), updErr)
		}
		return err
	}
	return nil
}

// rearmAfterFire schedules the occurrence following firedJobID. It does
// nothing when the medication was deleted or its job was replaced meanwhile.
func (s *medicationService) rearmAfterFire(ctx context.Context, medicationID uint, firedJobID string) error {
	unlock := s.locks.Lock(medicationID)
	defer unlock()

	medication, err := s.medicationRepo.FindByID(ctx, medicationID)
	if err != nil {
		if errors.Is(err, appErrors.ErrMedicationNotFound) {
			s.log.Debug(fmt.Sprintf("Medication %d deleted before re-arm, nothing to do.", medicationID))
			return nil
		}
		return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	if medication.CurrentJobID != firedJobID {
		s.log.Debug(fmt.Sprintf("Job %s was superseded by %s for medication %d, skipping re-arm.", firedJobID, medication.CurrentJobID, medicationID))
		return nil
	}

	spec, err := medication.Frequency()
	if err != nil {
		return fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}
	if !spec.Recurring() {
		medication.NextReminder = nil
		if err := s.medicationRepo.Update(ctx, medication); err != nil {
			return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
		}
		s.log.Info(fmt.Sprintf("One-time reminder for medication %d completed.", medicationID))
		return nil
	}

	// Never compute from before the instant that just fired.
	base := s.now()
	if medication.NextReminder != nil && medication.NextReminder.After(base) {
		base = medication.NextReminder.In(s.loc)
	}
	next, err := frequency.Next(spec, base)
	if err != nil {
		return fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}
	return s.arm(ctx, medication, next)
}

// InitializeSchedules re-arms every medication after a restart. Recurring
// medications are recomputed from now. A one-time medication is re-armed at
// its instant unless its job already fired. Pending job records left without
// an armed job are then marked cancelled.
func (s *medicationService) InitializeSchedules(ctx context.Context) error {
	s.log.Info("Initializing schedules from database...")
	medications, err := s.medicationRepo.FindAll(ctx)
	if err != nil {
		s.log.Error("Failed to retrieve medications for initialization", err)
		return fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}

	scheduledCount := 0
	for _, medication := range medications {
		unlock := s.locks.Lock(medication.ID)
		scheduled, err := s.restore(ctx, medication)
		unlock()
		if err != nil {
			// Continue trying to schedule others
			s.log.Error(fmt.Sprintf("Failed to restore schedule for medication %d during init", medication.ID), err)
			continue
		}
		if scheduled {
			scheduledCount++
		}
	}

	pending, err := s.schedulerSvc.ListPendingJobs(ctx)
	if err != nil {
		s.log.Error("Failed to list pending jobs during init", err)
		return err
	}
	orphanCount := 0
	for _, job := range pending {
		if s.schedulerSvc.IsArmed(job.ID) {
			continue
		}
		if err := s.schedulerSvc.CancelOccurrence(ctx, job.ID); err != nil {
			s.log.Error(fmt.Sprintf("Failed to cancel orphaned job %s", job.ID), err)
			continue
		}
		orphanCount++
	}

	s.log.Info(fmt.Sprintf("Schedule initialization complete. Scheduled: %d, Orphaned jobs cancelled: %d", scheduledCount, orphanCount))
	return nil
}

func (s *medicationService) restore(ctx context.Context, medication *entity.Medication) (bool, error) {
	spec, err := medication.Frequency()
	if err != nil {
		return false, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}

	if spec.Recurring() {
		if err := s.schedulerSvc.CancelOccurrence(ctx, medication.CurrentJobID); err != nil {
			return false, err
		}
		next, err := frequency.Next(spec, s.now())
		if err != nil {
			return false, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
		}
		return true, s.arm(ctx, medication, next)
	}

	if medication.NextReminder == nil || s.schedulerSvc.IsArmed(medication.CurrentJobID) {
		return false, nil
	}
	if medication.CurrentJobID != "" {
		job, err := s.schedulerSvc.GetJob(ctx, medication.CurrentJobID)
		switch {
		case err == nil && job.Status == constant.JobStatusFired:
			return false, nil
		case err != nil && !errors.Is(err, appErrors.ErrJobNotFound):
			return false, err
		}
	}
	next, err := frequency.Next(spec, s.now())
	if err != nil {
		return false, fmt.Errorf("%w: %v", appErrors.ErrScheduling, err)
	}
	return true, s.arm(ctx, medication, next)
}
