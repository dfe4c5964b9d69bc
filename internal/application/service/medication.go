package service

import (
	"context"

	"medreminder/internal/application/dto"
)

// MedicationService defines the interface for medication and reminder business logic.
// Every operation taking a userID acts only on medications that user owns.
type MedicationService interface {
	// AddMedication validates the request, computes the first reminder, persists the medication and schedules it.
	AddMedication(ctx context.Context, userID string, req dto.CreateMedicationRequest) (*dto.MedicationResponse, error)
	// UpdateMedication applies a partial update. A frequency change replaces the pending job.
	UpdateMedication(ctx context.Context, userID string, medicationID uint, req dto.UpdateMedicationRequest) (*dto.MedicationResponse, error)
	// DeleteMedication cancels the pending job and removes the medication. Deleting a missing medication succeeds.
	DeleteMedication(ctx context.Context, userID string, medicationID uint) error
	// ListMedications retrieves the caller's medications.
	ListMedications(ctx context.Context, userID string) ([]dto.MedicationResponse, error)
	// GetMedication retrieves one of the caller's medications.
	GetMedication(ctx context.Context, userID string, medicationID uint) (*dto.MedicationResponse, error)
	// InitializeSchedules re-arms every medication on startup and cancels orphaned job records.
	InitializeSchedules(ctx context.Context) error
}
