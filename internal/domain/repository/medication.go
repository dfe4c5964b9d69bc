package repository

import (
	"context"
	"medreminder/internal/domain/entity"
)

// MedicationRepository defines the interface for medication data operations.
type MedicationRepository interface {
	// FindByID retrieves a medication by its ID.
	FindByID(ctx context.Context, id uint) (*entity.Medication, error)
	// FindByUserID retrieves all medications owned by a user.
	FindByUserID(ctx context.Context, userID string) ([]*entity.Medication, error)
	// FindAll retrieves all medications (used for rescheduling on startup).
	FindAll(ctx context.Context) ([]*entity.Medication, error)
	// Create creates a new medication. Returns the ID of the created medication.
	Create(ctx context.Context, medication *entity.Medication) (uint, error)
	// Update updates an existing medication.
	Update(ctx context.Context, medication *entity.Medication) error
	// Delete deletes a medication by its ID.
	Delete(ctx context.Context, id uint) error
}
