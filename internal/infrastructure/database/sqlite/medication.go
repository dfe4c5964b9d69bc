package sqlite

import (
	"context"
	"errors"
	"fmt"
	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	appErrors "medreminder/internal/pkg/errors"

	"gorm.io/gorm"
)

type medicationRepository struct {
	db *gorm.DB
}

// NewMedicationRepository creates a new instance of MedicationRepository.
func NewMedicationRepository(db *gorm.DB) repository.MedicationRepository {
	return &medicationRepository{db: db}
}

// FindByID retrieves a medication by its ID.
func (r *medicationRepository) FindByID(ctx context.Context, id uint) (*entity.Medication, error) {
	var medication entity.Medication
	if err := r.db.WithContext(ctx).First(&medication, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("medication with ID %d: %w", id, appErrors.ErrMedicationNotFound)
		}
		return nil, fmt.Errorf("🔴 ERROR: failed to find medication by id %d: %w", id, err)
	}
	return &medication, nil
}

// FindByUserID retrieves all medications for a specific user.
func (r *medicationRepository) FindByUserID(ctx context.Context, userID string) ([]*entity.Medication, error) {
	var medications []*entity.Medication
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&medications).Error; err != nil {
		return nil, fmt.Errorf("🔴 ERROR: failed to find medications by user_id %s: %w", userID, err)
	}
	return medications, nil
}

// FindAll retrieves all medications (used for rescheduling on startup).
func (r *medicationRepository) FindAll(ctx context.Context) ([]*entity.Medication, error) {
	var medications []*entity.Medication
	if err := r.db.WithContext(ctx).Order("id asc").Find(&medications).Error; err != nil {
		return nil, fmt.Errorf("🔴 ERROR: failed to find all medications: %w", err)
	}
	return medications, nil
}

// Create creates a new medication. Returns the ID of the created medication.
func (r *medicationRepository) Create(ctx context.Context, medication *entity.Medication) (uint, error) {
	if err := r.db.WithContext(ctx).Create(medication).Error; err != nil {
		return 0, fmt.Errorf("🔴 ERROR: failed to create medication for user %s: %w", medication.UserID, err)
	}
	return medication.ID, nil
}

// Update updates an existing medication.
func (r *medicationRepository) Update(ctx context.Context, medication *entity.Medication) error {
	if err := r.db.WithContext(ctx).Save(medication).Error; err != nil {
		return fmt.Errorf("🔴 ERROR: failed to update medication %d: %w", medication.ID, err)
	}
	return nil
}

// Delete deletes a medication by its ID.
func (r *medicationRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&entity.Medication{}, id).Error; err != nil {
		return fmt.Errorf("🔴 ERROR: failed to delete medication %d: %w", id, err)
	}
	return nil
}
