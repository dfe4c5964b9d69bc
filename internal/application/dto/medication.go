package dto

import (
	"fmt"
	"strings"
	"time"

	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/frequency"
	appErrors "medreminder/internal/pkg/errors"
)

// MedicationResponse is the DTO for returning a medication and its schedule to the client.
type MedicationResponse struct {
	ID                 uint              `json:"id"`
	Name               string            `json:"name"`
	Dosage             string            `json:"dosage"`
	Frequency          string            `json:"frequency"`
	ReminderTimes      map[string]string `json:"reminder_times,omitempty"`
	SpecificTime       *time.Time        `json:"specific_time,omitempty"`
	NextReminder       *time.Time        `json:"next_reminder"`
	NotificationTarget string            `json:"notification_target,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// ToMedicationResponse converts an entity.Medication to a MedicationResponse DTO.
func ToMedicationResponse(m *entity.Medication) MedicationResponse {
	return MedicationResponse{
		ID:                 m.ID,
		Name:               m.Name,
		Dosage:             m.Dosage,
		Frequency:          m.FrequencyKind,
		ReminderTimes:      m.ReminderTimes,
		SpecificTime:       m.SpecificAt,
		NextReminder:       m.NextReminder,
		NotificationTarget: m.NotificationTarget,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// ToMedicationResponseList converts a slice of entity.Medication to a slice of MedicationResponse DTOs.
func ToMedicationResponseList(medications []*entity.Medication) []MedicationResponse {
	list := make([]MedicationResponse, len(medications))
	for i, m := range medications {
		list[i] = ToMedicationResponse(m)
	}
	return list
}

// CreateMedicationRequest is the DTO for adding a medication.
type CreateMedicationRequest struct {
	Name               string            `json:"name"`
	Dosage             string            `json:"dosage"`
	Frequency          string            `json:"frequency"`                      // daily | weekly | specific
	ReminderTimes      map[string]string `json:"reminder_times,omitempty"`       // {"daily": "HH:MM"} or weekday -> "HH:MM"
	SpecificTime       string            `json:"specific_time,omitempty"`        // "YYYY-MM-DD HH:MM:SS" for specific
	NotificationTarget string            `json:"notification_target,omitempty"` // Falls back to the owner's target
}

// Validate checks that every required field is present.
func (r CreateMedicationRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(r.Dosage) == "" {
		missing = append(missing, "dosage")
	}
	if strings.TrimSpace(r.Frequency) == "" {
		missing = append(missing, "frequency")
	} else if frequency.Kind(strings.ToLower(r.Frequency)) == frequency.KindSpecific {
		if strings.TrimSpace(r.SpecificTime) == "" {
			missing = append(missing, "specific_time")
		}
	} else if len(r.ReminderTimes) == 0 {
		missing = append(missing, "reminder_times")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", appErrors.ErrValidation, strings.Join(missing, ", "))
	}
	return validateKind(r.Frequency)
}

// UpdateMedicationRequest is the DTO for a partial medication update.
// Nil fields are left unchanged.
type UpdateMedicationRequest struct {
	Name               *string           `json:"name,omitempty"`
	Dosage             *string           `json:"dosage,omitempty"`
	Frequency          *string           `json:"frequency,omitempty"`
	ReminderTimes      map[string]string `json:"reminder_times,omitempty"`
	SpecificTime       *string           `json:"specific_time,omitempty"`
	NotificationTarget *string           `json:"notification_target,omitempty"`
}

// Validate rejects fields that are present but empty.
func (r UpdateMedicationRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", appErrors.ErrValidation)
	}
	if r.Dosage != nil && strings.TrimSpace(*r.Dosage) == "" {
		return fmt.Errorf("%w: dosage must not be empty", appErrors.ErrValidation)
	}
	if r.Frequency != nil {
		return validateKind(*r.Frequency)
	}
	return nil
}

// ChangesSchedule reports whether the update touches the frequency or reminder times.
func (r UpdateMedicationRequest) ChangesSchedule() bool {
	return r.Frequency != nil || r.ReminderTimes != nil || r.SpecificTime != nil
}

func validateKind(kind string) error {
	switch frequency.Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case frequency.KindDaily, frequency.KindWeekly, frequency.KindSpecific:
		return nil
	default:
		return fmt.Errorf("%w: invalid frequency %q", appErrors.ErrValidation, kind)
	}
}
