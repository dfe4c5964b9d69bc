package entity

import (
	"fmt"
	"time"

	"medreminder/internal/domain/frequency"
)

// Medication is a user's medication together with its reminder schedule.
type Medication struct {
	ID                 uint              `gorm:"primaryKey;autoIncrement"`
	UserID             string            `gorm:"column:user_id;index"`
	Name               string            `gorm:"column:name"`
	Dosage             string            `gorm:"column:dosage"`
	FrequencyKind      string            `gorm:"column:frequency"`
	ReminderTimes      map[string]string `gorm:"column:reminder_times;serializer:json"`
	SpecificAt         *time.Time        `gorm:"column:specific_time"`
	NextReminder       *time.Time        `gorm:"column:next_reminder"`
	NotificationTarget string            `gorm:"column:notification_target"`
	CurrentJobID       string            `gorm:"column:current_job_id"` // Job armed for NextReminder, empty when never scheduled
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName specifies the table name for the Medication entity.
func (Medication) TableName() string {
	return "medications"
}

// Frequency rebuilds the typed frequency spec from the stored columns.
func (m *Medication) Frequency() (frequency.Spec, error) {
	if frequency.Kind(m.FrequencyKind) == frequency.KindSpecific {
		if m.SpecificAt == nil {
			return nil, fmt.Errorf("%w: medication %d has no specific time", frequency.ErrInvalidSpec, m.ID)
		}
		return frequency.Specific{At: *m.SpecificAt}, nil
	}
	return frequency.Parse(m.FrequencyKind, m.ReminderTimes, "", time.UTC)
}

// SetFrequency stores spec into the frequency columns.
func (m *Medication) SetFrequency(spec frequency.Spec) {
	m.FrequencyKind = string(spec.Kind())
	m.ReminderTimes = spec.Times()
	m.SpecificAt = nil
	if s, ok := spec.(frequency.Specific); ok {
		at := s.At
		m.SpecificAt = &at
	}
}
