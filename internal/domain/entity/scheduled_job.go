package entity

import (
	"fmt"
	"time"

	"medreminder/internal/domain/constant"
)

// ScheduledJob is the durable record of one pending occurrence.
type ScheduledJob struct {
	ID           string             `gorm:"column:id;primaryKey"`
	MedicationID uint               `gorm:"column:medication_id;index"`
	FireAt       time.Time          `gorm:"column:fire_at"`
	Status       constant.JobStatus `gorm:"column:status;index"`
	Attempts     int                `gorm:"column:attempts"`
	LastError    string             `gorm:"column:last_error;type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName specifies the table name for the ScheduledJob entity.
func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}

// JobID derives the job id of a medication occurrence.
// The same medication and instant always map to the same id.
func JobID(medicationID uint, fireAt time.Time) string {
	return fmt.Sprintf("med-%d-%d", medicationID, fireAt.Unix())
}
