package entity

import "time"

// User is an account known to the identity provider.
type User struct {
	ID                 string `gorm:"column:user_id;primaryKey"`
	Email              string `gorm:"column:email;uniqueIndex"`
	APIToken           string `gorm:"column:api_token;uniqueIndex"`
	NotificationTarget string `gorm:"column:notification_target"` // Default target for medications that set none
	CreatedAt          time.Time
}

// TableName specifies the table name for the User entity.
func (User) TableName() string {
	return "users"
}
