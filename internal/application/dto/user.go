package dto

import (
	"fmt"
	"strings"
	"time"

	"medreminder/internal/domain/entity"
	appErrors "medreminder/internal/pkg/errors"
)

// RegisterUserRequest is the DTO for registering a new user.
type RegisterUserRequest struct {
	Email              string `json:"email"`
	NotificationTarget string `json:"notification_target,omitempty"` // Default target for the user's medications
}

// Validate checks the registration fields.
func (r RegisterUserRequest) Validate() error {
	email := strings.TrimSpace(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: a valid email is required", appErrors.ErrValidation)
	}
	return nil
}

// UserResponse is the DTO for returning a user profile.
// APIToken is only filled in on registration.
type UserResponse struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	NotificationTarget string    `json:"notification_target,omitempty"`
	APIToken           string    `json:"api_token,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ToUserResponse converts an entity.User to a UserResponse DTO without its token.
func ToUserResponse(u *entity.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		NotificationTarget: u.NotificationTarget,
		CreatedAt:          u.CreatedAt,
	}
}
