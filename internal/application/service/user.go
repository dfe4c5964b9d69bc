package service

import (
	"context"

	"medreminder/internal/application/dto"
	"medreminder/internal/domain/entity"
)

// UserService defines the interface for user-related business logic.
// It is the identity provider of the HTTP API.
type UserService interface {
	// Register creates a user and issues its API token.
	Register(ctx context.Context, req dto.RegisterUserRequest) (*dto.UserResponse, error)
	// Authenticate resolves an API token to a user ID.
	Authenticate(ctx context.Context, token string) (string, error)
	// GetUser finds a user by ID. Returns error if not found.
	GetUser(ctx context.Context, userID string) (*entity.User, error)
}
