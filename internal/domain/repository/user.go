package repository

import (
	"context"
	"medreminder/internal/domain/entity"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// FindByID retrieves a user by ID.
	FindByID(ctx context.Context, id string) (*entity.User, error)
	// FindByToken retrieves the user owning an API token.
	FindByToken(ctx context.Context, token string) (*entity.User, error)
	// Create creates a new user.
	Create(ctx context.Context, user *entity.User) error
}
