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

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// FindByID retrieves a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with ID %s: %w", id, appErrors.ErrUserNotFound)
		}
		return nil, fmt.Errorf("🔴 ERROR: failed to find user by user_id %s: %w", id, err)
	}
	return &user, nil
}

// FindByToken retrieves the user owning an API token.
func (r *userRepository) FindByToken(ctx context.Context, token string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("api_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user by token: %w", appErrors.ErrUserNotFound)
		}
		return nil, fmt.Errorf("🔴 ERROR: failed to find user by token: %w", err)
	}
	return &user, nil
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("user with email %s: %w", user.Email, appErrors.ErrConflict)
		}
		return fmt.Errorf("🔴 ERROR: failed to create user %s: %w", user.ID, err)
	}
	return nil
}
