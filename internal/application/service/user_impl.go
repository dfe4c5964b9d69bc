package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medreminder/internal/application/dto"
	"medreminder/internal/domain/entity"
	"medreminder/internal/domain/repository"
	appErrors "medreminder/internal/pkg/errors" // Alias to avoid collision
	"medreminder/internal/pkg/logger"

	"github.com/google/uuid"
)

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

// NewUserService creates a new instance of UserService implementation.
func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

// Register creates a user and issues its API token.
func (s *userService) Register(ctx context.Context, req dto.RegisterUserRequest) (*dto.UserResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user := &entity.User{
		ID:                 uuid.NewString(),
		Email:              strings.TrimSpace(req.Email),
		APIToken:           strings.ReplaceAll(uuid.NewString(), "-", ""),
		NotificationTarget: strings.TrimSpace(req.NotificationTarget),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			s.log.Warn(fmt.Sprintf("Email %s is already registered", user.Email))
			return nil, err
		}
		s.log.Error(fmt.Sprintf("Failed to create user %s", user.Email), err)
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	s.log.Info(fmt.Sprintf("Registered user %s", user.ID))

	resp := dto.ToUserResponse(user)
	resp.APIToken = user.APIToken
	return &resp, nil
}

// Authenticate resolves an API token to a user ID.
func (s *userService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", appErrors.ErrUnauthorized
	}
	user, err := s.userRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, appErrors.ErrUserNotFound) {
			return "", appErrors.ErrUnauthorized
		}
		s.log.Error("Failed to look up API token", err)
		return "", fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	return user.ID, nil
}

// GetUser finds a user by ID. Returns error if not found.
func (s *userService) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrUserNotFound) {
			return nil, appErrors.ErrUserNotFound // Return specific app error
		}
		s.log.Error(fmt.Sprintf("Failed to get user %s", userID), err)
		return nil, fmt.Errorf("%w: %v", appErrors.ErrDatabaseOperation, err)
	}
	return user, nil
}
