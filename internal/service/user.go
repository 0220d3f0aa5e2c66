package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/validation"
)

var ErrActiveSubscription = errors.New("cannot delete a user with an active subscription")

// UserService covers operator actions on user records.
type UserService struct {
	userRepository      repository.UserRepository
	fileService         *FileService
	subscriptionService *SubscriptionService
}

func NewUserService(
	userRepository repository.UserRepository,
	fileService *FileService,
	subscriptionService *SubscriptionService,
) *UserService {
	return &UserService{
		userRepository:      userRepository,
		fileService:         fileService,
		subscriptionService: subscriptionService,
	}
}

func (s *UserService) Users(limit int) ([]*model.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	users, err := s.userRepository.Users(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) ByEmail(email string) (*model.User, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.userRepository.ByEmail(email)
}

// SetRole changes the role of the user with the given email.
func (s *UserService) SetRole(email, role string) (*model.User, error) {
	role = strings.TrimSpace(role)
	if !model.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	user, err := s.ByEmail(email)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	if err := s.userRepository.SetRole(user.ID, role); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	slog.Info("user role changed", "user_id", user.ID, "from", user.Role, "to", role)
	user.Role = role
	return user, nil
}

// Delete removes the user and, through cascades, everything they own.
// Users with an entitled subscription are refused.
func (s *UserService) Delete(ctx context.Context, email string) error {
	user, err := s.ByEmail(email)
	if err != nil {
		return err
	}

	subscribed, err := s.subscriptionService.IsSubscribed(ctx, user.ID)
	if err != nil {
		return err
	}
	if subscribed {
		return ErrActiveSubscription
	}

	files, err := s.fileService.Files(model.FileOwnerUser, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list user files: %w", err)
	}
	for _, f := range files {
		if err := s.fileService.Delete(ctx, f.ID); err != nil {
			// Orphaned objects are preferable to a half-deleted user
			slog.Warn("failed to delete user file", "user_id", user.ID, "file_id", f.ID, "error", err)
		}
	}

	if err := s.userRepository.Delete(user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	slog.Info("user deleted", "user_id", user.ID)
	return nil
}
