package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/validation"
)

// SubmissionService stages photos uploaded before an analysis exists and lets
// reviewers turn them into analyses.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
	email          *EmailService
}

func NewSubmissionService(submissionRepo repository.SubmissionRepository, userRepo repository.UserRepository, email *EmailService) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		email:          email,
	}
}

// Submit creates or replaces the user's pending submission.
func (s *SubmissionService) Submit(ctx context.Context, user *model.User, photos model.PhotoSet) (*model.PhotoSubmission, error) {
	if err := validation.Struct(photos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	_, err := s.submissionRepo.ByUserID(user.ID)
	firstSubmission := errors.Is(err, repository.ErrSubmissionNotFound)
	if err != nil && !firstSubmission {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	now := time.Now().UTC()
	sub := &model.PhotoSubmission{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		PhotoSet:  photos,
		Status:    model.SubmissionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.submissionRepo.Upsert(sub); err != nil {
		if errors.Is(err, repository.ErrSubmissionConverted) {
			return nil, ErrSubmissionConverted
		}
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	slog.Info("photo submission saved", "user_id", user.ID, "first", firstSubmission)
	if firstSubmission {
		if err := s.email.SendSubmissionReceivedEmail(ctx, user.Email, user.Name); err != nil {
			slog.Error("failed to send submission received email", "user_id", user.ID, "error", err)
		}
	}
	return s.submissionRepo.ByUserID(user.ID)
}

// Mine returns the user's submission, or nil.
func (s *SubmissionService) Mine(userID string) (*model.PhotoSubmission, error) {
	sub, err := s.submissionRepo.ByUserID(userID)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionService) Submissions(status string, limit int) ([]*model.PhotoSubmission, error) {
	if status != "" && status != model.SubmissionStatusPending && status != model.SubmissionStatusConverted {
		return nil, fmt.Errorf("%w: unknown submission status %q", ErrInvalidInput, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	subs, err := s.submissionRepo.Submissions(status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}

// Convert turns a pending submission into the owner's analysis in one
// transaction. It fails with ErrAnalysisExists when the owner already has one.
func (s *SubmissionService) Convert(submissionID string) (*model.Analysis, error) {
	sub, err := s.submissionRepo.ByID(submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsPending() {
		return nil, ErrSubmissionConverted
	}

	now := time.Now().UTC()
	analysis := &model.Analysis{
		ID:        uuid.New().String(),
		UserID:    sub.UserID,
		PhotoSet:  sub.PhotoSet,
		Status:    model.AnalysisStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.submissionRepo.Convert(sub.ID, analysis); err != nil {
		if errors.Is(err, repository.ErrAnalysisExists) || errors.Is(err, repository.ErrSubmissionConverted) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to convert submission: %w", err)
	}

	slog.Info("photo submission converted", "submission_id", sub.ID, "user_id", sub.UserID, "analysis_id", analysis.ID)
	return analysis, nil
}
