package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/validation"
)

type IntakeService struct {
	intakeRepo repository.IntakeRepository
}

func NewIntakeService(intakeRepo repository.IntakeRepository) *IntakeService {
	return &IntakeService{intakeRepo: intakeRepo}
}

// IntakeInput is the questionnaire as submitted by the user.
type IntakeInput struct {
	Name            string   `json:"name" validate:"required,max=100"`
	AgeBracket      string   `json:"ageBracket" validate:"required,agebracket"`
	Country         string   `json:"country" validate:"required,max=64"`
	Ethnicities     []string `json:"ethnicities" validate:"max=10,dive,max=64"`
	AestheticFocus  []string `json:"aestheticFocus" validate:"max=20,dive,max=64"`
	PriorTreatments []string `json:"priorTreatments" validate:"max=20,dive,max=64"`
}

// Upsert stores the user's answers. Repeating the call updates the single row.
func (s *IntakeService) Upsert(userID string, in IntakeInput) (*model.UserIntake, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Country = strings.TrimSpace(in.Country)
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	intake := &model.UserIntake{
		ID:              uuid.New().String(),
		UserID:          userID,
		Name:            in.Name,
		AgeBracket:      in.AgeBracket,
		Country:         in.Country,
		Ethnicities:     cleanList(in.Ethnicities),
		AestheticFocus:  cleanList(in.AestheticFocus),
		PriorTreatments: cleanList(in.PriorTreatments),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.intakeRepo.Upsert(intake); err != nil {
		return nil, fmt.Errorf("failed to save intake: %w", err)
	}

	slog.Info("intake saved", "user_id", userID)
	return s.intakeRepo.ByUserID(userID)
}

// Mine returns the user's intake, or nil before onboarding.
func (s *IntakeService) Mine(userID string) (*model.UserIntake, error) {
	intake, err := s.intakeRepo.ByUserID(userID)
	if errors.Is(err, repository.ErrIntakeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intake: %w", err)
	}
	return intake, nil
}

func (s *IntakeService) HasCompleted(ctx context.Context, userID string) (bool, error) {
	return s.intakeRepo.Exists(ctx, userID)
}

func cleanList(values []string) model.StringList {
	out := model.StringList{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
