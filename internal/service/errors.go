package service

import (
	"errors"

	"github.com/parallelhq/parallel/internal/repository"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrIntakeRequired       = errors.New("complete onboarding before creating an analysis")
	ErrNotSubscribed        = errors.New("an active subscription is required")
	ErrAnalysisExists       = repository.ErrAnalysisExists
	ErrStatusRegression     = errors.New("analysis status can only move forward")
	ErrStatusConflict       = errors.New("analysis status changed concurrently")
	ErrGenerationInProgress = errors.New("generation already in progress for this analysis")
	ErrSubmissionConverted  = repository.ErrSubmissionConverted
)
