package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/parallelhq/parallel/internal/markdown"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/validation"
)

var titleCaser = cases.Title(language.English)

// Title turns a section or subtab key into a display title ("jaw_chin" -> "Jaw Chin").
func Title(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

type AnalysisService struct {
	analysisRepo       repository.AnalysisRepository
	intakeRepo         repository.IntakeRepository
	userRepo           repository.UserRepository
	morphRepo          repository.MorphRepository
	recommendationRepo repository.RecommendationRepository
	subscriptions      *SubscriptionService
	email              *EmailService
	markdown           *markdown.Parser
}

func NewAnalysisService(
	analysisRepo repository.AnalysisRepository,
	intakeRepo repository.IntakeRepository,
	userRepo repository.UserRepository,
	morphRepo repository.MorphRepository,
	recommendationRepo repository.RecommendationRepository,
	subscriptions *SubscriptionService,
	email *EmailService,
	md *markdown.Parser,
) *AnalysisService {
	return &AnalysisService{
		analysisRepo:       analysisRepo,
		intakeRepo:         intakeRepo,
		userRepo:           userRepo,
		morphRepo:          morphRepo,
		recommendationRepo: recommendationRepo,
		subscriptions:      subscriptions,
		email:              email,
		markdown:           md,
	}
}

// Create starts the user's single analysis from their photos.
func (s *AnalysisService) Create(ctx context.Context, userID string, photos model.PhotoSet) (*model.Analysis, error) {
	if err := validation.Struct(photos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hasIntake, err := s.intakeRepo.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check intake: %w", err)
	}
	if !hasIntake {
		return nil, ErrIntakeRequired
	}

	subscribed, err := s.subscriptions.IsSubscribed(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !subscribed {
		return nil, ErrNotSubscribed
	}

	now := time.Now().UTC()
	analysis := &model.Analysis{
		ID:        uuid.New().String(),
		UserID:    userID,
		PhotoSet:  photos,
		Status:    model.AnalysisStatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.analysisRepo.Create(analysis); err != nil {
		if errors.Is(err, repository.ErrAnalysisExists) {
			return nil, ErrAnalysisExists
		}
		return nil, fmt.Errorf("failed to create analysis: %w", err)
	}

	slog.Info("analysis created", "user_id", userID, "analysis_id", analysis.ID)
	return analysis, nil
}

// First returns the user's analysis, or nil when there is none yet.
func (s *AnalysisService) First(userID string) (*model.Analysis, error) {
	analysis, err := s.analysisRepo.ByUserID(userID)
	if errors.Is(err, repository.ErrAnalysisNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return analysis, nil
}

type Completion struct {
	AnalysisID string `json:"analysisId"`
	Status     string `json:"status"`
}

// CheckCompletion reports the status of one of the user's analyses. Another
// user's analysis is reported as not found.
func (s *AnalysisService) CheckCompletion(userID, analysisID string) (*Completion, error) {
	analysis, err := s.analysisRepo.ByIDForUser(userID, analysisID)
	if err != nil {
		return nil, err
	}
	return &Completion{AnalysisID: analysis.ID, Status: analysis.Status}, nil
}

type ReportSection struct {
	Key                string  `json:"key"`
	Title              string  `json:"title"`
	ImageURL           *string `json:"imageUrl,omitempty"`
	Explanation        string  `json:"explanation"`
	ExplanationHTML    string  `json:"explanationHtml"`
	AdditionalFeatures string  `json:"additionalFeatures"`
	Filled             bool    `json:"filled"`
}

type ReportSubtab struct {
	Key      string          `json:"key"`
	Title    string          `json:"title"`
	Sections []ReportSection `json:"sections"`
}

// AnalysisReport is an analysis with everything the viewer may see.
type AnalysisReport struct {
	Analysis        *model.Analysis          `json:"analysis"`
	Subtabs         []ReportSubtab           `json:"subtabs"`
	Morphs          *model.MorphSet          `json:"morphs,omitempty"`
	Recommendations *model.RecommendationSet `json:"recommendations,omitempty"`
}

// WithContent returns the owner's view of an analysis. Sections stay hidden
// while in progress; morphs and recommendations appear once complete.
func (s *AnalysisService) WithContent(userID, analysisID string) (*AnalysisReport, error) {
	analysis, err := s.analysisRepo.ByIDForUser(userID, analysisID)
	if err != nil {
		return nil, err
	}
	return s.report(analysis, false)
}

// Report is the reviewer's view: every section and generated asset.
func (s *AnalysisService) Report(analysisID string) (*AnalysisReport, error) {
	analysis, err := s.analysisRepo.ByID(analysisID)
	if err != nil {
		return nil, err
	}
	return s.report(analysis, true)
}

func (s *AnalysisService) report(analysis *model.Analysis, reviewer bool) (*AnalysisReport, error) {
	rep := &AnalysisReport{Analysis: analysis, Subtabs: []ReportSubtab{}}

	if reviewer || analysis.SectionsVisible() {
		subtabs, err := s.subtabs(analysis.ID)
		if err != nil {
			return nil, err
		}
		rep.Subtabs = subtabs
	}

	if reviewer || analysis.IsComplete() {
		morphs, err := s.morphRepo.ByAnalysisID(analysis.ID)
		if err != nil && !errors.Is(err, repository.ErrMorphSetNotFound) {
			return nil, fmt.Errorf("failed to get morphs: %w", err)
		}
		rep.Morphs = morphs

		recs, err := s.recommendationRepo.ByAnalysisID(analysis.ID)
		if err != nil && !errors.Is(err, repository.ErrRecommendationNotFound) {
			return nil, fmt.Errorf("failed to get recommendations: %w", err)
		}
		rep.Recommendations = recs
	}
	return rep, nil
}

func (s *AnalysisService) subtabs(analysisID string) ([]ReportSubtab, error) {
	contents, err := s.analysisRepo.Sections(analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sections: %w", err)
	}
	byKey := make(map[string]*model.AnalysisSectionContent, len(contents))
	for _, c := range contents {
		byKey[c.SectionKey] = c
	}

	subtabs := make([]ReportSubtab, 0, len(model.SectionTaxonomy))
	for _, tab := range model.SectionTaxonomy {
		rt := ReportSubtab{Key: tab.Key, Title: Title(tab.Key), Sections: make([]ReportSection, 0, len(tab.Sections))}
		for _, key := range tab.Sections {
			section := ReportSection{Key: key, Title: Title(key)}
			if c, ok := byKey[key]; ok {
				html, err := s.markdown.HTML(c.Explanation)
				if err != nil {
					return nil, fmt.Errorf("failed to render section %s: %w", key, err)
				}
				section.ImageURL = c.ImageURL
				section.Explanation = c.Explanation
				section.ExplanationHTML = html
				section.AdditionalFeatures = c.AdditionalFeatures
				section.Filled = true
			}
			rt.Sections = append(rt.Sections, section)
		}
		subtabs = append(subtabs, rt)
	}
	return subtabs, nil
}

// Advance moves an analysis forward in its lifecycle. Moving to the current
// status is a no-op; moving backward fails with ErrStatusRegression. The
// update is a compare-and-set so a concurrent writer cannot be overwritten.
func (s *AnalysisService) Advance(ctx context.Context, analysisID, to string) (*model.Analysis, error) {
	if !model.ValidAnalysisStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		analysis, err := s.analysisRepo.ByID(analysisID)
		if err != nil {
			return nil, err
		}
		if analysis.Status == to {
			return analysis, nil
		}
		if !model.CanAdvanceAnalysis(analysis.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrStatusRegression, analysis.Status, to)
		}

		ok, err := s.analysisRepo.CompareAndSetStatus(analysisID, analysis.Status, to)
		if err != nil {
			return nil, fmt.Errorf("failed to update analysis status: %w", err)
		}
		if !ok {
			continue
		}

		slog.Info("analysis status advanced", "analysis_id", analysisID, "user_id", analysis.UserID, "from", analysis.Status, "to", to)
		analysis.Status = to
		analysis.UpdatedAt = time.Now().UTC()
		if to == model.AnalysisStatusComplete {
			s.notifyReportReady(ctx, analysis)
		}
		return analysis, nil
	}
	return nil, ErrStatusConflict
}

func (s *AnalysisService) notifyReportReady(ctx context.Context, analysis *model.Analysis) {
	user, err := s.userRepo.ByID(analysis.UserID)
	if err != nil {
		slog.Error("failed to load user for report email", "user_id", analysis.UserID, "error", err)
		return
	}
	if err := s.email.SendReportReadyEmail(ctx, user.Email, user.Name); err != nil {
		slog.Error("failed to send report ready email", "user_id", user.ID, "error", err)
	}
}

// Analyses lists analyses for reviewers, newest first.
func (s *AnalysisService) Analyses(status string, limit int) ([]*model.Analysis, error) {
	if status != "" && !model.ValidAnalysisStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	analyses, err := s.analysisRepo.Analyses(status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

type SectionInput struct {
	AnalysisID         string  `json:"analysisId" validate:"required,uuid"`
	SectionKey         string  `json:"sectionKey" validate:"required,sectionkey"`
	ImageURL           *string `json:"imageUrl" validate:"omitempty,photourl"`
	Explanation        string  `json:"explanation" validate:"max=20000"`
	AdditionalFeatures string  `json:"additionalFeatures" validate:"max=5000"`
}

// UpsertSection writes one report section. Each (analysis, section) pair has one row.
func (s *AnalysisService) UpsertSection(in SectionInput) (*model.AnalysisSectionContent, error) {
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.analysisRepo.ByID(in.AnalysisID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	content := &model.AnalysisSectionContent{
		ID:                 uuid.New().String(),
		AnalysisID:         in.AnalysisID,
		SectionKey:         in.SectionKey,
		ImageURL:           in.ImageURL,
		Explanation:        in.Explanation,
		AdditionalFeatures: in.AdditionalFeatures,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.analysisRepo.UpsertSection(content); err != nil {
		return nil, fmt.Errorf("failed to save section: %w", err)
	}

	slog.Info("analysis section saved", "analysis_id", in.AnalysisID, "section", in.SectionKey)
	return content, nil
}
