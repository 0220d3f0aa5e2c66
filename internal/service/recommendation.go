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
	"github.com/parallelhq/parallel/internal/openrouter"
	"github.com/parallelhq/parallel/internal/repository"
)

// ImageAnalyzer answers a text question about one image.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, model, systemPrompt, userPrompt, imageURL string) (string, error)
}

const recommendationSystemPrompt = `You are a skincare and grooming advisor. Reply with JSON only:
{"products":[{"name":"","category":"","reason":"","url":""}]}. Recommend at most 8 widely available products.`

const recommendationUserPrompt = "Recommend products for the person in this photo based on their visible skin and facial features."

type RecommendationService struct {
	recommendationRepo repository.RecommendationRepository
	analyzer           ImageAnalyzer
	model              string
}

func NewRecommendationService(recommendationRepo repository.RecommendationRepository, analyzer ImageAnalyzer, model string) *RecommendationService {
	return &RecommendationService{
		recommendationRepo: recommendationRepo,
		analyzer:           analyzer,
		model:              model,
	}
}

// Generate asks the model for products and stores the outcome. A model
// failure is recorded on the set; only a storage failure is returned.
func (s *RecommendationService) Generate(ctx context.Context, analysis *model.Analysis) (*model.RecommendationSet, error) {
	now := time.Now().UTC()
	set := &model.RecommendationSet{
		ID:         uuid.New().String(),
		AnalysisID: analysis.ID,
		Status:     model.RecommendationStatusCompleted,
		Products:   model.ProductList{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	products, err := s.products(ctx, analysis.SkinURL)
	if err != nil {
		slog.Warn("recommendation generation failed", "analysis_id", analysis.ID, "error", err)
		set.Status = model.RecommendationStatusFailed
		set.ErrorMessage = err.Error()
	} else {
		set.Products = products
	}

	if err := s.recommendationRepo.Upsert(set); err != nil {
		return nil, fmt.Errorf("failed to save recommendations: %w", err)
	}
	slog.Info("recommendations generated", "analysis_id", analysis.ID, "status", set.Status, "products", len(set.Products))
	return set, nil
}

func (s *RecommendationService) products(ctx context.Context, imageURL string) (model.ProductList, error) {
	content, err := s.analyzer.AnalyzeImage(ctx, s.model, recommendationSystemPrompt, recommendationUserPrompt, imageURL)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Products []model.Product `json:"products"`
	}
	if err := openrouter.DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse recommendations: %w", err)
	}

	out := model.ProductList{}
	for _, p := range parsed.Products {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no products")
	}
	return out, nil
}

// ByAnalysisID returns the stored set, or nil before generation.
func (s *RecommendationService) ByAnalysisID(analysisID string) (*model.RecommendationSet, error) {
	set, err := s.recommendationRepo.ByAnalysisID(analysisID)
	if errors.Is(err, repository.ErrRecommendationNotFound) {
		return nil, nil
	}
	return set, err
}
