package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/openrouter"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/validation"
)

// ImageGenerator produces an edited version of a source image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, model, prompt, imageURL string) (openrouter.Image, error)
}

var morphPrompts = map[string]string{
	model.MorphVariantOverall: "Edit this portrait into a subtly improved version of the same person: even skin, rested eyes, defined jawline. Keep identity, pose, lighting and background. Return one image.",
	model.MorphVariantEyes:    "Edit only the eye area of this portrait: brighter eyes, reduced dark circles and puffiness. Keep everything else unchanged. Return one image.",
	model.MorphVariantSkin:    "Edit only the skin in this portrait: smoother texture, even tone, reduced blemishes, natural pores. Keep everything else unchanged. Return one image.",
	model.MorphVariantJawline: "Edit only the lower face of this portrait: a slightly more defined jawline and chin. Keep everything else unchanged. Return one image.",
}

// MorphService generates the four morph variants of an analysis together
// with its product recommendations.
type MorphService struct {
	analysisRepo    repository.AnalysisRepository
	morphRepo       repository.MorphRepository
	files           *FileService
	images          ImageGenerator
	recommendations *RecommendationService
	model           string
	variantDelay    time.Duration
	timeout         time.Duration

	inflight keyedLock
	wg       sync.WaitGroup
}

type MorphConfig struct {
	Model        string
	VariantDelay time.Duration // pause between variant calls
	Timeout      time.Duration // bound for a background run
}

func NewMorphService(
	analysisRepo repository.AnalysisRepository,
	morphRepo repository.MorphRepository,
	files *FileService,
	images ImageGenerator,
	recommendations *RecommendationService,
	cfg MorphConfig,
) *MorphService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &MorphService{
		analysisRepo:    analysisRepo,
		morphRepo:       morphRepo,
		files:           files,
		images:          images,
		recommendations: recommendations,
		model:           cfg.Model,
		variantDelay:    cfg.VariantDelay,
		timeout:         cfg.Timeout,
		inflight:        keyedLock{held: make(map[string]struct{})},
	}
}

// Start claims the analysis and generates in the background, detached from
// the caller's cancellation. It returns the claimed (processing) set.
func (s *MorphService) Start(ctx context.Context, analysisID string) (*model.MorphSet, error) {
	analysis, set, err := s.claim(analysisID)
	if err != nil {
		return nil, err
	}

	claimed := *set
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.inflight.Unlock(analysisID)

		if _, err := s.run(runCtx, analysis, set); err != nil {
			slog.Error("morph generation failed", "analysis_id", analysisID, "error", err)
		}
	}()

	return &claimed, nil
}

// Generate claims the analysis and generates synchronously.
func (s *MorphService) Generate(ctx context.Context, analysisID string) (*model.MorphSet, error) {
	analysis, set, err := s.claim(analysisID)
	if err != nil {
		return nil, err
	}
	defer s.inflight.Unlock(analysisID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.run(ctx, analysis, set)
}

// Wait blocks until background generations finish.
func (s *MorphService) Wait() {
	s.wg.Wait()
}

// claim takes the in-process lock, then the database claim. Either failing
// means another generation owns the analysis. A database claim older than the
// run timeout belongs to a dead run and is taken over.
func (s *MorphService) claim(analysisID string) (*model.Analysis, *model.MorphSet, error) {
	analysis, err := s.analysisRepo.ByID(analysisID)
	if err != nil {
		return nil, nil, err
	}

	if !s.inflight.TryLock(analysisID) {
		return nil, nil, ErrGenerationInProgress
	}

	set, err := s.morphRepo.Claim(analysisID, time.Now().UTC().Add(-s.timeout))
	if err != nil {
		s.inflight.Unlock(analysisID)
		if errors.Is(err, repository.ErrMorphSetAlreadyClaimed) {
			return nil, nil, ErrGenerationInProgress
		}
		return nil, nil, fmt.Errorf("failed to claim morph set: %w", err)
	}

	slog.Info("morph generation claimed", "analysis_id", analysisID, "user_id", analysis.UserID)
	return analysis, set, nil
}

// run generates morphs and recommendations concurrently. Neither side cancels
// the other. When the morph set cannot be finished it is released as failed.
func (s *MorphService) run(ctx context.Context, analysis *model.Analysis, set *model.MorphSet) (*model.MorphSet, error) {
	var morphErr, recErr error
	var g errgroup.Group
	g.Go(func() error {
		morphErr = s.generateVariants(ctx, analysis, set)
		return nil
	})
	if s.recommendations != nil {
		g.Go(func() error {
			_, recErr = s.recommendations.Generate(ctx, analysis)
			return nil
		})
	}
	_ = g.Wait()

	if morphErr != nil {
		if err := s.morphRepo.MarkFailed(set.ID, morphErr.Error()); err != nil {
			slog.Error("failed to release morph set", "analysis_id", analysis.ID, "error", err)
		}
	}
	return set, errors.Join(morphErr, recErr)
}

func (s *MorphService) generateVariants(ctx context.Context, analysis *model.Analysis, set *model.MorphSet) error {
	for i, variant := range model.MorphVariants {
		if i > 0 {
			if err := sleepContext(ctx, s.variantDelay); err != nil {
				set.SetVariant(variant, nil, err.Error())
				continue
			}
		}

		url, err := s.variant(ctx, analysis, variant)
		if err != nil {
			slog.Warn("morph variant failed", "analysis_id", analysis.ID, "variant", variant, "error", err)
			set.SetVariant(variant, nil, err.Error())
			continue
		}
		set.SetVariant(variant, &url, "")
	}

	set.Status = model.MorphStatusCompleted
	set.ErrorMessage = ""
	if set.SucceededCount() == 0 {
		set.Status = model.MorphStatusFailed
		set.ErrorMessage = "all morph variants failed"
	}
	set.UpdatedAt = time.Now().UTC()

	if err := s.morphRepo.Save(set); err != nil {
		return fmt.Errorf("failed to save morph set: %w", err)
	}
	if set.OverallURL != nil {
		if err := s.analysisRepo.SetMorphURL(analysis.ID, set.OverallURL); err != nil {
			return fmt.Errorf("failed to set morph url: %w", err)
		}
	}

	slog.Info("morph generation finished", "analysis_id", analysis.ID, "status", set.Status, "succeeded", set.SucceededCount())
	return nil
}

// variant generates one morph and returns a durable URL for it. Inline images
// are stored; remote URLs are kept as returned.
func (s *MorphService) variant(ctx context.Context, analysis *model.Analysis, variant string) (string, error) {
	img, err := s.images.GenerateImage(ctx, s.model, morphPrompts[variant], analysis.FrontURL)
	if err != nil {
		return "", err
	}
	if !img.IsDataURI() {
		return img.URL, nil
	}

	_, data, err := openrouter.DecodeDataURI(img.URL)
	if err != nil {
		return "", err
	}
	mimeType, err := validation.ValidateImageBytes(data, validation.PhotoConstraints)
	if err != nil {
		return "", err
	}
	return s.files.SaveMorph(ctx, analysis, variant, mimeType, data)
}

// Morphs returns an analysis' morph set. Owners only see it once the
// analysis is complete; reviewers always do. Nil means nothing to show.
func (s *MorphService) Morphs(viewer *model.User, analysisID string) (*model.MorphSet, error) {
	var analysis *model.Analysis
	var err error
	if viewer.IsReviewer() {
		analysis, err = s.analysisRepo.ByID(analysisID)
	} else {
		analysis, err = s.analysisRepo.ByIDForUser(viewer.ID, analysisID)
	}
	if err != nil {
		return nil, err
	}
	if !viewer.IsReviewer() && !analysis.IsComplete() {
		return nil, nil
	}

	set, err := s.morphRepo.ByAnalysisID(analysisID)
	if errors.Is(err, repository.ErrMorphSetNotFound) {
		return nil, nil
	}
	return set, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// keyedLock is a set of non-blocking per-key locks.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (l *keyedLock) TryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *keyedLock) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
