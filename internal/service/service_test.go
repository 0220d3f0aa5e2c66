package service

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/parallelhq/parallel/internal/markdown"
	"github.com/parallelhq/parallel/internal/openrouter"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/testsupport"
)

type testEnv struct {
	conn    *sqlx.DB
	storage *testsupport.MemStorage

	users           repository.UserRepository
	analyses        repository.AnalysisRepository
	morphs          repository.MorphRepository
	recommendations repository.RecommendationRepository
	submissions     repository.SubmissionRepository

	subscriptionService *SubscriptionService
	analysisService     *AnalysisService
	submissionService   *SubmissionService
	fileService         *FileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn := testsupport.MustOpenDB(t)
	env := &testEnv{
		conn:            conn,
		storage:         testsupport.NewMemStorage(),
		users:           repository.NewUserRepository(conn),
		analyses:        repository.NewAnalysisRepository(conn),
		morphs:          repository.NewMorphRepository(conn),
		recommendations: repository.NewRecommendationRepository(conn),
		submissions:     repository.NewSubmissionRepository(conn),
	}
	email := NewEmailService("", "noreply@example.com", "http://localhost", "Parallel", true)
	env.subscriptionService = NewSubscriptionService(repository.NewSubscriptionRepository(conn))
	env.fileService = NewFileService(repository.NewFileRepository(conn), env.storage)
	env.analysisService = NewAnalysisService(
		env.analyses,
		repository.NewIntakeRepository(conn),
		env.users,
		env.morphs,
		env.recommendations,
		env.subscriptionService,
		email,
		markdown.NewParser(),
	)
	env.submissionService = NewSubmissionService(env.submissions, env.users, email)
	return env
}

// fakeImages answers GenerateImage from a per-prompt table.
type fakeImages struct {
	mu      sync.Mutex
	results map[string]openrouter.Image
	errs    map[string]error
	calls   []string
	block   chan struct{}
}

func (f *fakeImages) GenerateImage(ctx context.Context, model, prompt, imageURL string) (openrouter.Image, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return openrouter.Image{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prompt)
	if err := f.errs[prompt]; err != nil {
		return openrouter.Image{}, err
	}
	if img, ok := f.results[prompt]; ok {
		return img, nil
	}
	return openrouter.Image{URL: "https://cdn.example.com/default.png", Shape: openrouter.ShapeRemoteURL}, nil
}

type fakeAnalyzer struct {
	content string
	err     error
}

func (f *fakeAnalyzer) AnalyzeImage(ctx context.Context, model, systemPrompt, userPrompt, imageURL string) (string, error) {
	return f.content, f.err
}
