package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/db"
	"github.com/parallelhq/parallel/internal/imagestore"
	"github.com/parallelhq/parallel/internal/markdown"
	"github.com/parallelhq/parallel/internal/openrouter"
	"github.com/parallelhq/parallel/internal/orient"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/service"
	"github.com/parallelhq/parallel/internal/service/payment"
	"github.com/parallelhq/parallel/internal/storage"
	"github.com/parallelhq/parallel/internal/zyla"
)

const (
	sessionPurgeInterval = time.Hour
	morphRunTimeout      = 15 * time.Minute
)

type App struct {
	Cfg *config.Config
	DB  *sqlx.DB

	AuthService           *service.AuthService
	EmailService          *service.EmailService
	FileService           *service.FileService
	SubscriptionService   *service.SubscriptionService
	PaymentService        payment.Provider // nil when billing is not configured
	JourneyService        *service.JourneyService
	IntakeService         *service.IntakeService
	AnalysisService       *service.AnalysisService
	SubmissionService     *service.SubmissionService
	MorphService          *service.MorphService
	RecommendationService *service.RecommendationService
	UserService           *service.UserService

	OpenRouter *openrouter.Client
	Zyla       *zyla.Client
	Orienter   *orient.Orienter
	TempImages *imagestore.Store

	ownsDB bool
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the database, runs migrations and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database.DB, cfg.DBDriver); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := Wire(cfg, database, fileStorage)
	if err != nil {
		database.Close()
		return nil, err
	}
	a.ownsDB = true
	a.startJanitor()
	return a, nil
}

// Wire builds the services over an open database and object storage.
// The caller keeps ownership of database.
func Wire(cfg *config.Config, database *sqlx.DB, fileStorage storage.Storage) (*App, error) {
	// Repositories
	userRepository := repository.NewUserRepository(database)
	accountRepository := repository.NewAccountRepository(database)
	sessionRepository := repository.NewSessionRepository(database)
	subscriptionRepository := repository.NewSubscriptionRepository(database)
	intakeRepository := repository.NewIntakeRepository(database)
	analysisRepository := repository.NewAnalysisRepository(database)
	submissionRepository := repository.NewSubmissionRepository(database)
	morphRepository := repository.NewMorphRepository(database)
	recommendationRepository := repository.NewRecommendationRepository(database)
	fileRepository := repository.NewFileRepository(database)

	// AI clients
	openrouterClient := openrouter.NewClient(openrouter.Config{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.AppURL,
		Title:   cfg.AppName,
		Timeout: cfg.OpenRouterTimeout,
	}, openrouter.WithRetryMaxAttempts(cfg.OpenRouterMaxAttempts))
	zylaClient := zyla.NewClient(zyla.Config{
		APIKey:  cfg.ZylaAPIKey,
		BaseURL: cfg.ZylaBaseURL,
		Timeout: cfg.ZylaTimeout,
	})

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	fileService := service.NewFileService(fileRepository, fileStorage)
	subscriptionService := service.NewSubscriptionService(subscriptionRepository)

	paymentProvider, err := payment.NewProvider(cfg, subscriptionService)
	if errors.Is(err, payment.ErrNotConfigured) && !cfg.IsProduction() {
		slog.Warn("stripe keys missing, billing routes disabled")
		paymentProvider, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment provider: %w", err)
	}

	authService := service.NewAuthService(
		userRepository,
		accountRepository,
		sessionRepository,
		emailService,
		cfg.JWTSecret,
		cfg.SessionExpiry,
		cfg.IsProduction(),
		cfg.IsReviewerEmail,
	)
	journeyService := service.NewJourneyService(service.NewRepositoryJourneyFacts(
		intakeRepository,
		subscriptionService,
		analysisRepository,
		submissionRepository,
	))
	intakeService := service.NewIntakeService(intakeRepository)
	analysisService := service.NewAnalysisService(
		analysisRepository,
		intakeRepository,
		userRepository,
		morphRepository,
		recommendationRepository,
		subscriptionService,
		emailService,
		markdown.NewParser(),
	)
	submissionService := service.NewSubmissionService(submissionRepository, userRepository, emailService)
	recommendationService := service.NewRecommendationService(recommendationRepository, openrouterClient, cfg.OpenRouterAnalysisModel)
	userService := service.NewUserService(userRepository, fileService, subscriptionService)
	morphService := service.NewMorphService(
		analysisRepository,
		morphRepository,
		fileService,
		openrouterClient,
		recommendationService,
		service.MorphConfig{
			Model:        cfg.OpenRouterImageModel,
			VariantDelay: cfg.MorphVariantDelay,
			Timeout:      morphRunTimeout,
		},
	)

	return &App{
		Cfg:                   cfg,
		DB:                    database,
		AuthService:           authService,
		EmailService:          emailService,
		FileService:           fileService,
		SubscriptionService:   subscriptionService,
		PaymentService:        paymentProvider,
		JourneyService:        journeyService,
		IntakeService:         intakeService,
		AnalysisService:       analysisService,
		SubmissionService:     submissionService,
		MorphService:          morphService,
		RecommendationService: recommendationService,
		UserService:           userService,
		OpenRouter:            openrouterClient,
		Zyla:                  zylaClient,
		Orienter:              orient.New(cfg.OrientMaxBytes, cfg.OpenRouterTimeout),
		TempImages:            imagestore.New(cfg.TempImageCapacity, cfg.TempImageTTL),
		stop:                  func() {},
	}, nil
}

// startJanitor purges expired sessions periodically until Close.
func (a *App) startJanitor() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := a.AuthService.PurgeExpiredSessions()
				if err != nil {
					slog.Error("failed to purge expired sessions", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("expired sessions purged", "count", n)
				}
			}
		}
	}()
}

// Close waits for background generations and closes the database when New opened it.
func (a *App) Close() error {
	a.stop()
	a.wg.Wait()
	a.MorphService.Wait()
	if a.ownsDB {
		return a.DB.Close()
	}
	return nil
}
