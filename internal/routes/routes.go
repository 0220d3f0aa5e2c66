package routes

import (
	"net/http"

	"github.com/parallelhq/parallel/internal/app"
	"github.com/parallelhq/parallel/internal/handler"
	"github.com/parallelhq/parallel/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.Cfg)
	journey := handler.NewJourneyHandler(app.JourneyService)
	billing := handler.NewBillingHandler(app.SubscriptionService, app.PaymentService)
	ai := handler.NewAIHandler(app.OpenRouter, app.Zyla, app.Cfg.OpenRouterAnalysisModel, app.Cfg.IsDevelopment())
	orient := handler.NewOrientHandler(app.Orienter)
	tempImage := handler.NewTempImageHandler(app.TempImages, app.Cfg.AppURL)
	upload := handler.NewUploadHandler(app.FileService)

	rpcRouter := handler.NewRPCRouter(app.SubscriptionService,
		journey,
		billing,
		handler.NewIntakeHandler(app.IntakeService),
		handler.NewAnalysisHandler(app.AnalysisService),
		handler.NewSubmissionHandler(app.SubmissionService),
		handler.NewMorphHandler(app.MorphService),
		handler.NewReviewHandler(app.AnalysisService, app.SubmissionService),
	)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /api/redirect", journey.Redirect)

	// Auth (rate limited)
	rateLimitAuth := middleware.RateLimitAuth()

	mux.HandleFunc("POST /api/auth/sign-up", rateLimitAuth(auth.SignUp))
	mux.HandleFunc("POST /api/auth/sign-in", rateLimitAuth(auth.SignIn))
	mux.HandleFunc("POST /api/auth/sign-out", auth.SignOut)
	mux.HandleFunc("GET /api/auth/session", auth.Session)
	mux.HandleFunc("GET /api/auth/google", rateLimitAuth(auth.GoogleAuth))
	mux.HandleFunc("GET /api/auth/google/callback", rateLimitAuth(auth.GoogleCallback))

	// Procedures (tiers are enforced by the router)
	mux.Handle("GET /api/rpc/{procedure}", rpcRouter)
	mux.Handle("POST /api/rpc/{procedure}", rpcRouter)

	// AI proxies (rate limited)
	rateLimitAI := middleware.RateLimitAI()

	mux.HandleFunc("POST /api/openrouter-analyze", rateLimitAI(ai.OpenRouterAnalyze))
	mux.HandleFunc("POST /api/zyla-analyze", rateLimitAI(ai.ZylaAnalyze))

	// Images
	mux.HandleFunc("GET /api/orient", rateLimitAI(orient.Orient))
	mux.HandleFunc("POST /api/temp-image-upload", rateLimitAI(tempImage.Upload))
	mux.HandleFunc("GET /api/temp-image/{id}", tempImage.Get)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	// Uploads
	mux.HandleFunc("POST /api/uploads/submission-photo", middleware.RequireAuth(upload.Photo))
	mux.HandleFunc("POST /api/uploads/analysis-photo", middleware.RequireSubscribed(app.SubscriptionService)(upload.Photo))

	// Billing
	mux.HandleFunc("POST /api/billing/checkout", middleware.RequireAuth(billing.CreateCheckout))
	mux.HandleFunc("GET /api/billing/portal", middleware.RequireAuth(billing.CustomerPortal))

	// ============================================================================
	// WEBHOOKS
	// ============================================================================

	mux.HandleFunc("POST /webhooks/stripe", billing.Webhook)

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.Recover,
		middleware.RealIP(app.Cfg.TrustedProxies),
		middleware.RequestID,
		middleware.Config(app.Cfg),
		middleware.RequestLogging,
		middleware.CSRFProtection, // webhooks are exempt
		middleware.Authenticate(app.AuthService),
	)
}
