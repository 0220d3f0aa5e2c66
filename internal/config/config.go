package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName      string
	AppEnv       string
	AppURL       string
	Port         string
	SupportEmail string

	// Database (DATABASE_URL switches to postgres, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret      string
	SessionExpiry  time.Duration
	ReviewerEmails []string
	TrustedProxies []string // IPs or CIDRs allowed to set X-Forwarded-For

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Payment - Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	StripePlanName      string

	// AI - OpenRouter
	OpenRouterAPIKey        string
	OpenRouterBaseURL       string
	OpenRouterAnalysisModel string
	OpenRouterImageModel    string
	OpenRouterTimeout       time.Duration
	OpenRouterMaxAttempts   int
	MorphVariantDelay       time.Duration

	// AI - Zyla skin analysis
	ZylaAPIKey  string
	ZylaBaseURL string
	ZylaTimeout time.Duration

	// Temp images (in-memory, process-local)
	TempImageCapacity int
	TempImageTTL      time.Duration

	// Orientation proxy
	OrientMaxBytes int64

	// Observability (optional)
	SentryDSN string

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region               string
	S3Bucket               string
	S3AccessKey            string
	S3SecretKey            string
	S3Endpoint             string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PresignExpiryPublic  time.Duration // Expiry for photo and morph URLs handed to AI providers
	S3PresignExpiryPrivate time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName:      envString("APP_NAME", "Parallel"),
		AppEnv:       envRequired("APP_ENV"), // Required: 'development' or 'production'
		AppURL:       envRequired("APP_URL"), // Required: base URL for email links and OAuth redirects
		Port:         envString("PORT", "8090"),
		SupportEmail: envString("SUPPORT_EMAIL", "hello@example.com"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/parallel.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Security
		JWTSecret:      envRequired("JWT_SECRET"),
		SessionExpiry:  envDuration("SESSION_EXPIRY", 168*time.Hour), // 7 days
		ReviewerEmails: envList("REVIEWER_EMAILS"),
		TrustedProxies: envList("TRUSTED_PROXIES"),

		// OAuth
		GoogleClientID:     envString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: envString("GOOGLE_CLIENT_SECRET", ""),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Payment
		StripeSecretKey:     envString("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: envString("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       envString("STRIPE_PRICE_ID", ""),
		StripePlanName:      envString("STRIPE_PLAN_NAME", "parallel"),

		// AI
		OpenRouterAPIKey:        envString("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:       envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterAnalysisModel: envString("OPENROUTER_ANALYSIS_MODEL", "openai/gpt-5"),
		OpenRouterImageModel:    envString("OPENROUTER_IMAGE_MODEL", "google/gemini-2.5-flash-image-preview"),
		OpenRouterTimeout:       envDuration("OPENROUTER_TIMEOUT", 120*time.Second),
		OpenRouterMaxAttempts:   envInt("OPENROUTER_MAX_ATTEMPTS", 1),
		MorphVariantDelay:       envDuration("MORPH_VARIANT_DELAY", 2*time.Second),
		ZylaAPIKey:              envString("ZYLA_API_KEY", ""),
		ZylaBaseURL:             envString("ZYLA_BASE_URL", "https://zylalabs.com/api/2291/skin+analyze+api/2197/analyze"),
		ZylaTimeout:             envDuration("ZYLA_TIMEOUT", 60*time.Second),

		// Temp images
		TempImageCapacity: envInt("TEMP_IMAGE_CAPACITY", 10),
		TempImageTTL:      envDuration("TEMP_IMAGE_TTL", 15*time.Minute),

		OrientMaxBytes: int64(envInt("ORIENT_MAX_BYTES", 15<<20)),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage (S3-compatible - required for photo uploads and morphs)
		S3Region:               envRequired("S3_REGION"),
		S3Bucket:               envRequired("S3_BUCKET"),
		S3AccessKey:            envRequired("S3_ACCESS_KEY"),
		S3SecretKey:            envRequired("S3_SECRET_KEY"),
		S3Endpoint:             envString("S3_ENDPOINT", ""),                           // Optional: for non-AWS providers
		S3PresignExpiryPublic:  envDuration("S3_PRESIGN_EXPIRY_PUBLIC", 168*time.Hour), // Default: 7 days
		S3PresignExpiryPrivate: envDuration("S3_PRESIGN_EXPIRY_PRIVATE", 1*time.Hour),
	}

	// DATABASE_URL wins over the sqlite defaults
	if dsn := envString("DATABASE_URL", ""); dsn != "" {
		cfg.DBDriver = "pgx"
		cfg.DBConnection = dsn
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to use log mode and AI routes to fail at request time.
func validateProduction(cfg *Config) {
	required := map[string]string{
		"RESEND_API_KEY":        cfg.ResendAPIKey,
		"OPENROUTER_API_KEY":    cfg.OpenRouterAPIKey,
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
		"STRIPE_PRICE_ID":       cfg.StripePriceID,
	}
	for key, value := range required {
		if value == "" {
			slog.Error("production deployment requires "+key,
				"hint", "set APP_ENV=development for local testing")
			os.Exit(1)
		}
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// envList splits a comma separated value, dropping blanks and lowercasing entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsReviewerEmail reports whether email is listed in REVIEWER_EMAILS.
func (c *Config) IsReviewerEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.ReviewerEmails {
		if e == email {
			return true
		}
	}
	return false
}

// Sanitized returns a copy of the config with only public/safe fields.
// All secrets, credentials, and sensitive data are excluded.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:      c.AppName,
		AppEnv:       c.AppEnv,
		AppURL:       c.AppURL,
		Port:         c.Port,
		SupportEmail: c.SupportEmail,

		EmailFrom: c.EmailFrom,

		GoogleClientID: c.GoogleClientID,

		SessionExpiry: c.SessionExpiry,

		S3Endpoint: c.S3Endpoint,
	}
}
