package payment

import (
	"errors"
	"log/slog"

	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/service"
)

var ErrNotConfigured = errors.New("billing is not configured")

// NewProvider returns the Stripe provider, or ErrNotConfigured when the
// Stripe keys are missing (allowed in development).
func NewProvider(cfg *config.Config, subscriptionService *service.SubscriptionService) (Provider, error) {
	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" || cfg.StripePriceID == "" {
		return nil, ErrNotConfigured
	}

	slog.Info("initializing payment provider", "provider", "stripe")
	return NewStripeProvider(cfg, subscriptionService), nil
}
