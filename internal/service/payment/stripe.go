package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/service"
)

var ErrNoCustomer = errors.New("no billing account for this user")

type StripeProvider struct {
	cfg                 *config.Config
	subscriptionService *service.SubscriptionService
}

func NewStripeProvider(cfg *config.Config, subscriptionService *service.SubscriptionService) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey

	return &StripeProvider{
		cfg:                 cfg,
		subscriptionService: subscriptionService,
	}
}

func (s *StripeProvider) Name() string {
	return "stripe"
}

func (s *StripeProvider) CreateCheckoutURL(user *model.User) (string, error) {
	customerID, err := s.subscriptionService.CustomerID(user.ID)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{"user_id": user.ID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.cfg.AppURL + "/create-analysis?checkout=success"),
		CancelURL:         stripe.String(s.cfg.AppURL + "/payment"),
		ClientReferenceID: stripe.String(user.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	slog.Info("stripe checkout created", "user_id", user.ID, "session_id", sess.ID)
	return sess.URL, nil
}

func (s *StripeProvider) CustomerPortalURL(userID string) (string, error) {
	customerID, err := s.subscriptionService.CustomerID(userID)
	if err != nil {
		return "", err
	}
	if customerID == "" {
		return "", ErrNoCustomer
	}

	portal, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.cfg.AppURL + "/analysis"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create customer portal session: %w", err)
	}

	slog.Info("stripe customer portal session created", "user_id", userID)
	return portal.URL, nil
}

func (s *StripeProvider) HandleWebhook(payload []byte, headers http.Header) error {
	// Stripe API versions are backwards compatible for the fields read here
	event, err := webhook.ConstructEventWithOptions(
		payload,
		headers.Get("Stripe-Signature"),
		s.cfg.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return fmt.Errorf("failed to verify webhook signature: %w", err)
	}

	slog.Info("stripe webhook received", "event_type", event.Type, "event_id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutSessionCompleted(event.Data.Raw)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		return s.handleSubscriptionChanged(event.Data.Raw)
	case "invoice.payment_failed":
		return s.handleInvoicePaymentFailed(event.Data.Raw)
	default:
		slog.Debug("stripe webhook ignored", "event_type", event.Type)
		return nil
	}
}

func (s *StripeProvider) handleCheckoutSessionCompleted(data json.RawMessage) error {
	var checkout struct {
		CustomerID        string            `json:"customer"`
		SubscriptionID    string            `json:"subscription"`
		ClientReferenceID string            `json:"client_reference_id"`
		PaymentStatus     string            `json:"payment_status"`
		Metadata          map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &checkout); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := checkout.Metadata["user_id"]
	if userID == "" {
		userID = checkout.ClientReferenceID
	}
	if userID == "" || checkout.SubscriptionID == "" {
		slog.Warn("stripe checkout session without user or subscription, skipping")
		return nil
	}

	status := model.SubscriptionStatusActive
	if checkout.PaymentStatus != "paid" && checkout.PaymentStatus != "no_payment_required" {
		status = model.SubscriptionStatusIncomplete
	}

	_, err := s.subscriptionService.ApplyStripeSubscription(service.StripeSubscription{
		UserID:         userID,
		CustomerID:     checkout.CustomerID,
		SubscriptionID: checkout.SubscriptionID,
		Plan:           s.cfg.StripePlanName,
		Status:         status,
	})
	return err
}

// stripeSubscriptionObject covers both the legacy top-level period fields and
// the per-item periods of newer API versions.
type stripeSubscriptionObject struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (o *stripeSubscriptionObject) period() (*time.Time, *time.Time) {
	start, end := o.CurrentPeriodStart, o.CurrentPeriodEnd
	if start == 0 && len(o.Items.Data) > 0 {
		start, end = o.Items.Data[0].CurrentPeriodStart, o.Items.Data[0].CurrentPeriodEnd
	}
	return unixPtr(start), unixPtr(end)
}

func (s *StripeProvider) handleSubscriptionChanged(data json.RawMessage) error {
	var obj stripeSubscriptionObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	plan := ""
	if len(obj.Items.Data) > 0 && obj.Items.Data[0].Price.ID == s.cfg.StripePriceID {
		plan = s.cfg.StripePlanName
	}
	start, end := obj.period()

	_, err := s.subscriptionService.ApplyStripeSubscription(service.StripeSubscription{
		UserID:            obj.Metadata["user_id"],
		CustomerID:        obj.CustomerID,
		SubscriptionID:    obj.ID,
		Plan:              plan,
		Status:            obj.Status,
		PeriodStart:       start,
		PeriodEnd:         end,
		CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
	})
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		slog.Warn("stripe subscription has unknown owner, skipping", "stripe_sub_id", obj.ID, "customer_id", obj.CustomerID)
		return nil
	}
	return err
}

func (s *StripeProvider) handleInvoicePaymentFailed(data json.RawMessage) error {
	var invoice struct {
		SubscriptionID string `json:"subscription"`
	}
	if err := json.Unmarshal(data, &invoice); err != nil {
		return fmt.Errorf("failed to parse invoice: %w", err)
	}

	// Stripe retries and reports past_due/unpaid through subscription.updated
	slog.Warn("stripe invoice payment failed", "stripe_sub_id", invoice.SubscriptionID)
	return nil
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
