package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
)

type SubscriptionService struct {
	repo repository.SubscriptionRepository
}

func NewSubscriptionService(repo repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo}
}

// IsSubscribed reports whether the user holds an entitled subscription
// (active, trialing or past_due).
func (s *SubscriptionService) IsSubscribed(ctx context.Context, userID string) (bool, error) {
	ok, err := s.repo.HasEntitled(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return ok, nil
}

// Latest returns the user's most recent subscription, or nil when there is none.
func (s *SubscriptionService) Latest(userID string) (*model.Subscription, error) {
	sub, err := s.repo.LatestByUserID(userID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionService) CustomerID(userID string) (string, error) {
	sub, err := s.Latest(userID)
	if err != nil {
		return "", err
	}
	if sub == nil || sub.StripeCustomerID == nil {
		return "", nil
	}
	return *sub.StripeCustomerID, nil
}

// StripeSubscription is the billing state carried by a Stripe event.
type StripeSubscription struct {
	UserID            string // from metadata; may be empty
	CustomerID        string
	SubscriptionID    string
	Plan              string
	Status            string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
}

// ApplyStripeSubscription upserts the row for a Stripe subscription. Unknown
// subscriptions are attached to the user named in metadata, or to the owner
// of the customer id.
func (s *SubscriptionService) ApplyStripeSubscription(in StripeSubscription) (*model.Subscription, error) {
	sub, err := s.repo.ByStripeSubscriptionID(in.SubscriptionID)
	if err != nil && !errors.Is(err, repository.ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if sub == nil {
		userID := in.UserID
		if userID == "" && in.CustomerID != "" {
			existing, err := s.repo.ByStripeCustomerID(in.CustomerID)
			if err == nil {
				userID = existing.UserID
			}
		}
		if userID == "" {
			return nil, fmt.Errorf("cannot attribute stripe subscription %s: %w", in.SubscriptionID, repository.ErrSubscriptionNotFound)
		}

		now := time.Now().UTC()
		sub = &model.Subscription{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyStripe(sub, in)
		if err := s.repo.Create(sub); err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		slog.Info("subscription created", "user_id", userID, "stripe_sub_id", in.SubscriptionID, "status", sub.Status)
		return sub, nil
	}

	applyStripe(sub, in)
	if err := s.repo.Update(sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	slog.Info("subscription updated", "user_id", sub.UserID, "stripe_sub_id", in.SubscriptionID, "status", sub.Status)
	return sub, nil
}

func applyStripe(sub *model.Subscription, in StripeSubscription) {
	subID := in.SubscriptionID
	sub.StripeSubscriptionID = &subID
	if in.CustomerID != "" {
		customerID := in.CustomerID
		sub.StripeCustomerID = &customerID
	}
	if in.Plan != "" {
		sub.Plan = in.Plan
	}
	if in.Status != "" {
		sub.Status = in.Status
	}
	if in.PeriodStart != nil {
		sub.PeriodStart = in.PeriodStart
	}
	if in.PeriodEnd != nil {
		sub.PeriodEnd = in.PeriodEnd
	}
	sub.CancelAtPeriodEnd = in.CancelAtPeriodEnd
}

// SetStatus records a raw status for a known Stripe subscription.
func (s *SubscriptionService) SetStatus(stripeSubID, status string) error {
	sub, err := s.repo.ByStripeSubscriptionID(stripeSubID)
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub.Status == status {
		return nil
	}
	sub.Status = status
	if err := s.repo.Update(sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	slog.Info("subscription status changed", "user_id", sub.UserID, "stripe_sub_id", stripeSubID, "status", status)
	return nil
}
