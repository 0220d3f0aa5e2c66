package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/parallelhq/parallel/internal/model"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

type SubscriptionRepository interface {
	Create(sub *model.Subscription) error
	LatestByUserID(userID string) (*model.Subscription, error)
	ByStripeSubscriptionID(stripeSubID string) (*model.Subscription, error)
	ByStripeCustomerID(stripeCustomerID string) (*model.Subscription, error)
	HasEntitled(ctx context.Context, userID string) (bool, error)
	Update(sub *model.Subscription) error
}

type subscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *model.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, plan, stripe_customer_id, stripe_subscription_id,
			status, period_start, period_end, cancel_at_period_end,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		query,
		sub.ID,
		sub.UserID,
		sub.Plan,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.Status,
		sub.PeriodStart,
		sub.PeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

// LatestByUserID returns the most recently updated subscription of the user.
func (r *subscriptionRepository) LatestByUserID(userID string) (*model.Subscription, error) {
	return r.get(`SELECT * FROM subscriptions WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`, userID)
}

func (r *subscriptionRepository) ByStripeSubscriptionID(stripeSubID string) (*model.Subscription, error) {
	return r.get(`SELECT * FROM subscriptions WHERE stripe_subscription_id = $1`, stripeSubID)
}

func (r *subscriptionRepository) ByStripeCustomerID(stripeCustomerID string) (*model.Subscription, error) {
	return r.get(`SELECT * FROM subscriptions WHERE stripe_customer_id = $1 ORDER BY updated_at DESC LIMIT 1`, stripeCustomerID)
}

func (r *subscriptionRepository) get(query string, arg any) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := r.db.Get(sub, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// HasEntitled reports whether any of the user's subscriptions is in an entitled status.
func (r *subscriptionRepository) HasEntitled(ctx context.Context, userID string) (bool, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM subscriptions WHERE user_id = ? AND status IN (?)`,
		userID, model.EntitledStatuses)
	if err != nil {
		return false, err
	}

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *subscriptionRepository) Update(sub *model.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan = $1,
		    stripe_customer_id = $2,
		    stripe_subscription_id = $3,
		    status = $4,
		    period_start = $5,
		    period_end = $6,
		    cancel_at_period_end = $7,
		    updated_at = $8
		WHERE id = $9
	`

	result, err := r.db.Exec(
		query,
		sub.Plan,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.Status,
		sub.PeriodStart,
		sub.PeriodEnd,
		sub.CancelAtPeriodEnd,
		time.Now().UTC(),
		sub.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrSubscriptionNotFound)
}
