package model

import (
	"time"
)

// Raw Stripe subscription statuses, stored as received.
const (
	SubscriptionStatusActive            = "active"
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCanceled          = "canceled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
	SubscriptionStatusPaused            = "paused"
)

type Subscription struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"userId"`
	Plan                 string     `db:"plan" json:"plan"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripeCustomerId"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripeSubscriptionId"`
	Status               string     `db:"status" json:"status"`
	PeriodStart          *time.Time `db:"period_start" json:"periodStart"`
	PeriodEnd            *time.Time `db:"period_end" json:"periodEnd"`
	CancelAtPeriodEnd    bool       `db:"cancel_at_period_end" json:"cancelAtPeriodEnd"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// EntitledStatuses grant access to paid features. past_due stays entitled
// while Stripe retries the payment.
var EntitledStatuses = []string{
	SubscriptionStatusActive,
	SubscriptionStatusTrialing,
	SubscriptionStatusPastDue,
}

func IsEntitledStatus(status string) bool {
	for _, s := range EntitledStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Subscription) IsEntitled() bool {
	return s != nil && IsEntitledStatus(s.Status)
}
