package payment

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/parallelhq/parallel/internal/config"
	"github.com/parallelhq/parallel/internal/model"
	"github.com/parallelhq/parallel/internal/repository"
	"github.com/parallelhq/parallel/internal/service"
	"github.com/parallelhq/parallel/internal/testsupport"
)

const testWebhookSecret = "whsec_test_secret"

func newTestProvider(t *testing.T) (*StripeProvider, repository.SubscriptionRepository, *model.User) {
	t.Helper()

	conn := testsupport.MustOpenDB(t)
	user := testsupport.NewUser(t, conn, "billing@example.com")
	repo := repository.NewSubscriptionRepository(conn)
	cfg := &config.Config{
		AppURL:              "http://localhost:8090",
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: testWebhookSecret,
		StripePriceID:       "price_123",
		StripePlanName:      "parallel",
	}
	return NewStripeProvider(cfg, service.NewSubscriptionService(repo)), repo, user
}

func signedHeaders(t *testing.T, payload string) ([]byte, http.Header) {
	t.Helper()

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	headers := http.Header{}
	headers.Set("Stripe-Signature", signed.Header)
	return signed.Payload, headers
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	provider, _, _ := newTestProvider(t)

	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1,v1=deadbeef")
	err := provider.HandleWebhook([]byte(`{"id":"evt_1","type":"ping","data":{"object":{}}}`), headers)
	if err == nil {
		t.Fatal("HandleWebhook accepted an invalid signature")
	}
}

func TestCheckoutThenPastDueStaysEntitled(t *testing.T) {
	provider, repo, user := newTestProvider(t)

	checkout := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{
		"id":"cs_1","customer":"cus_1","subscription":"sub_1","payment_status":"paid",
		"client_reference_id":%q,"metadata":{"user_id":%q}}}}`, user.ID, user.ID)
	payload, headers := signedHeaders(t, checkout)
	if err := provider.HandleWebhook(payload, headers); err != nil {
		t.Fatalf("checkout webhook: %v", err)
	}

	sub, err := repo.LatestByUserID(user.ID)
	if err != nil {
		t.Fatalf("LatestByUserID: %v", err)
	}
	if sub.Status != model.SubscriptionStatusActive {
		t.Fatalf("status = %q, want active", sub.Status)
	}

	// No metadata on the update: attributed through the stored subscription id
	updated := `{"id":"evt_2","object":"event","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_1","customer":"cus_1","status":"past_due","cancel_at_period_end":false,
		"items":{"data":[{"current_period_start":1700000000,"current_period_end":1702592000,"price":{"id":"price_123"}}]}}}}`
	payload, headers = signedHeaders(t, updated)
	if err := provider.HandleWebhook(payload, headers); err != nil {
		t.Fatalf("update webhook: %v", err)
	}

	sub, err = repo.ByStripeSubscriptionID("sub_1")
	if err != nil {
		t.Fatalf("ByStripeSubscriptionID: %v", err)
	}
	if sub.Status != model.SubscriptionStatusPastDue {
		t.Fatalf("status = %q, want past_due", sub.Status)
	}
	if sub.PeriodEnd == nil || sub.PeriodEnd.Unix() != 1702592000 {
		t.Fatalf("period end = %v, want item period", sub.PeriodEnd)
	}

	ok, err := repo.HasEntitled(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("HasEntitled: %v", err)
	}
	if !ok {
		t.Fatal("past_due subscription should remain entitled")
	}
}

func TestSubscriptionDeletedRevokesEntitlement(t *testing.T) {
	provider, repo, user := newTestProvider(t)

	created := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"customer.subscription.created","data":{"object":{
		"id":"sub_9","customer":"cus_9","status":"active","current_period_start":1700000000,
		"current_period_end":1702592000,"metadata":{"user_id":%q}}}}`, user.ID)
	payload, headers := signedHeaders(t, created)
	if err := provider.HandleWebhook(payload, headers); err != nil {
		t.Fatalf("created webhook: %v", err)
	}

	deleted := `{"id":"evt_2","object":"event","type":"customer.subscription.deleted","data":{"object":{
		"id":"sub_9","customer":"cus_9","status":"canceled"}}}`
	payload, headers = signedHeaders(t, deleted)
	if err := provider.HandleWebhook(payload, headers); err != nil {
		t.Fatalf("deleted webhook: %v", err)
	}

	ok, err := repo.HasEntitled(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("HasEntitled: %v", err)
	}
	if ok {
		t.Fatal("canceled subscription should not be entitled")
	}
}

func TestUnknownSubscriptionOwnerIsSkipped(t *testing.T) {
	provider, _, _ := newTestProvider(t)

	orphan := `{"id":"evt_1","object":"event","type":"customer.subscription.updated","data":{"object":{
		"id":"sub_orphan","customer":"cus_unknown","status":"active"}}}`
	payload, headers := signedHeaders(t, orphan)
	if err := provider.HandleWebhook(payload, headers); err != nil {
		t.Fatalf("orphan webhook should be acknowledged, got %v", err)
	}
}
