package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/parallelhq/parallel/internal/ctxkeys"
	"github.com/parallelhq/parallel/internal/rpc"
	"github.com/parallelhq/parallel/internal/service"
	"github.com/parallelhq/parallel/internal/service/payment"
)

const maxWebhookBody = 1 << 20

type BillingHandler struct {
	subscriptionService *service.SubscriptionService
	paymentService      payment.Provider // nil when billing is not configured
}

func NewBillingHandler(subscriptionService *service.SubscriptionService, paymentService payment.Provider) *BillingHandler {
	return &BillingHandler{
		subscriptionService: subscriptionService,
		paymentService:      paymentService,
	}
}

func (h *BillingHandler) Register(r *rpc.Router) {
	rpc.Query(r, "subscription.isSubscribed", rpc.Authenticated, h.isSubscribed)
}

func (h *BillingHandler) isSubscribed(ctx context.Context, call *rpc.Call, _ struct{}) (bool, error) {
	return h.subscriptionService.IsSubscribed(ctx, call.User.ID)
}

func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.paymentService == nil {
		writeError(w, http.StatusServiceUnavailable, payment.ErrNotConfigured.Error())
		return
	}
	user := ctxkeys.User(r.Context())

	checkoutURL, err := h.paymentService.CreateCheckoutURL(user)
	if err != nil {
		slog.Error("failed to create checkout", "error", err, "user_id", user.ID, "provider", h.paymentService.Name())
		writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	slog.Info("checkout created", "user_id", user.ID, "provider", h.paymentService.Name())
	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

func (h *BillingHandler) CustomerPortal(w http.ResponseWriter, r *http.Request) {
	if h.paymentService == nil {
		writeError(w, http.StatusServiceUnavailable, payment.ErrNotConfigured.Error())
		return
	}
	user := ctxkeys.User(r.Context())

	portalURL, err := h.paymentService.CustomerPortalURL(user.ID)
	if errors.Is(err, payment.ErrNoCustomer) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to get customer portal", "error", err, "user_id", user.ID, "provider", h.paymentService.Name())
		writeError(w, http.StatusInternalServerError, "failed to access customer portal")
		return
	}

	http.Redirect(w, r, portalURL, http.StatusSeeOther)
}

func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.paymentService == nil {
		writeError(w, http.StatusServiceUnavailable, payment.ErrNotConfigured.Error())
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		slog.Error("failed to read webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	if err := h.paymentService.HandleWebhook(payload, r.Header); err != nil {
		slog.Error("failed to handle webhook", "error", err, "provider", h.paymentService.Name())
		writeError(w, http.StatusBadRequest, "failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
