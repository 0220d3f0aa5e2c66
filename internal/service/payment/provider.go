package payment

import (
	"net/http"

	"github.com/parallelhq/parallel/internal/model"
)

// Provider defines the billing operations the HTTP layer needs.
type Provider interface {
	// CreateCheckoutURL starts a subscription checkout for the user
	CreateCheckoutURL(user *model.User) (string, error)

	// CustomerPortalURL opens the self-service billing portal
	CustomerPortalURL(userID string) (string, error)

	// HandleWebhook verifies and applies a provider webhook
	HandleWebhook(payload []byte, headers http.Header) error

	Name() string
}
