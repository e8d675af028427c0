// Package gateway integrates with the external payment provider. The
// provider is redirect-based: we stage a session, send the client to the
// hosted checkout page, and learn the outcome through a webhook.
package gateway

import (
	"net/url"
	"strconv"

	"github.com/mvdeventer/drive-alive-api/internal/models"
	"github.com/mvdeventer/drive-alive-api/pkg/config"
)

// CheckoutClient builds hosted checkout redirect URLs.
type CheckoutClient struct {
	baseURL string
}

// NewCheckoutClient creates a checkout client from payment config.
func NewCheckoutClient(cfg config.PaymentConfig) *CheckoutClient {
	return &CheckoutClient{baseURL: cfg.CheckoutBaseURL}
}

// CheckoutURL returns the hosted checkout page for a staged session. The
// session id doubles as the gateway reference; the provider echoes it back
// in the settlement webhook.
func (c *CheckoutClient) CheckoutURL(session *models.PaymentSession) string {
	values := url.Values{}
	values.Set("session_id", session.ID)
	values.Set("amount", strconv.FormatInt(session.TotalAmount, 10))
	return c.baseURL + "?" + values.Encode()
}
