package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvdeventer/drive-alive-api/internal/dto"
	"github.com/mvdeventer/drive-alive-api/internal/service"
	appErrors "github.com/mvdeventer/drive-alive-api/pkg/errors"
	"github.com/mvdeventer/drive-alive-api/pkg/response"
)

// WebhookHandler receives settlement notifications from the payment
// gateway.
type WebhookHandler struct {
	settlements *service.SettlementService
	secret      string
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(settlements *service.SettlementService, secret string) *WebhookHandler {
	return &WebhookHandler{settlements: settlements, secret: secret}
}

// Notify godoc
// @Summary Payment gateway webhook
// @Description Settles a payment session. Responds 200 for every final outcome so the gateway stops redelivering; non-2xx means transient failure and the gateway should retry.
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Webhook-Secret header string true "Shared webhook secret"
// @Param payload body dto.GatewayNotification true "Settlement notification"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /payments/notify [post]
func (h *WebhookHandler) Notify(c *gin.Context) {
	provided := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook secret"))
		return
	}

	var notification dto.GatewayNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notification payload"))
		return
	}

	result, err := h.settlements.Settle(c.Request.Context(), notification)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.SettlementResponse{
		Outcome:    string(result.Outcome),
		Reason:     result.Reason,
		BookingIDs: result.BookingIDs,
	}, nil)
}
