package handler

import (
	"errors"
	"io"
	"net/http"

	feeapp "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Gateway webhook headers
const (
	WebhookSignatureHeader = "X-Razorpay-Signature"
	WebhookEventIDHeader   = "X-Razorpay-Event-Id"
)

// WebhookHandler receives payment gateway notifications. The route is
// unauthenticated; the signature over the raw body is the credential.
type WebhookHandler struct {
	BaseHandler
	payments *feeapp.PaymentService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(payments *feeapp.PaymentService) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

// Handle godoc
// @Summary      Receive a gateway webhook
// @Description  Verifies the signature and applies payment.captured / payment.failed events once per event id
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Razorpay-Signature header string true "HMAC-SHA256 of the body"
// @Success      200 {object} dto.Response{data=feeapp.WebhookResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /payments/webhook [post]
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Webhook body exceeds maximum allowed size")
			return
		}
		h.HandleError(c, err)
		return
	}
	signature := c.GetHeader(WebhookSignatureHeader)
	if signature == "" {
		h.BadRequest(c, "Missing "+WebhookSignatureHeader+" header")
		return
	}

	result, err := h.payments.HandleWebhook(c.Request.Context(), payload, signature, c.GetHeader(WebhookEventIDHeader))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
