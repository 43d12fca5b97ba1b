package handler

import (
	"net/http"

	"admissions_backend/internal/enquiries/transport"
	"admissions_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// PaymentWebhook receives payment confirmations from the payment gateway.
// The route is unauthenticated; the request carries an HMAC signature that
// the service validates before anything else.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var req transport.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.svc.RecordPayment(c.Request.Context(), req); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}
