package api

import (
	"log/slog"
	"net/http"

	"pixelgrid/internal/handler/httperr"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/commands"
	"pixelgrid/internal/usecase/shared"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	checkout commands.CheckoutCommands
}

func NewWebhookHandler(checkout commands.CheckoutCommands) *WebhookHandler {
	return &WebhookHandler{checkout: checkout}
}

// @Summary Payment provider webhook
// @Description Signature-verified provider event; drives the referenced order. Non-2xx asks the provider to redeliver.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} httperr.Response
// @Failure 503 {object} httperr.Response
// @Router /api/webhooks/payment [post]
func (h *WebhookHandler) Payment(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		httperr.AbortWithError(c, http.StatusBadRequest, err, "Unreadable body", nil)
		return
	}
	if err := h.checkout.HandleWebhook(c.Request.Context(), c.Request.Header, body); err != nil {
		if errs.Is(err, shared.ErrInvalidWebhookSignature) {
			slog.Warn("rejected payment webhook", "error", err.Error())
			httperr.AbortWithError(c, http.StatusBadRequest, err, "Invalid webhook", nil)
			return
		}
		httperr.AbortWithError(c, http.StatusServiceUnavailable, err, "Webhook not processed, retry later", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
