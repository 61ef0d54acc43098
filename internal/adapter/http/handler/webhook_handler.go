package handler

import (
	"io"
	"net/http"

	"pliz-ledger/internal/adapter/http/dto"
	"pliz-ledger/internal/core/ports"
	"pliz-ledger/pkg/apperror"
	"pliz-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderPartnerSignature = "x-partner-hmac-signature"
	HeaderPartnerTopic     = "x-partner-webhook-topic"
)

// WebhookHandler receives partner push notifications.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Receive handles POST /api/v1/webhooks/:partner. The signature covers the
// raw body, so it is read before any decoding.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("unreadable webhook body"))
		return
	}

	err = h.webhookSvc.Handle(c.Request.Context(), ports.WebhookDelivery{
		Partner:     c.Param("partner"),
		Signature:   c.GetHeader(HeaderPartnerSignature),
		HeaderTopic: c.GetHeader(HeaderPartnerTopic),
		Body:        body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAck{Message: "Webhook received"})
}
