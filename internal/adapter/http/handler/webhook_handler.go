package handler

import (
	"survey-public-api/internal/adapter/http/dto"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/pagination"
	"survey-public-api/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler serves /webhooks.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := pageParams(c)

	subs, total, err := h.webhookSvc.List(c.Request.Context(), id.Subject, page)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, pagination.BuildResponse(dto.Resources(subs, dto.WebhookResource), requestURL(c), page.Page, page.Limit, total))
}

// Create handles POST /api/v1/webhooks. The secret is only returned here.
func (h *WebhookHandler) Create(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateWebhookRequest
	if err := dto.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.webhookSvc.Create(c.Request.Context(), id.Subject, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.CreatedWebhookResource(created)
	response.Created(c, res.Type, res.ID, res.Attributes)
}

// Get handles GET /api/v1/webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	webhookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	sub, err := h.webhookSvc.Get(c.Request.Context(), id.Subject, webhookID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.WebhookResource(sub)
	response.OK(c, res.Type, res.ID, res.Attributes)
}

// Delete handles DELETE /api/v1/webhooks/:id.
func (h *WebhookHandler) Delete(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	webhookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.webhookSvc.Delete(c.Request.Context(), id.Subject, webhookID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Test handles POST /api/v1/webhooks/:id/test. It waits for the delivery outcome.
func (h *WebhookHandler) Test(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	webhookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	rec, err := h.webhookSvc.Test(c.Request.Context(), id.Subject, webhookID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.DeliveryResource(rec)
	response.OK(c, res.Type, res.ID, res.Attributes)
}

// Deliveries handles GET /api/v1/webhooks/:id/deliveries.
func (h *WebhookHandler) Deliveries(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	webhookID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	page := pageParams(c)

	records, total, err := h.webhookSvc.Deliveries(c.Request.Context(), id.Subject, webhookID, page)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, pagination.BuildResponse(dto.Resources(records, dto.DeliveryResource), requestURL(c), page.Page, page.Limit, total))
}
