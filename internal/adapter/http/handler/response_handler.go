package handler

import (
	"survey-public-api/internal/adapter/http/dto"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/pagination"
	"survey-public-api/pkg/response"

	"github.com/gin-gonic/gin"
)

// ResponseHandler serves /surveys/:id/responses.
type ResponseHandler struct {
	responseSvc ports.ResponseService
}

// NewResponseHandler creates a new ResponseHandler.
func NewResponseHandler(responseSvc ports.ResponseService) *ResponseHandler {
	return &ResponseHandler{responseSvc: responseSvc}
}

// List handles GET /api/v1/surveys/:id/responses.
func (h *ResponseHandler) List(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	surveyID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	page := pageParams(c)

	items, total, err := h.responseSvc.List(c.Request.Context(), id.Subject, surveyID, page)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, pagination.BuildResponse(dto.Resources(items, dto.ResponseResource), requestURL(c), page.Page, page.Limit, total))
}

// Create handles POST /api/v1/surveys/:id/responses.
func (h *ResponseHandler) Create(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	surveyID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateResponseRequest
	if err := dto.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.responseSvc.Create(c.Request.Context(), id.Subject, surveyID, req.Answers)
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.ResponseResource(created)
	response.Created(c, res.Type, res.ID, res.Attributes)
}
