package handler

import (
	"survey-public-api/internal/adapter/http/dto"
	"survey-public-api/internal/core/ports"
	"survey-public-api/pkg/pagination"
	"survey-public-api/pkg/response"

	"github.com/gin-gonic/gin"
)

// SurveyHandler serves /surveys.
type SurveyHandler struct {
	surveySvc ports.SurveyService
}

// NewSurveyHandler creates a new SurveyHandler.
func NewSurveyHandler(surveySvc ports.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveySvc: surveySvc}
}

// List handles GET /api/v1/surveys.
func (h *SurveyHandler) List(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := pageParams(c)

	surveys, total, err := h.surveySvc.List(c.Request.Context(), id.Subject, page)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, pagination.BuildResponse(dto.Resources(surveys, dto.SurveyResource), requestURL(c), page.Page, page.Limit, total))
}

// Create handles POST /api/v1/surveys.
func (h *SurveyHandler) Create(c *gin.Context) {
	id, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreateSurveyRequest
	if err := dto.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	survey, err := h.surveySvc.Create(c.Request.Context(), id.Subject, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.SurveyResource(survey)
	response.Created(c, res.Type, res.ID, res.Attributes)
}

// Get handles GET /api/v1/surveys/:id.
func (h *SurveyHandler) Get(c *gin.Context) {
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

	survey, err := h.surveySvc.Get(c.Request.Context(), id.Subject, surveyID)
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.SurveyResource(survey)
	response.OK(c, res.Type, res.ID, res.Attributes)
}

// Update handles PATCH /api/v1/surveys/:id.
func (h *SurveyHandler) Update(c *gin.Context) {
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

	var req dto.UpdateSurveyRequest
	if err := dto.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	survey, err := h.surveySvc.Update(c.Request.Context(), id.Subject, surveyID, req.ToInput())
	if err != nil {
		response.Error(c, err)
		return
	}

	res := dto.SurveyResource(survey)
	response.OK(c, res.Type, res.ID, res.Attributes)
}

// Delete handles DELETE /api/v1/surveys/:id.
func (h *SurveyHandler) Delete(c *gin.Context) {
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

	if err := h.surveySvc.Delete(c.Request.Context(), id.Subject, surveyID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
