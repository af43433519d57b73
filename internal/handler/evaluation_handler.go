package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/service"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/response"
)

// EvaluationHandler exposes tuteur assessment endpoints.
type EvaluationHandler struct {
	service *service.EvaluationService
}

// NewEvaluationHandler creates a new handler.
func NewEvaluationHandler(svc *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// List godoc
// @Summary List evaluations
// @Description List assessments visible to the caller
// @Tags Evaluations
// @Produce json
// @Param stagiaireId query string false "Filter by stagiaire"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	query := dto.EvaluationQuery{
		StagiaireID: c.Query("stagiaireId"),
		Page:        queryInt(c, "page", 1),
		PageSize:    queryInt(c, "pageSize", 20),
	}
	evaluations, pagination, err := h.service.List(c.Request.Context(), query, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluations, pagination)
}

// Get godoc
// @Summary Get evaluation
// @Description Fetch a single assessment
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	evaluation, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Create godoc
// @Summary Create evaluation
// @Description Record an assessment for a supervised stagiaire
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body dto.CreateEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	var req dto.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	evaluation, err := h.service.Create(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, evaluation)
}

// Update godoc
// @Summary Update evaluation
// @Description Edit an assessment the caller authored
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload body dto.UpdateEvaluationRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [put]
func (h *EvaluationHandler) Update(c *gin.Context) {
	var req dto.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	evaluation, err := h.service.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Delete godoc
// @Summary Delete evaluation
// @Description Remove an assessment
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
