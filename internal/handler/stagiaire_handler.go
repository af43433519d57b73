package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/service"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/response"
)

// StagiaireHandler exposes internship profile endpoints.
type StagiaireHandler struct {
	service *service.StagiaireService
}

// NewStagiaireHandler creates a new handler.
func NewStagiaireHandler(svc *service.StagiaireService) *StagiaireHandler {
	return &StagiaireHandler{service: svc}
}

// List godoc
// @Summary List stagiaires
// @Description List internship profiles visible to the caller
// @Tags Stagiaires
// @Produce json
// @Param promotion query string false "Filter by promotion"
// @Param search query string false "Match against name or sujet"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /stagiaires [get]
func (h *StagiaireHandler) List(c *gin.Context) {
	query := dto.StagiaireQuery{
		Promotion: c.Query("promotion"),
		Search:    c.Query("search"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
	}
	stagiaires, pagination, err := h.service.List(c.Request.Context(), query, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stagiaires, pagination)
}

// Get godoc
// @Summary Get stagiaire
// @Description Fetch a single internship profile
// @Tags Stagiaires
// @Produce json
// @Param id path string true "Stagiaire ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stagiaires/{id} [get]
func (h *StagiaireHandler) Get(c *gin.Context) {
	stagiaire, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stagiaire, nil)
}

// Create godoc
// @Summary Create stagiaire
// @Description Provision an internship profile for an existing account
// @Tags Stagiaires
// @Accept json
// @Produce json
// @Param payload body dto.CreateStagiaireRequest true "Stagiaire payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /stagiaires [post]
func (h *StagiaireHandler) Create(c *gin.Context) {
	var req dto.CreateStagiaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stagiaire, err := h.service.Create(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stagiaire)
}

// Update godoc
// @Summary Update stagiaire
// @Description Edit internship profile fields
// @Tags Stagiaires
// @Accept json
// @Produce json
// @Param id path string true "Stagiaire ID"
// @Param payload body dto.UpdateStagiaireRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stagiaires/{id} [put]
func (h *StagiaireHandler) Update(c *gin.Context) {
	var req dto.UpdateStagiaireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stagiaire, err := h.service.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stagiaire, nil)
}

// AssignTuteur godoc
// @Summary Assign tuteur
// @Description Bind or clear the supervising tuteur for a stagiaire
// @Tags Stagiaires
// @Accept json
// @Produce json
// @Param id path string true "Stagiaire ID"
// @Param payload body dto.AssignTuteurRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stagiaires/{id}/tuteur [put]
func (h *StagiaireHandler) AssignTuteur(c *gin.Context) {
	var req dto.AssignTuteurRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stagiaire, err := h.service.AssignTuteur(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stagiaire, nil)
}

// Delete godoc
// @Summary Delete stagiaire
// @Description Remove an internship profile
// @Tags Stagiaires
// @Produce json
// @Param id path string true "Stagiaire ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /stagiaires/{id} [delete]
func (h *StagiaireHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
