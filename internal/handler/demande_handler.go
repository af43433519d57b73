package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	"github.com/stageflow/stageflow-api/internal/service"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/response"
)

// DemandeHandler exposes demande CRUD, the approval workflow and the
// export endpoints.
type DemandeHandler struct {
	demandes  *service.DemandeService
	workflow  *service.WorkflowService
	dashboard *service.DashboardService
}

// NewDemandeHandler creates a new handler. The dashboard service is
// optional and only used for cache invalidation after transitions.
func NewDemandeHandler(demandes *service.DemandeService, workflow *service.WorkflowService, dashboard *service.DashboardService) *DemandeHandler {
	return &DemandeHandler{demandes: demandes, workflow: workflow, dashboard: dashboard}
}

// Create godoc
// @Summary Submit demande
// @Description Create a demande; the approval chain starts at the stagiaire step
// @Tags Demandes
// @Accept json
// @Produce json
// @Param payload body dto.CreateDemandeRequest true "Demande payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /demandes [post]
func (h *DemandeHandler) Create(c *gin.Context) {
	var req dto.CreateDemandeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	demande, err := h.demandes.Create(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.Created(c, demande)
}

// List godoc
// @Summary List demandes
// @Description List demandes visible to the caller
// @Tags Demandes
// @Produce json
// @Param status query []string false "Filter by status" collectionFormat(multi)
// @Param type query string false "Filter by type"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /demandes [get]
func (h *DemandeHandler) List(c *gin.Context) {
	query := dto.DemandeQuery{
		Type:     models.DemandeType(c.Query("type")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	for _, raw := range c.QueryArray("status") {
		query.Status = append(query.Status, models.DemandeStatus(raw))
	}

	demandes, pagination, err := h.demandes.List(c.Request.Context(), query, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demandes, pagination)
}

// Get godoc
// @Summary Get demande
// @Description Fetch a demande with its full workflow history
// @Tags Demandes
// @Produce json
// @Param id path string true "Demande ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /demandes/{id} [get]
func (h *DemandeHandler) Get(c *gin.Context) {
	demande, err := h.demandes.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demande, nil)
}

// Update godoc
// @Summary Update demande
// @Description Edit a demande while it is still awaiting its first approval
// @Tags Demandes
// @Accept json
// @Produce json
// @Param id path string true "Demande ID"
// @Param payload body dto.UpdateDemandeRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /demandes/{id} [put]
func (h *DemandeHandler) Update(c *gin.Context) {
	var req dto.UpdateDemandeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	demande, err := h.demandes.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, demande, nil)
}

// Approve godoc
// @Summary Approve workflow step
// @Description Approve the pending step and advance the chain
// @Tags Demandes
// @Accept json
// @Produce json
// @Param id path string true "Demande ID"
// @Param payload body dto.DecideStepRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /demandes/{id}/approve [post]
func (h *DemandeHandler) Approve(c *gin.Context) {
	var req dto.DecideStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	demande, err := h.workflow.ApproveStep(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, demande, nil)
}

// Reject godoc
// @Summary Reject workflow step
// @Description Reject the pending step and close the demande
// @Tags Demandes
// @Accept json
// @Produce json
// @Param id path string true "Demande ID"
// @Param payload body dto.DecideStepRequest true "Decision payload, comments required"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /demandes/{id}/reject [post]
func (h *DemandeHandler) Reject(c *gin.Context) {
	var req dto.DecideStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	demande, err := h.workflow.RejectStep(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.JSON(c, http.StatusOK, demande, nil)
}

// Workflow godoc
// @Summary Workflow history
// @Description List the append-only workflow step history
// @Tags Demandes
// @Produce json
// @Param id path string true "Demande ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /demandes/{id}/workflow [get]
func (h *DemandeHandler) Workflow(c *gin.Context) {
	steps, err := h.workflow.History(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, steps, nil)
}

// Purge godoc
// @Summary Purge demande
// @Description Permanently remove a demande and its history (admin only)
// @Tags Demandes
// @Produce json
// @Param id path string true "Demande ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /demandes/{id} [delete]
func (h *DemandeHandler) Purge(c *gin.Context) {
	if err := h.demandes.Purge(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboards(c)
	response.NoContent(c)
}

// ExportCSV godoc
// @Summary Export demandes as CSV
// @Description Export the caller's visible demandes
// @Tags Demandes
// @Produce text/csv
// @Success 200 {string} string "CSV payload"
// @Failure 403 {object} response.Envelope
// @Router /demandes/export [get]
func (h *DemandeHandler) ExportCSV(c *gin.Context) {
	query := dto.DemandeQuery{
		Type: models.DemandeType(c.Query("type")),
	}
	for _, raw := range c.QueryArray("status") {
		query.Status = append(query.Status, models.DemandeStatus(raw))
	}

	payload, err := h.demandes.ExportCSV(c.Request.Context(), query, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	fileName := fmt.Sprintf("demandes-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, "text/csv", payload)
}

// Attestation godoc
// @Summary Download attestation PDF
// @Description Generate the attestation for a completed ATTESTATION demande
// @Tags Demandes
// @Produce application/pdf
// @Param id path string true "Demande ID"
// @Success 200 {string} string "PDF payload"
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /demandes/{id}/attestation [get]
func (h *DemandeHandler) Attestation(c *gin.Context) {
	payload, err := h.demandes.Attestation(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "attestation-"+c.Param("id")+".pdf"))
	c.Data(http.StatusOK, "application/pdf", payload)
}

func (h *DemandeHandler) invalidateDashboards(c *gin.Context) {
	if h.dashboard == nil {
		return
	}
	h.dashboard.InvalidateAll(c.Request.Context())
}
