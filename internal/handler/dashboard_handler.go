package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/service"
	"github.com/stageflow/stageflow-api/pkg/response"
)

// DashboardHandler exposes the scoped demande summary.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Summary godoc
// @Summary Dashboard summary
// @Description Demande counts by status for the caller's visibility scope
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
