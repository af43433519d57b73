package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/service"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/response"
)

// DocumentHandler exposes file upload, listing and signed downloads.
type DocumentHandler struct {
	service *service.DocumentService
}

// NewDocumentHandler creates a new handler.
func NewDocumentHandler(svc *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload godoc
// @Summary Upload document
// @Description Store a file owned by the caller, optionally attached to a demande
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param demandeId formData string false "Related demande"
// @Param public formData bool false "Visible to every authenticated user"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(
		c.Request.Context(),
		req,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
		principalFromContext(c),
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List documents
// @Description List documents visible to the caller, public ones included
// @Tags Documents
// @Produce json
// @Param demandeId query string false "Filter by demande"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	query := dto.DocumentQuery{
		DemandeID: c.Query("demandeId"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
	}
	docs, pagination, err := h.service.List(c.Request.Context(), query, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document
// @Description Fetch document metadata plus a fresh signed link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Download godoc
// @Summary Download document
// @Description Stream the file for a valid signed token; no session required
// @Tags Documents
// @Produce application/octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {string} string "File payload"
// @Failure 401 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token required"))
		return
	}
	doc, file, err := h.service.OpenSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, file, nil)
}

// Delete godoc
// @Summary Delete document
// @Description Remove the record and the stored file
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
