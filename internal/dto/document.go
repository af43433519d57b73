package dto

import (
	"time"

	"github.com/stageflow/stageflow-api/internal/models"
)

// UploadDocumentRequest carries the multipart metadata alongside the file.
type UploadDocumentRequest struct {
	DemandeID *string `form:"demandeId"`
	Public    bool    `form:"public"`
}

// DocumentResponse adds a time-limited download link to the record.
type DocumentResponse struct {
	models.Document
	DownloadURL string    `json:"downloadUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// DocumentQuery mirrors supported listing filters.
type DocumentQuery struct {
	DemandeID string
	Page      int
	PageSize  int
}
