package dto

import (
	"github.com/stageflow/stageflow-api/internal/models"
)

// CreateDemandeRequest is the payload a stagiaire submits.
type CreateDemandeRequest struct {
	Type        string `json:"type" validate:"required,demande_type"`
	Titre       string `json:"titre" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// UpdateDemandeRequest edits a demande while it is still EN_ATTENTE.
type UpdateDemandeRequest struct {
	Type        *string `json:"type" validate:"omitempty,demande_type"`
	Titre       *string `json:"titre" validate:"omitempty,max=200"`
	Description *string `json:"description"`
}

// DecideStepRequest carries an approve or reject decision. CurrentStep
// is the step the caller believes is pending; a mismatch with the
// stored chain is rejected as a conflict.
type DecideStepRequest struct {
	CurrentStep string `json:"currentStep" validate:"required"`
	Comments    string `json:"comments"`
}

// DemandeQuery mirrors supported listing filters.
type DemandeQuery struct {
	Status   []models.DemandeStatus
	Type     models.DemandeType
	Page     int
	PageSize int
}

// DemandeResponse joins the demande with its workflow history.
type DemandeResponse struct {
	models.DemandeDetail
	CurrentStep models.WorkflowStepName `json:"currentStep"`
	Workflow    []models.WorkflowStep   `json:"workflow,omitempty"`
}
