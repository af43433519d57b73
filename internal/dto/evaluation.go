package dto

// CreateEvaluationRequest is a tuteur's assessment submission.
type CreateEvaluationRequest struct {
	StagiaireID string `json:"stagiaireId" validate:"required"`
	Periode     string `json:"periode" validate:"required"`
	Note        int    `json:"note" validate:"min=0,max=20"`
	Commentaire string `json:"commentaire"`
}

// UpdateEvaluationRequest edits an existing assessment.
type UpdateEvaluationRequest struct {
	Periode     *string `json:"periode"`
	Note        *int    `json:"note" validate:"omitempty,min=0,max=20"`
	Commentaire *string `json:"commentaire"`
}

// EvaluationQuery mirrors supported listing filters.
type EvaluationQuery struct {
	StagiaireID string
	Page        int
	PageSize    int
}
