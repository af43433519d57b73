package models

import "time"

// Evaluation is a tuteur's periodic assessment of a stagiaire.
type Evaluation struct {
	ID          string    `db:"id" json:"id"`
	StagiaireID string    `db:"stagiaire_id" json:"stagiaire_id"`
	TuteurID    string    `db:"tuteur_id" json:"tuteur_id"`
	Periode     string    `db:"periode" json:"periode"`
	Note        int       `db:"note" json:"note"`
	Commentaire string    `db:"commentaire" json:"commentaire"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationDetail joins the identities the evaluator needs to gate access.
type EvaluationDetail struct {
	Evaluation
	StagiaireUserID string `db:"stagiaire_user_id" json:"stagiaire_user_id"`
}

// EvaluationFilter constrains listing queries.
type EvaluationFilter struct {
	StagiaireID     string
	StagiaireUserID string
	TuteurID        string
	Page            int
	PageSize        int
}
