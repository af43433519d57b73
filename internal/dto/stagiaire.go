package dto

import "time"

// CreateStagiaireRequest provisions an internship profile for a user.
type CreateStagiaireRequest struct {
	UserID    string     `json:"userId" validate:"required"`
	Promotion string     `json:"promotion" validate:"required"`
	Sujet     string     `json:"sujet" validate:"required"`
	DateDebut time.Time  `json:"dateDebut" validate:"required"`
	DateFin   *time.Time `json:"dateFin"`
}

// UpdateStagiaireRequest edits profile fields.
type UpdateStagiaireRequest struct {
	Promotion *string    `json:"promotion"`
	Sujet     *string    `json:"sujet"`
	DateDebut *time.Time `json:"dateDebut"`
	DateFin   *time.Time `json:"dateFin"`
}

// AssignTuteurRequest binds (or clears) the supervising tuteur.
type AssignTuteurRequest struct {
	TuteurUserID *string `json:"tuteurUserId"`
}

// StagiaireQuery mirrors supported listing filters.
type StagiaireQuery struct {
	Promotion string
	Search    string
	Page      int
	PageSize  int
}
