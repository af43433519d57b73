package models

import "time"

// Stagiaire links a user account to an internship record and its
// supervising tuteur.
type Stagiaire struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	TuteurID  *string    `db:"tuteur_id" json:"tuteur_id,omitempty"`
	Promotion string     `db:"promotion" json:"promotion"`
	Sujet     string     `db:"sujet" json:"sujet"`
	DateDebut time.Time  `db:"date_debut" json:"date_debut"`
	DateFin   *time.Time `db:"date_fin" json:"date_fin,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// StagiaireDetail enriches a stagiaire with display names from the
// users table.
type StagiaireDetail struct {
	Stagiaire
	FullName   string  `db:"full_name" json:"full_name"`
	Email      string  `db:"email" json:"email"`
	TuteurName *string `db:"tuteur_name" json:"tuteur_name,omitempty"`
}

// StagiaireFilter constrains listing queries.
type StagiaireFilter struct {
	TuteurID  string
	UserID    string
	Promotion string
	Search    string
	Page      int
	PageSize  int
}
