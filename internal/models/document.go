package models

import "time"

// Document is an uploaded file attached to a stagiaire or a demande.
type Document struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID string    `db:"owner_user_id" json:"owner_user_id"`
	DemandeID   *string   `db:"demande_id" json:"demande_id,omitempty"`
	FileName    string    `db:"file_name" json:"file_name"`
	StoragePath string    `db:"storage_path" json:"-"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	Public      bool      `db:"public" json:"public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DocumentFilter constrains listing queries.
type DocumentFilter struct {
	OwnerUserID string
	DemandeID   string
	Page        int
	PageSize    int
}
