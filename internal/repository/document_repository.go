package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stageflow/stageflow-api/internal/models"
)

// DocumentRepository provides database access for document metadata.
// File bytes live in storage, only paths and attributes are stored here.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// FindByID returns a document record by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, owner_user_id, demande_id, file_name, storage_path, mime_type, size_bytes, public, created_at FROM documents WHERE id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// List returns documents matching the filter with total count.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter, scopePublic bool) ([]models.Document, int, error) {
	baseQuery := `FROM documents WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.OwnerUserID != "" {
		owner := fmt.Sprintf("owner_user_id = $%d", len(args)+1)
		if scopePublic {
			owner = "(" + owner + " OR public = TRUE)"
		}
		conditions = append(conditions, owner)
		args = append(args, filter.OwnerUserID)
	}
	if filter.DemandeID != "" {
		conditions = append(conditions, fmt.Sprintf("demande_id = $%d", len(args)+1))
		args = append(args, filter.DemandeID)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, owner_user_id, demande_id, file_name, storage_path, mime_type, size_bytes, public, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	return docs, total, nil
}

// Create inserts a new document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, owner_user_id, demande_id, file_name, storage_path, mime_type, size_bytes, public, created_at)
	VALUES (:id, :owner_user_id, :demande_id, :file_name, :storage_path, :mime_type, :size_bytes, :public, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// Delete removes a document record.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
