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

// StagiaireRepository provides database access for internship profiles.
type StagiaireRepository struct {
	db *sqlx.DB
}

// NewStagiaireRepository creates a new instance of StagiaireRepository.
func NewStagiaireRepository(db *sqlx.DB) *StagiaireRepository {
	return &StagiaireRepository{db: db}
}

const stagiaireDetailColumns = `s.id, s.user_id, s.tuteur_id, s.promotion, s.sujet, s.date_debut, s.date_fin, s.created_at, s.updated_at,
	u.full_name AS full_name, u.email AS email, t.full_name AS tuteur_name`

// GetDetail returns a stagiaire with user display fields joined in.
func (r *StagiaireRepository) GetDetail(ctx context.Context, id string) (*models.StagiaireDetail, error) {
	query := fmt.Sprintf(`SELECT %s
	FROM stagiaires s
	JOIN users u ON u.id = s.user_id
	LEFT JOIN users t ON t.id = s.tuteur_id
	WHERE s.id = $1 LIMIT 1`, stagiaireDetailColumns)

	var detail models.StagiaireDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get stagiaire detail: %w", err)
	}
	return &detail, nil
}

// FindByUserID returns the stagiaire profile owned by a user account.
func (r *StagiaireRepository) FindByUserID(ctx context.Context, userID string) (*models.Stagiaire, error) {
	const query = `SELECT id, user_id, tuteur_id, promotion, sujet, date_debut, date_fin, created_at, updated_at FROM stagiaires WHERE user_id = $1 LIMIT 1`
	var s models.Stagiaire
	if err := r.db.GetContext(ctx, &s, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find stagiaire by user: %w", err)
	}
	return &s, nil
}

// List returns stagiaire details matching the filter with total count.
func (r *StagiaireRepository) List(ctx context.Context, filter models.StagiaireFilter) ([]models.StagiaireDetail, int, error) {
	baseQuery := `FROM stagiaires s
	JOIN users u ON u.id = s.user_id
	LEFT JOIN users t ON t.id = s.tuteur_id
	WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.TuteurID != "" {
		conditions = append(conditions, fmt.Sprintf("s.tuteur_id = $%d", len(args)+1))
		args = append(args, filter.TuteurID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Promotion != "" {
		conditions = append(conditions, fmt.Sprintf("s.promotion = $%d", len(args)+1))
		args = append(args, filter.Promotion)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.full_name) LIKE $%d OR LOWER(s.sujet) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d", stagiaireDetailColumns, baseQuery, pageSize, offset)

	var details []models.StagiaireDetail
	if err := r.db.SelectContext(ctx, &details, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list stagiaires: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count stagiaires: %w", err)
	}

	return details, total, nil
}

// Create inserts a new stagiaire profile.
func (r *StagiaireRepository) Create(ctx context.Context, s *models.Stagiaire) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	const query = `INSERT INTO stagiaires (id, user_id, tuteur_id, promotion, sujet, date_debut, date_fin, created_at, updated_at)
	VALUES (:id, :user_id, :tuteur_id, :promotion, :sujet, :date_debut, :date_fin, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create stagiaire: %w", err)
	}
	return nil
}

// Update updates mutable profile fields.
func (r *StagiaireRepository) Update(ctx context.Context, s *models.Stagiaire) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE stagiaires SET promotion = :promotion, sujet = :sujet, date_debut = :date_debut, date_fin = :date_fin, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("update stagiaire: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stagiaire rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AssignTuteur binds the stagiaire to a tuteur user account. A nil
// tuteurUserID clears the assignment.
func (r *StagiaireRepository) AssignTuteur(ctx context.Context, stagiaireID string, tuteurUserID *string) error {
	const query = `UPDATE stagiaires SET tuteur_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, stagiaireID, tuteurUserID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign tuteur: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign tuteur rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stagiaire profile.
func (r *StagiaireRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM stagiaires WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete stagiaire: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete stagiaire rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
