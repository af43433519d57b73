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

// EvaluationRepository provides database access for evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository creates a new instance of EvaluationRepository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

const evaluationDetailColumns = `e.id, e.stagiaire_id, e.tuteur_id, e.periode, e.note, e.commentaire, e.created_at, e.updated_at,
	s.user_id AS stagiaire_user_id`

// GetDetail returns an evaluation with the stagiaire's user id joined in.
func (r *EvaluationRepository) GetDetail(ctx context.Context, id string) (*models.EvaluationDetail, error) {
	query := fmt.Sprintf(`SELECT %s
	FROM evaluations e
	JOIN stagiaires s ON s.id = e.stagiaire_id
	WHERE e.id = $1 LIMIT 1`, evaluationDetailColumns)

	var detail models.EvaluationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get evaluation detail: %w", err)
	}
	return &detail, nil
}

// List returns evaluations matching the filter with total count.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error) {
	baseQuery := `FROM evaluations e
	JOIN stagiaires s ON s.id = e.stagiaire_id
	WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StagiaireID != "" {
		conditions = append(conditions, fmt.Sprintf("e.stagiaire_id = $%d", len(args)+1))
		args = append(args, filter.StagiaireID)
	}
	if filter.StagiaireUserID != "" {
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)+1))
		args = append(args, filter.StagiaireUserID)
	}
	if filter.TuteurID != "" {
		conditions = append(conditions, fmt.Sprintf("e.tuteur_id = $%d", len(args)+1))
		args = append(args, filter.TuteurID)
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d", evaluationDetailColumns, baseQuery, pageSize, offset)

	var details []models.EvaluationDetail
	if err := r.db.SelectContext(ctx, &details, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list evaluations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count evaluations: %w", err)
	}

	return details, total, nil
}

// Create inserts a new evaluation.
func (r *EvaluationRepository) Create(ctx context.Context, e *models.Evaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	const query = `INSERT INTO evaluations (id, stagiaire_id, tuteur_id, periode, note, commentaire, created_at, updated_at)
	VALUES (:id, :stagiaire_id, :tuteur_id, :periode, :note, :commentaire, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// Update updates the grade and commentary of an evaluation.
func (r *EvaluationRepository) Update(ctx context.Context, e *models.Evaluation) error {
	e.UpdatedAt = time.Now().UTC()
	const query = `UPDATE evaluations SET periode = :periode, note = :note, commentaire = :commentaire, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		return fmt.Errorf("update evaluation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evaluation rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an evaluation.
func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM evaluations WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete evaluation rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
