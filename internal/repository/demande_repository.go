package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stageflow/stageflow-api/internal/models"
)

// ErrStaleStep is returned by ApplyTransition when the demande's current
// step no longer matches the caller's expectation (a concurrent approver
// acted first, or the workflow is already terminal).
var ErrStaleStep = errors.New("demande workflow step out of date")

const demandeColumns = `d.id, d.stagiaire_id, d.tuteur_id, d.type, d.status, d.titre, d.description,
       d.date_reponse, d.commentaire_reponse, d.created_at, d.updated_at`

// DemandeRepository persists demandes and their workflow history.
type DemandeRepository struct {
	db *sqlx.DB
}

// NewDemandeRepository constructs the repository.
func NewDemandeRepository(db *sqlx.DB) *DemandeRepository {
	return &DemandeRepository{db: db}
}

// CreateWithInitialStep inserts a demande and seeds its first workflow
// row ({step: STAGIAIRE, action: PENDING}) in one transaction.
func (r *DemandeRepository) CreateWithInitialStep(ctx context.Context, demande *models.Demande, createdByUserID string) error {
	if demande.ID == "" {
		demande.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if demande.CreatedAt.IsZero() {
		demande.CreatedAt = now
	}
	demande.UpdatedAt = now
	if demande.Status == "" {
		demande.Status = models.DemandeStatusEnAttente
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create demande: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertDemande = `INSERT INTO demandes
	(id, stagiaire_id, tuteur_id, type, status, titre, description, date_reponse, commentaire_reponse, created_at, updated_at)
	VALUES (:id, :stagiaire_id, :tuteur_id, :type, :status, :titre, :description, :date_reponse, :commentaire_reponse, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertDemande, demande); err != nil {
		return fmt.Errorf("create demande: %w", err)
	}

	const insertStep = `INSERT INTO workflow_steps (demande_id, step, action, user_id, comments, created_at)
	VALUES ($1, $2, $3, $4, NULL, $5)`
	if _, err := tx.ExecContext(ctx, insertStep, demande.ID, models.StepStagiaire, models.ActionPending, createdByUserID, now); err != nil {
		return fmt.Errorf("seed workflow step: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create demande: %w", err)
	}
	return nil
}

// GetDetail fetches a demande joined with the identities the evaluator
// needs (owner user id, supervising tuteur user id).
func (r *DemandeRepository) GetDetail(ctx context.Context, id string) (*models.DemandeDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.user_id AS stagiaire_user_id, s.tuteur_id AS tuteur_user_id
	FROM demandes d
	JOIN stagiaires s ON s.id = d.stagiaire_id
	WHERE d.id = $1`, demandeColumns)
	var detail models.DemandeDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LatestStep returns the most recent workflow row of a demande.
func (r *DemandeRepository) LatestStep(ctx context.Context, demandeID string) (*models.WorkflowStep, error) {
	const query = `SELECT id, demande_id, step, action, user_id, comments, created_at
	FROM workflow_steps WHERE demande_id = $1 ORDER BY id DESC LIMIT 1`
	var step models.WorkflowStep
	if err := r.db.GetContext(ctx, &step, query, demandeID); err != nil {
		return nil, err
	}
	return &step, nil
}

// ListSteps returns the full workflow history of a demande, oldest first.
func (r *DemandeRepository) ListSteps(ctx context.Context, demandeID string) ([]models.WorkflowStep, error) {
	const query = `SELECT id, demande_id, step, action, user_id, comments, created_at
	FROM workflow_steps WHERE demande_id = $1 ORDER BY id ASC`
	var steps []models.WorkflowStep
	if err := r.db.SelectContext(ctx, &steps, query, demandeID); err != nil {
		return nil, fmt.Errorf("list workflow steps: %w", err)
	}
	return steps, nil
}

// List returns demandes matching the filter, newest first, with a total count.
func (r *DemandeRepository) List(ctx context.Context, filter models.DemandeFilter) ([]models.DemandeDetail, int, error) {
	baseQuery := ` FROM demandes d JOIN stagiaires s ON s.id = d.stagiaire_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("d.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("d.type = $%d", len(args)))
	}
	if filter.StagiaireID != "" {
		args = append(args, filter.StagiaireID)
		conditions = append(conditions, fmt.Sprintf("d.stagiaire_id = $%d", len(args)))
	}
	if filter.StagiaireUserID != "" {
		args = append(args, filter.StagiaireUserID)
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)))
	}
	if filter.TuteurUserID != "" {
		args = append(args, filter.TuteurUserID)
		conditions = append(conditions, fmt.Sprintf("s.tuteur_id = $%d", len(args)))
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

	listQuery := fmt.Sprintf(`SELECT %s, s.user_id AS stagiaire_user_id, s.tuteur_id AS tuteur_user_id%s ORDER BY d.created_at DESC LIMIT %d OFFSET %d`,
		demandeColumns, baseQuery, pageSize, offset)

	var demandes []models.DemandeDetail
	if err := r.db.SelectContext(ctx, &demandes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list demandes: %w", err)
	}

	countQuery := "SELECT COUNT(*)" + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count demandes: %w", err)
	}

	return demandes, total, nil
}

// Update persists the requester-editable fields of a demande.
func (r *DemandeRepository) Update(ctx context.Context, demande *models.Demande) error {
	demande.UpdatedAt = time.Now().UTC()
	const query = `UPDATE demandes SET type = :type, titre = :titre, description = :description, updated_at = :updated_at
	WHERE id = :id AND status = 'EN_ATTENTE'`
	result, err := r.db.NamedExecContext(ctx, query, demande)
	if err != nil {
		return fmt.Errorf("update demande: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check demande update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Purge removes a demande and its workflow history. Administrative use only.
func (r *DemandeRepository) Purge(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge demande: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_steps WHERE demande_id = $1`, id); err != nil {
		return fmt.Errorf("purge workflow steps: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM demandes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("purge demande: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check purge rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// TransitionParams describes one atomic workflow transition: the rows to
// append and the demande fields to update, guarded by the expected
// current step.
type TransitionParams struct {
	DemandeID          string
	ExpectedStep       models.WorkflowStepName
	Steps              []models.WorkflowStep
	Status             models.DemandeStatus
	DateReponse        *time.Time
	CommentaireReponse *string
}

// ApplyTransition runs the staleness check, the history append and the
// status update in one transaction. The demande row is locked first so
// concurrent approvers serialise; the second writer fails the expected-
// step check and gets ErrStaleStep.
func (r *DemandeRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var demandeID string
	if err := tx.GetContext(ctx, &demandeID, `SELECT id FROM demandes WHERE id = $1 FOR UPDATE`, params.DemandeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock demande: %w", err)
	}

	var current models.WorkflowStep
	err = tx.GetContext(ctx, &current, `SELECT id, demande_id, step, action, user_id, comments, created_at
	FROM workflow_steps WHERE demande_id = $1 ORDER BY id DESC LIMIT 1`, params.DemandeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStaleStep
		}
		return fmt.Errorf("load current workflow step: %w", err)
	}
	if current.Step != params.ExpectedStep || current.Action != models.ActionPending {
		return ErrStaleStep
	}

	const insertStep = `INSERT INTO workflow_steps (demande_id, step, action, user_id, comments, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	now := time.Now().UTC()
	for _, step := range params.Steps {
		createdAt := step.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, insertStep, params.DemandeID, step.Step, step.Action, step.UserID, step.Comments, createdAt); err != nil {
			return fmt.Errorf("append workflow step: %w", err)
		}
	}

	const updateDemande = `UPDATE demandes SET status = $2, date_reponse = $3, commentaire_reponse = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateDemande, params.DemandeID, params.Status, params.DateReponse, params.CommentaireReponse, now); err != nil {
		return fmt.Errorf("update demande status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow transition: %w", err)
	}
	return nil
}

// CountByStatus aggregates demandes per status for dashboards, optionally
// restricted to one tuteur's stagiaires or one stagiaire user.
func (r *DemandeRepository) CountByStatus(ctx context.Context, tuteurUserID, stagiaireUserID string) (map[models.DemandeStatus]int, error) {
	query := `SELECT d.status, COUNT(*) AS count FROM demandes d JOIN stagiaires s ON s.id = d.stagiaire_id WHERE 1=1`
	var args []interface{}
	if tuteurUserID != "" {
		args = append(args, tuteurUserID)
		query += fmt.Sprintf(" AND s.tuteur_id = $%d", len(args))
	}
	if stagiaireUserID != "" {
		args = append(args, stagiaireUserID)
		query += fmt.Sprintf(" AND s.user_id = $%d", len(args))
	}
	query += " GROUP BY d.status"

	rows := []struct {
		Status models.DemandeStatus `db:"status"`
		Count  int                  `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count demandes by status: %w", err)
	}
	counts := make(map[models.DemandeStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
