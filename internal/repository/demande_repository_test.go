package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func strPtr(s string) *string { return &s }

func workflowStepRows(step models.WorkflowStepName, action models.WorkflowAction) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "demande_id", "step", "action", "user_id", "comments", "created_at"}).
		AddRow(int64(3), "dem-1", string(step), string(action), "user-1", nil, time.Now().UTC())
}

func TestCreateWithInitialStepSeedsPendingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO demandes`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO workflow_steps`).
		WithArgs(sqlmock.AnyArg(), string(models.StepStagiaire), string(models.ActionPending), "user-stag", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	demande := &models.Demande{
		StagiaireID: "stag-1",
		Type:        models.DemandeTypeConge,
		Titre:       "Congé été",
		Description: "Une semaine en août",
	}
	err := repo.CreateWithInitialStep(context.Background(), demande, "user-stag")

	require.NoError(t, err)
	assert.NotEmpty(t, demande.ID)
	assert.Equal(t, models.DemandeStatusEnAttente, demande.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionAppendsAndUpdates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM demandes WHERE id = \$1 FOR UPDATE`).
		WithArgs("dem-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("dem-1"))
	mock.ExpectQuery(`SELECT (.+) FROM workflow_steps WHERE demande_id = \$1 ORDER BY id DESC LIMIT 1`).
		WithArgs("dem-1").
		WillReturnRows(workflowStepRows(models.StepTuteur, models.ActionPending))
	mock.ExpectExec(`INSERT INTO workflow_steps`).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectExec(`INSERT INTO workflow_steps`).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(`UPDATE demandes SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		DemandeID:    "dem-1",
		ExpectedStep: models.StepTuteur,
		Steps: []models.WorkflowStep{
			{Step: models.StepTuteur, Action: models.ActionApprove, UserID: strPtr("tuteur-1")},
			{Step: models.StepRH, Action: models.ActionPending},
		},
		Status: models.DemandeStatusEnCours,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionStaleStep(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	// A concurrent approver already advanced the chain to RH.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM demandes WHERE id = \$1 FOR UPDATE`).
		WithArgs("dem-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("dem-1"))
	mock.ExpectQuery(`SELECT (.+) FROM workflow_steps WHERE demande_id = \$1 ORDER BY id DESC LIMIT 1`).
		WithArgs("dem-1").
		WillReturnRows(workflowStepRows(models.StepRH, models.ActionPending))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		DemandeID:    "dem-1",
		ExpectedStep: models.StepTuteur,
		Steps:        []models.WorkflowStep{{Step: models.StepTuteur, Action: models.ActionApprove}},
		Status:       models.DemandeStatusEnCours,
	})

	assert.ErrorIs(t, err, ErrStaleStep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionTerminalHistory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	// Latest row is a REJECT, not a PENDING: nothing more can happen.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM demandes WHERE id = \$1 FOR UPDATE`).
		WithArgs("dem-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("dem-1"))
	mock.ExpectQuery(`SELECT (.+) FROM workflow_steps WHERE demande_id = \$1 ORDER BY id DESC LIMIT 1`).
		WithArgs("dem-1").
		WillReturnRows(workflowStepRows(models.StepTuteur, models.ActionReject))
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		DemandeID:    "dem-1",
		ExpectedStep: models.StepTuteur,
		Steps:        []models.WorkflowStep{{Step: models.StepTuteur, Action: models.ActionApprove}},
		Status:       models.DemandeStatusEnCours,
	})

	assert.ErrorIs(t, err, ErrStaleStep)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionUnknownDemande(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM demandes WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		DemandeID:    "missing",
		ExpectedStep: models.StepTuteur,
	})

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOutsideEditWindow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	// The status guard in the UPDATE matches no row once the demande left EN_ATTENTE.
	mock.ExpectExec(`UPDATE demandes SET type`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Demande{
		ID:    "dem-1",
		Type:  models.DemandeTypeConge,
		Titre: "Titre",
	})

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestStepOrdersByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDemandeRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM workflow_steps WHERE demande_id = \$1 ORDER BY id DESC LIMIT 1`).
		WithArgs("dem-1").
		WillReturnRows(workflowStepRows(models.StepRH, models.ActionPending))

	step, err := repo.LatestStep(context.Background(), "dem-1")

	require.NoError(t, err)
	assert.Equal(t, models.StepRH, step.Step)
	assert.Equal(t, models.ActionPending, step.Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
