package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	"github.com/stageflow/stageflow-api/internal/repository"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

// workflowRepoStub mimics the transactional transition semantics of the
// real repository, including the stale-step guard.
type workflowRepoStub struct {
	demandes map[string]*models.DemandeDetail
	steps    map[string][]models.WorkflowStep
	nextID   int64
}

func newWorkflowRepoStub() *workflowRepoStub {
	return &workflowRepoStub{
		demandes: make(map[string]*models.DemandeDetail),
		steps:    make(map[string][]models.WorkflowStep),
	}
}

func (w *workflowRepoStub) seed(detail *models.DemandeDetail) {
	w.demandes[detail.ID] = detail
	w.appendStep(detail.ID, models.WorkflowStep{Step: models.StepStagiaire, Action: models.ActionPending})
}

func (w *workflowRepoStub) appendStep(demandeID string, step models.WorkflowStep) {
	w.nextID++
	step.ID = w.nextID
	step.DemandeID = demandeID
	w.steps[demandeID] = append(w.steps[demandeID], step)
}

func (w *workflowRepoStub) GetDetail(ctx context.Context, id string) (*models.DemandeDetail, error) {
	if d, ok := w.demandes[id]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (w *workflowRepoStub) LatestStep(ctx context.Context, demandeID string) (*models.WorkflowStep, error) {
	steps := w.steps[demandeID]
	if len(steps) == 0 {
		return nil, sql.ErrNoRows
	}
	latest := steps[len(steps)-1]
	return &latest, nil
}

func (w *workflowRepoStub) ListSteps(ctx context.Context, demandeID string) ([]models.WorkflowStep, error) {
	return append([]models.WorkflowStep(nil), w.steps[demandeID]...), nil
}

func (w *workflowRepoStub) ApplyTransition(ctx context.Context, params repository.TransitionParams) error {
	demande, ok := w.demandes[params.DemandeID]
	if !ok {
		return sql.ErrNoRows
	}
	current, err := w.LatestStep(ctx, params.DemandeID)
	if err != nil {
		return repository.ErrStaleStep
	}
	if current.Step != params.ExpectedStep || current.Action != models.ActionPending {
		return repository.ErrStaleStep
	}
	for _, step := range params.Steps {
		w.appendStep(params.DemandeID, step)
	}
	demande.Status = params.Status
	demande.DateReponse = params.DateReponse
	demande.CommentaireReponse = params.CommentaireReponse
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type notifierStub struct {
	events []struct {
		UserID  string
		Kind    models.NotificationKind
		Payload map[string]string
	}
}

func (n *notifierStub) Notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]string) {
	n.events = append(n.events, struct {
		UserID  string
		Kind    models.NotificationKind
		Payload map[string]string
	}{userID, kind, payload})
}

var (
	wfAdmin     = authz.Principal{UserID: "admin-1", Role: models.RoleAdmin}
	wfRH        = authz.Principal{UserID: "rh-1", Role: models.RoleRH}
	wfTuteur    = authz.Principal{UserID: "tuteur-1", Role: models.RoleTuteur}
	wfAutre     = authz.Principal{UserID: "tuteur-2", Role: models.RoleTuteur}
	wfStagiaire = authz.Principal{UserID: "stag-user-1", Role: models.RoleStagiaire}
)

func seedDemande(repo *workflowRepoStub) *models.DemandeDetail {
	tuteurID := "tuteur-1"
	detail := &models.DemandeDetail{
		Demande: models.Demande{
			ID:          "dem-1",
			StagiaireID: "stag-1",
			TuteurID:    &tuteurID,
			Type:        models.DemandeTypeConge,
			Status:      models.DemandeStatusEnAttente,
			Titre:       "Congé",
		},
		StagiaireUserID: "stag-user-1",
		TuteurUserID:    &tuteurID,
	}
	repo.seed(detail)
	return detail
}

func decide(step models.WorkflowStepName, comments string) dto.DecideStepRequest {
	return dto.DecideStepRequest{CurrentStep: string(step), Comments: comments}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestWorkflowFullApprovalChain(t *testing.T) {
	repo := newWorkflowRepoStub()
	audit := &auditStub{}
	notifier := &notifierStub{}
	svc := NewWorkflowService(repo, audit, notifier, nil)
	seedDemande(repo)
	ctx := context.Background()

	resp, err := svc.ApproveStep(ctx, "dem-1", decide(models.StepStagiaire, ""), wfStagiaire)
	require.NoError(t, err)
	assert.Equal(t, models.DemandeStatusEnCours, resp.Status)
	assert.Equal(t, models.StepTuteur, resp.CurrentStep)

	resp, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepTuteur, "ok"), wfTuteur)
	require.NoError(t, err)
	assert.Equal(t, models.DemandeStatusEnCours, resp.Status)
	assert.Equal(t, models.StepRH, resp.CurrentStep)

	resp, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepRH, ""), wfRH)
	require.NoError(t, err)
	assert.Equal(t, models.DemandeStatusEnCours, resp.Status)
	assert.Equal(t, models.StepFinance, resp.CurrentStep)

	// Finance has no dedicated approver role, only admin may conclude.
	resp, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepFinance, ""), wfAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.DemandeStatusTerminee, resp.Status)
	assert.Equal(t, models.StepTermine, resp.CurrentStep)
	assert.NotNil(t, resp.DateReponse)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "stag-user-1", notifier.events[0].UserID)
	assert.Equal(t, models.NotificationDemandeApproved, notifier.events[0].Kind)
	assert.Equal(t, "dem-1", notifier.events[0].Payload["demandeId"])
	assert.Len(t, audit.logs, 4)
}

func TestWorkflowRejectTerminates(t *testing.T) {
	repo := newWorkflowRepoStub()
	notifier := &notifierStub{}
	svc := NewWorkflowService(repo, &auditStub{}, notifier, nil)
	seedDemande(repo)
	ctx := context.Background()

	_, err := svc.ApproveStep(ctx, "dem-1", decide(models.StepStagiaire, ""), wfStagiaire)
	require.NoError(t, err)

	resp, err := svc.RejectStep(ctx, "dem-1", decide(models.StepTuteur, "insufficient justification"), wfTuteur)
	require.NoError(t, err)
	assert.Equal(t, models.DemandeStatusRejetee, resp.Status)
	require.NotNil(t, resp.CommentaireReponse)
	assert.Equal(t, "insufficient justification", *resp.CommentaireReponse)
	assert.Len(t, resp.Workflow, 4)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.NotificationDemandeRejected, notifier.events[0].Kind)

	// Workflow is terminal, a replayed approve at the same step conflicts.
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepTuteur, ""), wfTuteur)
	assert.Equal(t, appErrors.ErrWorkflowTerminal.Code, errCode(t, err))

	steps, err := svc.History(ctx, "dem-1", wfStagiaire)
	require.NoError(t, err)
	assert.Len(t, steps, 4)
}

func TestWorkflowRejectRequiresComment(t *testing.T) {
	repo := newWorkflowRepoStub()
	svc := NewWorkflowService(repo, &auditStub{}, nil, nil)
	seedDemande(repo)

	_, err := svc.RejectStep(context.Background(), "dem-1", decide(models.StepStagiaire, "   "), wfStagiaire)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	// Nothing was written.
	steps, _ := repo.ListSteps(context.Background(), "dem-1")
	assert.Len(t, steps, 1)
}

func TestWorkflowStaleStepConflicts(t *testing.T) {
	repo := newWorkflowRepoStub()
	svc := NewWorkflowService(repo, &auditStub{}, nil, nil)
	seedDemande(repo)
	ctx := context.Background()

	_, err := svc.ApproveStep(ctx, "dem-1", decide(models.StepStagiaire, ""), wfStagiaire)
	require.NoError(t, err)

	// Replay with the now-stale step argument.
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepStagiaire, ""), wfAdmin)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestWorkflowUnassignedTuteurForbidden(t *testing.T) {
	repo := newWorkflowRepoStub()
	svc := NewWorkflowService(repo, &auditStub{}, nil, nil)
	seedDemande(repo)
	ctx := context.Background()

	_, err := svc.ApproveStep(ctx, "dem-1", decide(models.StepStagiaire, ""), wfStagiaire)
	require.NoError(t, err)

	// The supplied step value grants nothing, the assignment decides.
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepTuteur, ""), wfAutre)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	_, err = svc.RejectStep(ctx, "dem-1", decide(models.StepTuteur, "no"), wfAutre)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestWorkflowRoleStepMismatch(t *testing.T) {
	repo := newWorkflowRepoStub()
	svc := NewWorkflowService(repo, &auditStub{}, nil, nil)
	seedDemande(repo)
	ctx := context.Background()

	// Stagiaire cannot act for the tuteur even on their own demande.
	_, err := svc.ApproveStep(ctx, "dem-1", decide(models.StepStagiaire, ""), wfStagiaire)
	require.NoError(t, err)
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepTuteur, ""), wfStagiaire)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	// RH cannot conclude the finance step.
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepTuteur, ""), wfTuteur)
	require.NoError(t, err)
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepRH, ""), wfRH)
	require.NoError(t, err)
	_, err = svc.ApproveStep(ctx, "dem-1", decide(models.StepFinance, ""), wfRH)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestWorkflowUnknownDemande(t *testing.T) {
	svc := NewWorkflowService(newWorkflowRepoStub(), &auditStub{}, nil, nil)

	_, err := svc.ApproveStep(context.Background(), "missing", decide(models.StepStagiaire, ""), wfAdmin)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestWorkflowInvalidStepName(t *testing.T) {
	repo := newWorkflowRepoStub()
	svc := NewWorkflowService(repo, &auditStub{}, nil, nil)
	seedDemande(repo)

	_, err := svc.ApproveStep(context.Background(), "dem-1", dto.DecideStepRequest{CurrentStep: "DIRECTION"}, wfAdmin)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))

	// TERMINE is a marker, not an actionable step.
	_, err = svc.ApproveStep(context.Background(), "dem-1", decide(models.StepTermine, ""), wfAdmin)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}
