package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

type demandeRepoStub struct {
	*workflowRepoStub
	lastFilter models.DemandeFilter
	purged     []string
}

func newDemandeRepoStub() *demandeRepoStub {
	return &demandeRepoStub{workflowRepoStub: newWorkflowRepoStub()}
}

func (d *demandeRepoStub) CreateWithInitialStep(ctx context.Context, demande *models.Demande, createdByUserID string) error {
	if demande.ID == "" {
		demande.ID = "dem-new"
	}
	demande.Status = models.DemandeStatusEnAttente
	actor := createdByUserID
	detail := &models.DemandeDetail{Demande: *demande, StagiaireUserID: createdByUserID}
	if demande.TuteurID != nil {
		detail.TuteurUserID = demande.TuteurID
	}
	d.demandes[demande.ID] = detail
	d.appendStep(demande.ID, models.WorkflowStep{Step: models.StepStagiaire, Action: models.ActionPending, UserID: &actor})
	return nil
}

func (d *demandeRepoStub) List(ctx context.Context, filter models.DemandeFilter) ([]models.DemandeDetail, int, error) {
	d.lastFilter = filter
	var out []models.DemandeDetail
	for _, detail := range d.demandes {
		if filter.StagiaireUserID != "" && detail.StagiaireUserID != filter.StagiaireUserID {
			continue
		}
		if filter.TuteurUserID != "" && (detail.TuteurUserID == nil || *detail.TuteurUserID != filter.TuteurUserID) {
			continue
		}
		out = append(out, *detail)
	}
	return out, len(out), nil
}

func (d *demandeRepoStub) Update(ctx context.Context, demande *models.Demande) error {
	detail, ok := d.demandes[demande.ID]
	if !ok || detail.Status != models.DemandeStatusEnAttente {
		return sql.ErrNoRows
	}
	detail.Type = demande.Type
	detail.Titre = demande.Titre
	detail.Description = demande.Description
	return nil
}

func (d *demandeRepoStub) Purge(ctx context.Context, id string) error {
	if _, ok := d.demandes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(d.demandes, id)
	delete(d.steps, id)
	d.purged = append(d.purged, id)
	return nil
}

type stagiaireLookupStub struct {
	byUser map[string]*models.Stagiaire
	byID   map[string]*models.StagiaireDetail
}

func newStagiaireLookupStub() *stagiaireLookupStub {
	return &stagiaireLookupStub{
		byUser: make(map[string]*models.Stagiaire),
		byID:   make(map[string]*models.StagiaireDetail),
	}
}

func (s *stagiaireLookupStub) FindByUserID(ctx context.Context, userID string) (*models.Stagiaire, error) {
	if st, ok := s.byUser[userID]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stagiaireLookupStub) GetDetail(ctx context.Context, id string) (*models.StagiaireDetail, error) {
	if st, ok := s.byID[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func newDemandeService(repo *demandeRepoStub) (*DemandeService, *stagiaireLookupStub) {
	stagiaires := newStagiaireLookupStub()
	tuteurID := "tuteur-1"
	stagiaires.byUser["stag-user-1"] = &models.Stagiaire{ID: "stag-1", UserID: "stag-user-1", TuteurID: &tuteurID}
	return NewDemandeService(repo, stagiaires, &auditStub{}, nil, nil), stagiaires
}

func TestDemandeCreateSeedsWorkflow(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)

	resp, err := svc.Create(context.Background(), dto.CreateDemandeRequest{
		Type:        "CONGE",
		Titre:       "Congé été",
		Description: "Une semaine",
	}, wfStagiaire)

	require.NoError(t, err)
	assert.Equal(t, models.DemandeStatusEnAttente, resp.Status)
	assert.Equal(t, models.StepStagiaire, resp.CurrentStep)
	require.Len(t, resp.Workflow, 1)
	assert.Equal(t, models.ActionPending, resp.Workflow[0].Action)
	require.NotNil(t, resp.TuteurID)
	assert.Equal(t, "tuteur-1", *resp.TuteurID)
}

func TestDemandeCreateRequiresProfile(t *testing.T) {
	repo := newDemandeRepoStub()
	svc := NewDemandeService(repo, newStagiaireLookupStub(), &auditStub{}, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateDemandeRequest{
		Type:        "CONGE",
		Titre:       "Congé",
		Description: "x",
	}, wfStagiaire)

	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestDemandeCreateForbiddenForTuteur(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)

	_, err := svc.Create(context.Background(), dto.CreateDemandeRequest{Type: "CONGE", Titre: "x", Description: "x"}, wfTuteur)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestDemandeCreateRejectsUnknownType(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)

	_, err := svc.Create(context.Background(), dto.CreateDemandeRequest{Type: "VACANCES", Titre: "x", Description: "x"}, wfStagiaire)
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestDemandeGetEnforcesScope(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)
	seedDemande(repo.workflowRepoStub)
	ctx := context.Background()

	resp, err := svc.Get(ctx, "dem-1", wfStagiaire)
	require.NoError(t, err)
	assert.Equal(t, models.StepStagiaire, resp.CurrentStep)

	_, err = svc.Get(ctx, "dem-1", wfAutre)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	_, err = svc.Get(ctx, "missing", wfAdmin)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestDemandeListScopesByRole(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)
	seedDemande(repo.workflowRepoStub)
	ctx := context.Background()

	_, _, err := svc.List(ctx, dto.DemandeQuery{}, wfStagiaire)
	require.NoError(t, err)
	assert.Equal(t, "stag-user-1", repo.lastFilter.StagiaireUserID)

	_, _, err = svc.List(ctx, dto.DemandeQuery{}, wfTuteur)
	require.NoError(t, err)
	assert.Equal(t, "tuteur-1", repo.lastFilter.TuteurUserID)

	_, _, err = svc.List(ctx, dto.DemandeQuery{}, wfRH)
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.StagiaireUserID)
	assert.Empty(t, repo.lastFilter.TuteurUserID)
}

func TestDemandeUpdateOnlyWhileEnAttente(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)
	seedDemande(repo.workflowRepoStub)
	ctx := context.Background()
	titre := "Congé révisé"

	resp, err := svc.Update(ctx, "dem-1", dto.UpdateDemandeRequest{Titre: &titre}, wfStagiaire)
	require.NoError(t, err)
	assert.Equal(t, titre, resp.Titre)

	// Once processed, edits are forbidden to the requester.
	repo.demandes["dem-1"].Status = models.DemandeStatusEnCours
	_, err = svc.Update(ctx, "dem-1", dto.UpdateDemandeRequest{Titre: &titre}, wfStagiaire)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestDemandePurgeAdminOnly(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)
	seedDemande(repo.workflowRepoStub)
	ctx := context.Background()

	err := svc.Purge(ctx, "dem-1", wfRH)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))

	require.NoError(t, svc.Purge(ctx, "dem-1", wfAdmin))
	assert.Equal(t, []string{"dem-1"}, repo.purged)

	err = svc.Purge(ctx, "dem-1", wfAdmin)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestDemandeExportCSV(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, _ := newDemandeService(repo)
	seedDemande(repo.workflowRepoStub)

	data, err := svc.ExportCSV(context.Background(), dto.DemandeQuery{}, wfAdmin)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "id,type,status"), content)
	assert.Contains(t, content, "dem-1")
}

func TestDemandeAttestationRequiresTerminee(t *testing.T) {
	repo := newDemandeRepoStub()
	svc, stagiaires := newDemandeService(repo)
	detail := seedDemande(repo.workflowRepoStub)
	detail.Type = models.DemandeTypeAttestation
	repo.demandes["dem-1"] = detail
	tuteurName := "Marie Dupont"
	stagiaires.byID["stag-1"] = &models.StagiaireDetail{
		Stagiaire:  models.Stagiaire{ID: "stag-1", UserID: "stag-user-1", Sujet: "Plateforme interne"},
		FullName:   "Jean Martin",
		TuteurName: &tuteurName,
	}
	ctx := context.Background()

	_, err := svc.Attestation(ctx, "dem-1", wfStagiaire)
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))

	detail.Status = models.DemandeStatusTerminee
	data, err := svc.Attestation(ctx, "dem-1", wfStagiaire)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
