package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stageflow/stageflow-api/internal/models"
)

var (
	admin     = Principal{UserID: "admin-1", Role: models.RoleAdmin}
	rh        = Principal{UserID: "rh-1", Role: models.RoleRH}
	tuteur    = Principal{UserID: "tuteur-1", Role: models.RoleTuteur}
	autre     = Principal{UserID: "tuteur-2", Role: models.RoleTuteur}
	stagiaire = Principal{UserID: "stag-1", Role: models.RoleStagiaire}
)

func demandeOf(status models.DemandeStatus) DemandeView {
	return DemandeView{
		StagiaireUserID: "stag-1",
		TuteurUserID:    "tuteur-1",
		Status:          status,
	}
}

func TestCanReadDemande(t *testing.T) {
	d := demandeOf(models.DemandeStatusEnAttente)

	assert.True(t, CanReadDemande(admin, d))
	assert.True(t, CanReadDemande(rh, d))
	assert.True(t, CanReadDemande(tuteur, d))
	assert.True(t, CanReadDemande(stagiaire, d))

	assert.False(t, CanReadDemande(autre, d))
	assert.False(t, CanReadDemande(Principal{UserID: "stag-2", Role: models.RoleStagiaire}, d))
}

func TestCanWriteDemandeEditWindow(t *testing.T) {
	assert.True(t, CanWriteDemande(stagiaire, demandeOf(models.DemandeStatusEnAttente), OpUpdate))

	for _, status := range []models.DemandeStatus{
		models.DemandeStatusEnCours,
		models.DemandeStatusApprouvee,
		models.DemandeStatusRejetee,
		models.DemandeStatusTerminee,
	} {
		assert.False(t, CanWriteDemande(stagiaire, demandeOf(status), OpUpdate), "status %s", status)
	}

	// Admin bypasses the edit window.
	assert.True(t, CanWriteDemande(admin, demandeOf(models.DemandeStatusTerminee), OpUpdate))
}

func TestCanWriteDemandeApprove(t *testing.T) {
	d := demandeOf(models.DemandeStatusEnCours)

	assert.True(t, CanWriteDemande(rh, d, OpApprove))
	assert.True(t, CanWriteDemande(tuteur, d, OpApprove))
	assert.False(t, CanWriteDemande(autre, d, OpApprove))
	assert.False(t, CanWriteDemande(stagiaire, d, OpApprove))
}

func TestCanWriteDemandePurgeIsAdminOnly(t *testing.T) {
	d := demandeOf(models.DemandeStatusRejetee)

	assert.True(t, CanWriteDemande(admin, d, OpDelete))
	assert.False(t, CanWriteDemande(rh, d, OpDelete))
	assert.False(t, CanWriteDemande(tuteur, d, OpDelete))
	assert.False(t, CanWriteDemande(stagiaire, d, OpDelete))
}

func TestCanActAtStep(t *testing.T) {
	d := demandeOf(models.DemandeStatusEnCours)

	cases := []struct {
		name string
		p    Principal
		step models.WorkflowStepName
		want bool
	}{
		{"stagiaire own step", stagiaire, models.StepStagiaire, true},
		{"stagiaire tuteur step", stagiaire, models.StepTuteur, false},
		{"assigned tuteur", tuteur, models.StepTuteur, true},
		{"unassigned tuteur", autre, models.StepTuteur, false},
		{"tuteur at rh step", tuteur, models.StepRH, false},
		{"rh at rh step", rh, models.StepRH, true},
		{"rh at finance step", rh, models.StepFinance, false},
		{"admin at finance step", admin, models.StepFinance, true},
		{"admin anywhere", admin, models.StepStagiaire, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanActAtStep(tc.p, d, tc.step), tc.name)
	}
}

func TestCanActAtStepUnassignedTuteur(t *testing.T) {
	d := DemandeView{StagiaireUserID: "stag-1", Status: models.DemandeStatusEnAttente}

	assert.False(t, CanActAtStep(tuteur, d, models.StepTuteur))
	assert.True(t, CanActAtStep(admin, d, models.StepTuteur))
}

func TestEvaluationAccess(t *testing.T) {
	e := EvaluationView{StagiaireUserID: "stag-1", TuteurUserID: "tuteur-1"}

	assert.True(t, CanReadEvaluation(stagiaire, e))
	assert.True(t, CanReadEvaluation(tuteur, e))
	assert.True(t, CanReadEvaluation(rh, e))
	assert.False(t, CanReadEvaluation(autre, e))
	assert.False(t, CanReadEvaluation(Principal{UserID: "stag-2", Role: models.RoleStagiaire}, e))

	assert.True(t, CanWriteEvaluation(tuteur, e, OpCreate))
	assert.True(t, CanWriteEvaluation(tuteur, e, OpUpdate))
	assert.False(t, CanWriteEvaluation(autre, e, OpCreate))
	assert.False(t, CanWriteEvaluation(stagiaire, e, OpUpdate))

	assert.True(t, CanWriteEvaluation(rh, e, OpDelete))
	assert.False(t, CanWriteEvaluation(tuteur, e, OpDelete))
	assert.True(t, CanWriteEvaluation(admin, e, OpDelete))
}

func TestStagiaireAccess(t *testing.T) {
	s := StagiaireView{UserID: "stag-1", TuteurUserID: "tuteur-1"}

	assert.True(t, CanReadStagiaire(stagiaire, s))
	assert.True(t, CanReadStagiaire(tuteur, s))
	assert.False(t, CanReadStagiaire(autre, s))
	assert.True(t, CanReadStagiaire(rh, s))

	assert.True(t, CanWriteStagiaire(stagiaire, s, OpUpdate))
	assert.False(t, CanWriteStagiaire(tuteur, s, OpUpdate))
	assert.True(t, CanWriteStagiaire(rh, s, OpAssign))
	assert.False(t, CanWriteStagiaire(tuteur, s, OpAssign))
}

func TestDocumentAccess(t *testing.T) {
	private := DocumentView{OwnerUserID: "stag-1"}
	public := DocumentView{OwnerUserID: "stag-2", Public: true}

	assert.True(t, CanAccessDocument(stagiaire, private))
	assert.True(t, CanAccessDocument(stagiaire, public))
	assert.False(t, CanAccessDocument(Principal{UserID: "stag-2", Role: models.RoleStagiaire}, private))
	assert.True(t, CanAccessDocument(tuteur, private))
	assert.True(t, CanAccessDocument(rh, private))
	assert.True(t, CanAccessDocument(admin, private))
}

func TestScopes(t *testing.T) {
	assert.True(t, DemandeScope(admin).All)
	assert.True(t, DemandeScope(rh).All)
	assert.Equal(t, "tuteur-1", DemandeScope(tuteur).TuteurUserID)
	assert.Equal(t, "stag-1", DemandeScope(stagiaire).OwnerUserID)

	assert.Equal(t, "tuteur-1", StagiaireScope(tuteur).TuteurUserID)
	assert.Equal(t, "stag-1", EvaluationScope(stagiaire).OwnerUserID)

	docScope := DocumentScope(stagiaire)
	assert.Equal(t, "stag-1", docScope.OwnerUserID)
	assert.True(t, docScope.IncludePublic)
	assert.True(t, DocumentScope(tuteur).All)

	// Unknown role sees nothing.
	none := DemandeScope(Principal{UserID: "x", Role: "VISITEUR"})
	assert.False(t, none.All)
	assert.Empty(t, none.OwnerUserID)
	assert.Empty(t, none.TuteurUserID)
}
