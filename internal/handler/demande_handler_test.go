package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow-api/internal/middleware"
	"github.com/stageflow/stageflow-api/internal/models"
	"github.com/stageflow/stageflow-api/internal/repository"
	"github.com/stageflow/stageflow-api/internal/service"
)

type workflowStoreStub struct {
	detail *models.DemandeDetail
	steps  []models.WorkflowStep
}

func (s *workflowStoreStub) GetDetail(context.Context, string) (*models.DemandeDetail, error) {
	return s.detail, nil
}

func (s *workflowStoreStub) LatestStep(context.Context, string) (*models.WorkflowStep, error) {
	latest := s.steps[len(s.steps)-1]
	return &latest, nil
}

func (s *workflowStoreStub) ListSteps(context.Context, string) ([]models.WorkflowStep, error) {
	return s.steps, nil
}

func (s *workflowStoreStub) ApplyTransition(_ context.Context, params repository.TransitionParams) error {
	latest := s.steps[len(s.steps)-1]
	if latest.Action != models.ActionPending || latest.Step != params.ExpectedStep {
		return repository.ErrStaleStep
	}
	s.steps = append(s.steps, params.Steps...)
	s.detail.Status = params.Status
	return nil
}

func newWorkflowStub(pending models.WorkflowStepName) *workflowStoreStub {
	tuteur := "tuteur-1"
	return &workflowStoreStub{
		detail: &models.DemandeDetail{
			Demande: models.Demande{
				ID:     "dem-1",
				Type:   models.DemandeTypeConge,
				Status: models.DemandeStatusEnCours,
			},
			StagiaireUserID: "stag-user-1",
			TuteurUserID:    &tuteur,
		},
		steps: []models.WorkflowStep{
			{ID: 1, DemandeID: "dem-1", Step: models.StepStagiaire, Action: models.ActionApprove},
			{ID: 2, DemandeID: "dem-1", Step: pending, Action: models.ActionPending},
		},
	}
}

func workflowRequest(t *testing.T, handler *DemandeHandler, method string, body string, claims *models.JWTClaims, invoke func(*gin.Context)) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, "/demandes/dem-1", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "dem-1"}}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	invoke(c)
	return rec
}

func TestDemandeHandlerApproveAdvancesChain(t *testing.T) {
	stub := newWorkflowStub(models.StepTuteur)
	workflow := service.NewWorkflowService(stub, nil, nil, nil)
	handler := NewDemandeHandler(nil, workflow, nil)

	claims := &models.JWTClaims{UserID: "tuteur-1", Role: models.RoleTuteur}
	rec := workflowRequest(t, handler, http.MethodPost, `{"currentStep":"TUTEUR"}`, claims, handler.Approve)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var envelope struct {
		Data struct {
			CurrentStep string        `json:"currentStep"`
			Workflow    []interface{} `json:"workflow"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "RH", envelope.Data.CurrentStep)
	assert.Len(t, envelope.Data.Workflow, 4)
}

func TestDemandeHandlerApproveStaleStepConflicts(t *testing.T) {
	stub := newWorkflowStub(models.StepRH)
	workflow := service.NewWorkflowService(stub, nil, nil, nil)
	handler := NewDemandeHandler(nil, workflow, nil)

	claims := &models.JWTClaims{UserID: "tuteur-1", Role: models.RoleTuteur}
	rec := workflowRequest(t, handler, http.MethodPost, `{"currentStep":"TUTEUR"}`, claims, handler.Approve)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDemandeHandlerApproveWrongRoleForbidden(t *testing.T) {
	stub := newWorkflowStub(models.StepTuteur)
	workflow := service.NewWorkflowService(stub, nil, nil, nil)
	handler := NewDemandeHandler(nil, workflow, nil)

	claims := &models.JWTClaims{UserID: "other-tuteur", Role: models.RoleTuteur}
	rec := workflowRequest(t, handler, http.MethodPost, `{"currentStep":"TUTEUR"}`, claims, handler.Approve)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDemandeHandlerRejectRequiresComment(t *testing.T) {
	stub := newWorkflowStub(models.StepRH)
	workflow := service.NewWorkflowService(stub, nil, nil, nil)
	handler := NewDemandeHandler(nil, workflow, nil)

	claims := &models.JWTClaims{UserID: "rh-1", Role: models.RoleRH}
	rec := workflowRequest(t, handler, http.MethodPost, `{"currentStep":"RH"}`, claims, handler.Reject)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemandeHandlerWorkflowHistoryScoped(t *testing.T) {
	stub := newWorkflowStub(models.StepTuteur)
	workflow := service.NewWorkflowService(stub, nil, nil, nil)
	handler := NewDemandeHandler(nil, workflow, nil)

	claims := &models.JWTClaims{UserID: "someone-else", Role: models.RoleStagiaire}
	rec := workflowRequest(t, handler, http.MethodGet, "", claims, handler.Workflow)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	owner := &models.JWTClaims{UserID: "stag-user-1", Role: models.RoleStagiaire}
	rec = workflowRequest(t, handler, http.MethodGet, "", owner, handler.Workflow)
	assert.Equal(t, http.StatusOK, rec.Code)
}
