package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	"github.com/stageflow/stageflow-api/internal/repository"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

type workflowStore interface {
	GetDetail(ctx context.Context, id string) (*models.DemandeDetail, error)
	LatestStep(ctx context.Context, demandeID string) (*models.WorkflowStep, error)
	ListSteps(ctx context.Context, demandeID string) ([]models.WorkflowStep, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Notifier is the fire-and-forget notification sink. Implementations
// must never block the workflow on delivery.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind models.NotificationKind, payload map[string]string)
}

// WorkflowService drives the linear approval chain of a demande:
// stagiaire, tuteur, rh, finance, termine. History is append-only and
// demande status is derived from it, never set directly by callers.
type WorkflowService struct {
	repo     workflowStore
	audit    auditLogger
	notifier Notifier
	logger   *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(repo workflowStore, audit auditLogger, notifier Notifier, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// ApproveStep advances the chain by one step. The caller states which
// step it believes is pending; if a concurrent approver already acted,
// the operation fails with a conflict and nothing is written.
func (s *WorkflowService) ApproveStep(ctx context.Context, demandeID string, req dto.DecideStepRequest, actor authz.Principal) (*dto.DemandeResponse, error) {
	step := models.WorkflowStepName(strings.ToUpper(strings.TrimSpace(req.CurrentStep)))
	if !models.ValidStep(step) || step == models.StepTermine {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown workflow step")
	}

	detail, current, err := s.loadPending(ctx, demandeID, step)
	if err != nil {
		return nil, err
	}
	if !authz.CanActAtStep(actor, demandeView(detail), current.Step) {
		return nil, appErrors.ErrForbidden
	}

	comments := normalizeComments(req.Comments)
	actorID := actor.UserID
	now := time.Now().UTC()
	params := repository.TransitionParams{
		DemandeID:    demandeID,
		ExpectedStep: step,
		Steps: []models.WorkflowStep{
			{Step: step, Action: models.ActionApprove, UserID: &actorID, Comments: comments},
		},
	}

	next, _ := models.NextStep(step)
	terminal := next == models.StepTermine
	if terminal {
		params.Steps = append(params.Steps, models.WorkflowStep{Step: models.StepTermine, Action: models.ActionApprove})
		params.Status = models.DemandeStatusTerminee
		params.DateReponse = &now
		params.CommentaireReponse = comments
	} else {
		params.Steps = append(params.Steps, models.WorkflowStep{Step: next, Action: models.ActionPending})
		params.Status = models.DemandeStatusEnCours
	}

	if err := s.repo.ApplyTransition(ctx, params); err != nil {
		return nil, s.transitionError(err)
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDemandeApprove, demandeID)
	if terminal {
		s.notify(ctx, detail.StagiaireUserID, models.NotificationDemandeApproved, demandeID, comments)
	}
	return s.reload(ctx, demandeID)
}

// RejectStep halts the chain at the stated step. A rejection reason is
// mandatory; the workflow is terminal afterwards.
func (s *WorkflowService) RejectStep(ctx context.Context, demandeID string, req dto.DecideStepRequest, actor authz.Principal) (*dto.DemandeResponse, error) {
	step := models.WorkflowStepName(strings.ToUpper(strings.TrimSpace(req.CurrentStep)))
	if !models.ValidStep(step) || step == models.StepTermine {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown workflow step")
	}

	detail, current, err := s.loadPending(ctx, demandeID, step)
	if err != nil {
		return nil, err
	}
	if !authz.CanActAtStep(actor, demandeView(detail), current.Step) {
		return nil, appErrors.ErrForbidden
	}

	comments := normalizeComments(req.Comments)
	if comments == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection reason is required")
	}

	actorID := actor.UserID
	now := time.Now().UTC()
	params := repository.TransitionParams{
		DemandeID:    demandeID,
		ExpectedStep: step,
		Steps: []models.WorkflowStep{
			{Step: step, Action: models.ActionReject, UserID: &actorID, Comments: comments},
		},
		Status:             models.DemandeStatusRejetee,
		DateReponse:        &now,
		CommentaireReponse: comments,
	}

	if err := s.repo.ApplyTransition(ctx, params); err != nil {
		return nil, s.transitionError(err)
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDemandeReject, demandeID)
	s.notify(ctx, detail.StagiaireUserID, models.NotificationDemandeRejected, demandeID, comments)
	return s.reload(ctx, demandeID)
}

// History returns the full workflow trail of a demande the actor may read.
func (s *WorkflowService) History(ctx context.Context, demandeID string, actor authz.Principal) ([]models.WorkflowStep, error) {
	detail, err := s.repo.GetDetail(ctx, demandeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load demande")
	}
	if !authz.CanReadDemande(actor, demandeView(detail)) {
		return nil, appErrors.ErrForbidden
	}
	steps, err := s.repo.ListSteps(ctx, demandeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow history")
	}
	return steps, nil
}

// loadPending fetches the demande and verifies the stated step is the
// one actually pending. Stale callers get a conflict before any
// permission check so interactive clients know to refresh.
func (s *WorkflowService) loadPending(ctx context.Context, demandeID string, expected models.WorkflowStepName) (*models.DemandeDetail, *models.WorkflowStep, error) {
	detail, err := s.repo.GetDetail(ctx, demandeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load demande")
	}

	current, err := s.repo.LatestStep(ctx, demandeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrConflict, "demande has no pending workflow step")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current workflow step")
	}
	if current.Action != models.ActionPending {
		return nil, nil, appErrors.ErrWorkflowTerminal
	}
	if current.Step != expected {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "demande workflow has moved on, refresh and retry")
	}
	return detail, current, nil
}

func (s *WorkflowService) transitionError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleStep):
		return appErrors.Clone(appErrors.ErrConflict, "demande workflow has moved on, refresh and retry")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.ErrNotFound
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply workflow transition")
	}
}

func (s *WorkflowService) reload(ctx context.Context, demandeID string) (*dto.DemandeResponse, error) {
	detail, err := s.repo.GetDetail(ctx, demandeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload demande")
	}
	steps, err := s.repo.ListSteps(ctx, demandeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow history")
	}
	resp := &dto.DemandeResponse{DemandeDetail: *detail, Workflow: steps}
	if len(steps) > 0 {
		resp.CurrentStep = steps[len(steps)-1].Step
	}
	return resp, nil
}

func (s *WorkflowService) notify(ctx context.Context, userID string, kind models.NotificationKind, demandeID string, comments *string) {
	if s.notifier == nil || userID == "" {
		return
	}
	payload := map[string]string{"demandeId": demandeID}
	if comments != nil {
		payload["comments"] = *comments
	}
	s.notifier.Notify(ctx, userID, kind, payload)
}

func (s *WorkflowService) emitAudit(ctx context.Context, userID, action, demandeID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "demande",
		ResourceID: &demandeID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func demandeView(d *models.DemandeDetail) authz.DemandeView {
	view := authz.DemandeView{StagiaireUserID: d.StagiaireUserID, Status: d.Status}
	if d.TuteurUserID != nil {
		view.TuteurUserID = *d.TuteurUserID
	}
	return view
}

func normalizeComments(c string) *string {
	c = strings.TrimSpace(c)
	if c == "" {
		return nil
	}
	return &c
}
