package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

type evaluationStore interface {
	GetDetail(ctx context.Context, id string) (*models.EvaluationDetail, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.EvaluationDetail, int, error)
	Create(ctx context.Context, e *models.Evaluation) error
	Update(ctx context.Context, e *models.Evaluation) error
	Delete(ctx context.Context, id string) error
}

// EvaluationService manages tuteur assessments of stagiaires.
type EvaluationService struct {
	repo       evaluationStore
	stagiaires stagiaireLookup
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEvaluationService constructs the service.
func NewEvaluationService(repo evaluationStore, stagiaires stagiaireLookup, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{repo: repo, stagiaires: stagiaires, audit: audit, validator: validate, logger: logger}
}

// Get returns one evaluation, access permitting.
func (s *EvaluationService) Get(ctx context.Context, id string, actor authz.Principal) (*models.EvaluationDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanReadEvaluation(actor, evaluationView(detail)) {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// List returns evaluations within the actor's scope.
func (s *EvaluationService) List(ctx context.Context, query dto.EvaluationQuery, actor authz.Principal) ([]models.EvaluationDetail, *models.Pagination, error) {
	scope := authz.EvaluationScope(actor)
	if !scope.All && scope.OwnerUserID == "" && scope.TuteurUserID == "" {
		return nil, nil, appErrors.ErrForbidden
	}
	filter := models.EvaluationFilter{
		StagiaireID:     query.StagiaireID,
		StagiaireUserID: scope.OwnerUserID,
		TuteurID:        scope.TuteurUserID,
		Page:            query.Page,
		PageSize:        query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return details, pagination, nil
}

// Create records an assessment. Only the assigned tuteur (or admin) may
// evaluate a stagiaire.
func (s *EvaluationService) Create(ctx context.Context, req dto.CreateEvaluationRequest, actor authz.Principal) (*models.EvaluationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	profile, err := s.stagiaires.GetDetail(ctx, req.StagiaireID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stagiaire")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stagiaire")
	}
	view := authz.EvaluationView{StagiaireUserID: profile.UserID}
	if profile.TuteurID != nil {
		view.TuteurUserID = *profile.TuteurID
	}
	if !authz.CanWriteEvaluation(actor, view, authz.OpCreate) {
		return nil, appErrors.ErrForbidden
	}

	evaluation := &models.Evaluation{
		StagiaireID: req.StagiaireID,
		TuteurID:    actor.UserID,
		Periode:     req.Periode,
		Note:        req.Note,
		Commentaire: req.Commentaire,
	}
	if err := s.repo.Create(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evaluation")
	}

	s.emitAudit(ctx, actor.UserID, evaluation.ID)
	return s.load(ctx, evaluation.ID)
}

// Update edits an assessment the actor authored.
func (s *EvaluationService) Update(ctx context.Context, id string, req dto.UpdateEvaluationRequest, actor authz.Principal) (*models.EvaluationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanWriteEvaluation(actor, evaluationView(detail), authz.OpUpdate) {
		return nil, appErrors.ErrForbidden
	}

	evaluation := detail.Evaluation
	if req.Periode != nil {
		evaluation.Periode = *req.Periode
	}
	if req.Note != nil {
		evaluation.Note = *req.Note
	}
	if req.Commentaire != nil {
		evaluation.Commentaire = *req.Commentaire
	}
	if err := s.repo.Update(ctx, &evaluation); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evaluation")
	}

	s.emitAudit(ctx, actor.UserID, id)
	return s.load(ctx, id)
}

// Delete removes an assessment. RH and admin only.
func (s *EvaluationService) Delete(ctx context.Context, id string, actor authz.Principal) error {
	detail, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanWriteEvaluation(actor, evaluationView(detail), authz.OpDelete) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evaluation")
	}
	return nil
}

func (s *EvaluationService) load(ctx context.Context, id string) (*models.EvaluationDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return detail, nil
}

func (s *EvaluationService) emitAudit(ctx context.Context, userID, evaluationID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionEvaluationWrite,
		Resource:   "evaluation",
		ResourceID: &evaluationID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}

func evaluationView(d *models.EvaluationDetail) authz.EvaluationView {
	return authz.EvaluationView{StagiaireUserID: d.StagiaireUserID, TuteurUserID: d.TuteurID}
}
