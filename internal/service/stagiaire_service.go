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

type stagiaireStore interface {
	GetDetail(ctx context.Context, id string) (*models.StagiaireDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.Stagiaire, error)
	List(ctx context.Context, filter models.StagiaireFilter) ([]models.StagiaireDetail, int, error)
	Create(ctx context.Context, s *models.Stagiaire) error
	Update(ctx context.Context, s *models.Stagiaire) error
	AssignTuteur(ctx context.Context, stagiaireID string, tuteurUserID *string) error
	Delete(ctx context.Context, id string) error
}

type tuteurLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// StagiaireService manages internship profiles and tuteur assignment.
type StagiaireService struct {
	repo      stagiaireStore
	users     tuteurLookup
	audit     auditLogger
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStagiaireService constructs the service.
func NewStagiaireService(repo stagiaireStore, users tuteurLookup, audit auditLogger, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *StagiaireService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StagiaireService{repo: repo, users: users, audit: audit, notifier: notifier, validator: validate, logger: logger}
}

// Get returns one profile, access permitting.
func (s *StagiaireService) Get(ctx context.Context, id string, actor authz.Principal) (*models.StagiaireDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanReadStagiaire(actor, stagiaireView(detail)) {
		return nil, appErrors.ErrForbidden
	}
	return detail, nil
}

// List returns profiles within the actor's scope.
func (s *StagiaireService) List(ctx context.Context, query dto.StagiaireQuery, actor authz.Principal) ([]models.StagiaireDetail, *models.Pagination, error) {
	scope := authz.StagiaireScope(actor)
	if !scope.All && scope.OwnerUserID == "" && scope.TuteurUserID == "" {
		return nil, nil, appErrors.ErrForbidden
	}
	filter := models.StagiaireFilter{
		TuteurID:  scope.TuteurUserID,
		UserID:    scope.OwnerUserID,
		Promotion: query.Promotion,
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stagiaires")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return details, pagination, nil
}

// Create provisions a profile for an existing stagiaire account. RH and
// admin only.
func (s *StagiaireService) Create(ctx context.Context, req dto.CreateStagiaireRequest, actor authz.Principal) (*models.StagiaireDetail, error) {
	if !authz.CanWriteStagiaire(actor, authz.StagiaireView{}, authz.OpCreate) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown user account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != models.RoleStagiaire {
		return nil, appErrors.Clone(appErrors.ErrValidation, "account is not a stagiaire")
	}
	if _, err := s.repo.FindByUserID(ctx, req.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account already has an internship profile")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing profile")
	}

	stagiaire := &models.Stagiaire{
		UserID:    req.UserID,
		Promotion: req.Promotion,
		Sujet:     req.Sujet,
		DateDebut: req.DateDebut,
		DateFin:   req.DateFin,
	}
	if err := s.repo.Create(ctx, stagiaire); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create stagiaire")
	}
	return s.load(ctx, stagiaire.ID)
}

// Update edits profile fields; the owner or rh may edit.
func (s *StagiaireService) Update(ctx context.Context, id string, req dto.UpdateStagiaireRequest, actor authz.Principal) (*models.StagiaireDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanWriteStagiaire(actor, stagiaireView(detail), authz.OpUpdate) {
		return nil, appErrors.ErrForbidden
	}

	stagiaire := detail.Stagiaire
	if req.Promotion != nil {
		stagiaire.Promotion = *req.Promotion
	}
	if req.Sujet != nil {
		stagiaire.Sujet = *req.Sujet
	}
	if req.DateDebut != nil {
		stagiaire.DateDebut = *req.DateDebut
	}
	if req.DateFin != nil {
		stagiaire.DateFin = req.DateFin
	}
	if err := s.repo.Update(ctx, &stagiaire); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update stagiaire")
	}
	return s.load(ctx, id)
}

// AssignTuteur binds a tuteur user to the stagiaire and tells them.
// Passing a nil tuteur id clears the assignment.
func (s *StagiaireService) AssignTuteur(ctx context.Context, id string, req dto.AssignTuteurRequest, actor authz.Principal) (*models.StagiaireDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanWriteStagiaire(actor, stagiaireView(detail), authz.OpAssign) {
		return nil, appErrors.ErrForbidden
	}

	if req.TuteurUserID != nil {
		tuteur, err := s.users.FindByID(ctx, *req.TuteurUserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown tuteur account")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tuteur")
		}
		if tuteur.Role != models.RoleTuteur {
			return nil, appErrors.Clone(appErrors.ErrValidation, "account is not a tuteur")
		}
	}

	if err := s.repo.AssignTuteur(ctx, id, req.TuteurUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign tuteur")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionTuteurAssign, id)
	if s.notifier != nil && req.TuteurUserID != nil {
		s.notifier.Notify(ctx, *req.TuteurUserID, models.NotificationTuteurAssigned, map[string]string{"stagiaireId": id})
	}
	return s.load(ctx, id)
}

// Delete removes a profile. RH and admin only.
func (s *StagiaireService) Delete(ctx context.Context, id string, actor authz.Principal) error {
	detail, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.CanWriteStagiaire(actor, stagiaireView(detail), authz.OpDelete) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete stagiaire")
	}
	return nil
}

func (s *StagiaireService) load(ctx context.Context, id string) (*models.StagiaireDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stagiaire")
	}
	return detail, nil
}

func (s *StagiaireService) emitAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "stagiaire",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func stagiaireView(d *models.StagiaireDetail) authz.StagiaireView {
	view := authz.StagiaireView{UserID: d.UserID}
	if d.TuteurID != nil {
		view.TuteurUserID = *d.TuteurID
	}
	return view
}
