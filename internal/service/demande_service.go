package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
	"github.com/stageflow/stageflow-api/pkg/export"
)

type demandeStore interface {
	CreateWithInitialStep(ctx context.Context, demande *models.Demande, createdByUserID string) error
	GetDetail(ctx context.Context, id string) (*models.DemandeDetail, error)
	ListSteps(ctx context.Context, demandeID string) ([]models.WorkflowStep, error)
	List(ctx context.Context, filter models.DemandeFilter) ([]models.DemandeDetail, int, error)
	Update(ctx context.Context, demande *models.Demande) error
	Purge(ctx context.Context, id string) error
}

type stagiaireLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Stagiaire, error)
	GetDetail(ctx context.Context, id string) (*models.StagiaireDetail, error)
}

// DemandeService owns demande CRUD. All state transitions past creation
// go through WorkflowService, never through direct status writes.
type DemandeService struct {
	repo       demandeStore
	stagiaires stagiaireLookup
	audit      auditLogger
	validator  *validator.Validate
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewDemandeService constructs the service.
func NewDemandeService(repo demandeStore, stagiaires stagiaireLookup, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *DemandeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerDemandeValidations(validate)
	return &DemandeService{
		repo:       repo,
		stagiaires: stagiaires,
		audit:      audit,
		validator:  validate,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

func registerDemandeValidations(validate *validator.Validate) {
	validate.RegisterValidation("demande_type", func(fl validator.FieldLevel) bool { //nolint:errcheck
		switch models.DemandeType(fl.Field().String()) {
		case models.DemandeTypeConge, models.DemandeTypeProlongation, models.DemandeTypeAttestation, models.DemandeTypeAutre:
			return true
		default:
			return false
		}
	})
}

// Create submits a new demande for the actor's own internship profile
// and seeds the workflow at the stagiaire step.
func (s *DemandeService) Create(ctx context.Context, req dto.CreateDemandeRequest, actor authz.Principal) (*dto.DemandeResponse, error) {
	if !authz.CanWriteDemande(actor, authz.DemandeView{}, authz.OpCreate) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	profile, err := s.stagiaires.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no internship profile for this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load internship profile")
	}

	demande := &models.Demande{
		StagiaireID: profile.ID,
		TuteurID:    profile.TuteurID,
		Type:        models.DemandeType(strings.ToUpper(req.Type)),
		Titre:       strings.TrimSpace(req.Titre),
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.repo.CreateWithInitialStep(ctx, demande, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create demande")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDemandeCreate, demande.ID)
	return s.buildResponse(ctx, demande.ID)
}

// Get returns one demande with its workflow trail, access permitting.
func (s *DemandeService) Get(ctx context.Context, id string, actor authz.Principal) (*dto.DemandeResponse, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load demande")
	}
	if !authz.CanReadDemande(actor, demandeView(detail)) {
		return nil, appErrors.ErrForbidden
	}
	return s.buildResponse(ctx, id)
}

// List returns the demandes visible to the actor, scope-filtered at the
// query level so out-of-scope rows never leave the database.
func (s *DemandeService) List(ctx context.Context, query dto.DemandeQuery, actor authz.Principal) ([]models.DemandeDetail, *models.Pagination, error) {
	scope := authz.DemandeScope(actor)
	if !scope.All && scope.OwnerUserID == "" && scope.TuteurUserID == "" {
		return nil, nil, appErrors.ErrForbidden
	}
	filter := models.DemandeFilter{
		Status:          query.Status,
		Type:            query.Type,
		StagiaireUserID: scope.OwnerUserID,
		TuteurUserID:    scope.TuteurUserID,
		Page:            query.Page,
		PageSize:        query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	demandes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list demandes")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return demandes, pagination, nil
}

// Update edits the requester-owned fields while the demande is still
// EN_ATTENTE. Anything later is immutable to the requester.
func (s *DemandeService) Update(ctx context.Context, id string, req dto.UpdateDemandeRequest, actor authz.Principal) (*dto.DemandeResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load demande")
	}
	if !authz.CanWriteDemande(actor, demandeView(detail), authz.OpUpdate) {
		return nil, appErrors.ErrForbidden
	}

	demande := detail.Demande
	if req.Type != nil {
		demande.Type = models.DemandeType(strings.ToUpper(*req.Type))
	}
	if req.Titre != nil {
		demande.Titre = strings.TrimSpace(*req.Titre)
	}
	if req.Description != nil {
		demande.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.repo.Update(ctx, &demande); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Status moved past EN_ATTENTE between the read and the write.
			return nil, appErrors.Clone(appErrors.ErrConflict, "demande is no longer editable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update demande")
	}

	s.emitAudit(ctx, actor.UserID, models.AuditActionDemandeUpdate, id)
	return s.buildResponse(ctx, id)
}

// Purge physically removes a demande and its history. Administrative
// escape hatch, normal flow never deletes.
func (s *DemandeService) Purge(ctx context.Context, id string, actor authz.Principal) error {
	if !authz.CanWriteDemande(actor, authz.DemandeView{}, authz.OpDelete) {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Purge(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge demande")
	}
	s.emitAudit(ctx, actor.UserID, models.AuditActionDemandePurge, id)
	return nil
}

// ExportCSV renders the actor's visible demandes as a CSV file.
func (s *DemandeService) ExportCSV(ctx context.Context, query dto.DemandeQuery, actor authz.Principal) ([]byte, error) {
	query.Page = 1
	query.PageSize = 100
	demandes, _, err := s.List(ctx, query, actor)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"id", "type", "status", "titre", "stagiaire_user_id", "created_at", "date_reponse"},
	}
	for _, d := range demandes {
		row := map[string]string{
			"id":                d.ID,
			"type":              string(d.Type),
			"status":            string(d.Status),
			"titre":             d.Titre,
			"stagiaire_user_id": d.StagiaireUserID,
			"created_at":        d.CreatedAt.Format(time.RFC3339),
		}
		if d.DateReponse != nil {
			row["date_reponse"] = d.DateReponse.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// Attestation renders the internship certificate for a fully approved
// attestation demande.
func (s *DemandeService) Attestation(ctx context.Context, id string, actor authz.Principal) ([]byte, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load demande")
	}
	if !authz.CanReadDemande(actor, demandeView(detail)) {
		return nil, appErrors.ErrForbidden
	}
	if detail.Type != models.DemandeTypeAttestation {
		return nil, appErrors.Clone(appErrors.ErrValidation, "demande is not an attestation request")
	}
	if detail.Status != models.DemandeStatusTerminee {
		return nil, appErrors.Clone(appErrors.ErrConflict, "attestation demande is not fully approved yet")
	}

	profile, err := s.stagiaires.GetDetail(ctx, detail.StagiaireID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load internship profile")
	}

	att := export.Attestation{
		Reference:     detail.ID,
		StagiaireName: profile.FullName,
		Periode:       formatPeriode(profile.DateDebut, profile.DateFin),
		IssuedOn:      time.Now().UTC().Format("02/01/2006"),
		Lines:         []string{fmt.Sprintf("Sujet du stage: %s", profile.Sujet)},
	}
	if profile.TuteurName != nil {
		att.TuteurName = *profile.TuteurName
	}
	data, err := s.pdf.RenderAttestation(att)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attestation")
	}
	return data, nil
}

func (s *DemandeService) buildResponse(ctx context.Context, id string) (*dto.DemandeResponse, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload demande")
	}
	steps, err := s.repo.ListSteps(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow history")
	}
	resp := &dto.DemandeResponse{DemandeDetail: *detail, Workflow: steps}
	if len(steps) > 0 {
		resp.CurrentStep = steps[len(steps)-1].Step
	}
	return resp, nil
}

func (s *DemandeService) emitAudit(ctx context.Context, userID, action, demandeID string) {
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

func formatPeriode(debut time.Time, fin *time.Time) string {
	const layout = "02/01/2006"
	if fin != nil {
		return fmt.Sprintf("du %s au %s", debut.Format(layout), fin.Format(layout))
	}
	return fmt.Sprintf("depuis le %s", debut.Format(layout))
}
