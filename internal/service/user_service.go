package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UserService provides administrative account management.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool { //nolint:errcheck
		switch models.UserRole(fl.Field().String()) {
		case models.RoleAdmin, models.RoleRH, models.RoleTuteur, models.RoleStagiaire:
			return true
		default:
			return false
		}
	})
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns accounts matching the query.
func (s *UserService) List(ctx context.Context, query dto.UserQuery) ([]dto.UserResponse, *models.Pagination, error) {
	filter := models.UserFilter{
		Search:    query.Search,
		Active:    query.Active,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if query.Role != "" {
		role := models.UserRole(strings.ToUpper(query.Role))
		filter.Role = &role
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	out := make([]dto.UserResponse, len(users))
	for i := range users {
		out[i] = dto.NewUserResponse(&users[i])
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return out, pagination, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// Create provisions a new account with a hashed password.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID string) (*dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.UserRole(strings.ToUpper(req.Role)),
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.emitAudit(ctx, actorID, models.AuditActionUserCreate, user.ID)
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// Update edits account fields.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actorID string) (*dto.UserResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		user.Role = models.UserRole(strings.ToUpper(*req.Role))
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.emitAudit(ctx, actorID, models.AuditActionUserUpdate, id)
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// Deactivate soft-deletes an account, immediately blocking new logins.
func (s *UserService) Deactivate(ctx context.Context, id string, actorID string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	s.emitAudit(ctx, actorID, models.AuditActionUserDelete, id)
	return nil
}

func (s *UserService) emitAudit(ctx context.Context, actorID, action, resourceID string) {
	log := &models.AuditLog{
		Action:     action,
		Resource:   "user",
		ResourceID: &resourceID,
		CreatedAt:  time.Now().UTC(),
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.repo.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
