package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/dto"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

type demandeCounter interface {
	CountByStatus(ctx context.Context, tuteurUserID, stagiaireUserID string) (map[models.DemandeStatus]int, error)
}

// DashboardService aggregates demande counts per caller scope, with a
// short-lived Redis cache in front of the count query.
type DashboardService struct {
	demandes demandeCounter
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService constructs the service. A nil cache disables caching.
func NewDashboardService(demandes demandeCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{demandes: demandes, cache: cache, cacheTTL: cacheTTL, logger: logger, now: time.Now}
}

// Summary returns the dashboard for the actor's visibility scope.
func (s *DashboardService) Summary(ctx context.Context, actor authz.Principal) (*dto.DashboardResponse, error) {
	var tuteurUserID, stagiaireUserID string
	var cacheKey string
	switch actor.Role {
	case models.RoleAdmin, models.RoleRH:
		cacheKey = "dash:all"
	case models.RoleTuteur:
		tuteurUserID = actor.UserID
		cacheKey = fmt.Sprintf("dash:tuteur:%s", actor.UserID)
	case models.RoleStagiaire:
		stagiaireUserID = actor.UserID
		cacheKey = fmt.Sprintf("dash:stagiaire:%s", actor.UserID)
	default:
		return nil, appErrors.ErrForbidden
	}

	if s.cache != nil {
		var cached dto.DashboardResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			cached.CacheHit = true
			return &cached, nil
		}
		// cache failures degrade to a direct query
	}

	counts, err := s.demandes.CountByStatus(ctx, tuteurUserID, stagiaireUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate demandes")
	}

	summary := &dto.DashboardResponse{
		ByStatus:    counts,
		EnCours:     counts[models.DemandeStatusEnCours],
		Terminees:   counts[models.DemandeStatusTerminee],
		Rejetees:    counts[models.DemandeStatusRejetee],
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
	for _, count := range counts {
		summary.Total += count
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, nil
}

// InvalidateAll drops every cached dashboard. Called after workflow
// transitions so counts never lag more than one request behind.
func (s *DashboardService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
