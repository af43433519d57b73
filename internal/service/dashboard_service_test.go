package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow-api/internal/authz"
	"github.com/stageflow/stageflow-api/internal/models"
	appErrors "github.com/stageflow/stageflow-api/pkg/errors"
)

type counterStub struct {
	lastTuteur    string
	lastStagiaire string
	counts        map[models.DemandeStatus]int
	calls         int
}

func (c *counterStub) CountByStatus(_ context.Context, tuteurUserID, stagiaireUserID string) (map[models.DemandeStatus]int, error) {
	c.calls++
	c.lastTuteur = tuteurUserID
	c.lastStagiaire = stagiaireUserID
	return c.counts, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	m.entries = map[string][]byte{}
	return nil
}

func TestDashboardScopePerRole(t *testing.T) {
	counter := &counterStub{counts: map[models.DemandeStatus]int{
		models.DemandeStatusEnAttente: 1,
		models.DemandeStatusEnCours:   2,
		models.DemandeStatusTerminee:  3,
		models.DemandeStatusRejetee:   4,
	}}
	svc := NewDashboardService(counter, nil, time.Minute, nil)

	summary, err := svc.Summary(context.Background(), authz.Principal{UserID: "rh-1", Role: models.RoleRH})
	require.NoError(t, err)
	assert.Empty(t, counter.lastTuteur)
	assert.Empty(t, counter.lastStagiaire)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 2, summary.EnCours)
	assert.Equal(t, 3, summary.Terminees)
	assert.Equal(t, 4, summary.Rejetees)
	assert.False(t, summary.CacheHit)

	_, err = svc.Summary(context.Background(), authz.Principal{UserID: "tut-1", Role: models.RoleTuteur})
	require.NoError(t, err)
	assert.Equal(t, "tut-1", counter.lastTuteur)
	assert.Empty(t, counter.lastStagiaire)

	_, err = svc.Summary(context.Background(), authz.Principal{UserID: "stag-1", Role: models.RoleStagiaire})
	require.NoError(t, err)
	assert.Empty(t, counter.lastTuteur)
	assert.Equal(t, "stag-1", counter.lastStagiaire)
}

func TestDashboardUnknownRoleForbidden(t *testing.T) {
	svc := NewDashboardService(&counterStub{}, nil, time.Minute, nil)
	_, err := svc.Summary(context.Background(), authz.Principal{UserID: "x", Role: models.UserRole("GUEST")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDashboardCacheRoundTrip(t *testing.T) {
	counter := &counterStub{counts: map[models.DemandeStatus]int{
		models.DemandeStatusEnCours: 5,
	}}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewDashboardService(counter, cache, time.Minute, nil)
	actor := authz.Principal{UserID: "admin-1", Role: models.RoleAdmin}

	first, err := svc.Summary(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, counter.calls)

	second, err := svc.Summary(context.Background(), actor)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, counter.calls, "cache hit must not touch the repository")
	assert.Equal(t, first.Total, second.Total)

	svc.InvalidateAll(context.Background())
	third, err := svc.Summary(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, 2, counter.calls)
}
