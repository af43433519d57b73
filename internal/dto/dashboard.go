package dto

import "github.com/stageflow/stageflow-api/internal/models"

// DashboardResponse aggregates demande counts for the caller's scope.
type DashboardResponse struct {
	Total       int                          `json:"total"`
	ByStatus    map[models.DemandeStatus]int `json:"byStatus"`
	EnCours     int                          `json:"enCours"`
	Terminees   int                          `json:"terminees"`
	Rejetees    int                          `json:"rejetees"`
	GeneratedAt string                       `json:"generatedAt"`
	CacheHit    bool                         `json:"cacheHit"`
}
