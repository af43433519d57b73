package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/stageflow/stageflow-api/api/swagger"
	"github.com/stageflow/stageflow-api/internal/handler"
	"github.com/stageflow/stageflow-api/internal/middleware"
	"github.com/stageflow/stageflow-api/internal/models"
	"github.com/stageflow/stageflow-api/internal/repository"
	"github.com/stageflow/stageflow-api/internal/service"
	"github.com/stageflow/stageflow-api/pkg/cache"
	"github.com/stageflow/stageflow-api/pkg/config"
	"github.com/stageflow/stageflow-api/pkg/database"
	"github.com/stageflow/stageflow-api/pkg/jobs"
	"github.com/stageflow/stageflow-api/pkg/logger"
	corsmiddleware "github.com/stageflow/stageflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/stageflow/stageflow-api/pkg/middleware/requestid"
	"github.com/stageflow/stageflow-api/pkg/storage"
)

// @title StageFlow API
// @version 1.0.0
// @description Internship management API: demandes, approval workflow, evaluations and documents
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	localStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("document storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	stagiaireRepo := repository.NewStagiaireRepository(db)
	demandeRepo := repository.NewDemandeRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	// Services
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "stageflow-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	stagiaireSvc := service.NewStagiaireService(stagiaireRepo, userRepo, userRepo, notificationSvc, validate, logr)
	demandeSvc := service.NewDemandeService(demandeRepo, stagiaireRepo, userRepo, validate, logr)
	workflowSvc := service.NewWorkflowService(demandeRepo, userRepo, notificationSvc, logr)
	evaluationSvc := service.NewEvaluationService(evaluationRepo, stagiaireRepo, userRepo, validate, logr)
	documentSvc := service.NewDocumentService(documentRepo, localStorage, signer, userRepo, service.DocumentConfig{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
	}, logr)

	var dashboardSvc *service.DashboardService
	if cfg.Dashboard.Enabled {
		dashboardSvc = service.NewDashboardService(demandeRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	router := buildRouter(cfg, logr, routerDeps{
		auth:          handler.NewAuthHandler(authSvc),
		users:         handler.NewUserHandler(userSvc),
		stagiaires:    handler.NewStagiaireHandler(stagiaireSvc),
		demandes:      handler.NewDemandeHandler(demandeSvc, workflowSvc, dashboardSvc),
		evaluations:   handler.NewEvaluationHandler(evaluationSvc),
		documents:     handler.NewDocumentHandler(documentSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		dashboard:     handler.NewDashboardHandler(dashboardSvc),
		metrics:       handler.NewMetricsHandler(metricsSvc),
		authSvc:       authSvc,
		metricsSvc:    metricsSvc,
		auditRepo:     userRepo,
		dashboardOn:   cfg.Dashboard.Enabled,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type routerDeps struct {
	auth          *handler.AuthHandler
	users         *handler.UserHandler
	stagiaires    *handler.StagiaireHandler
	demandes      *handler.DemandeHandler
	evaluations   *handler.EvaluationHandler
	documents     *handler.DocumentHandler
	notifications *handler.NotificationHandler
	dashboard     *handler.DashboardHandler
	metrics       *handler.MetricsHandler
	authSvc       *service.AuthService
	metricsSvc    *service.MetricsService
	auditRepo     *repository.UserRepository
	dashboardOn   bool
}

func buildRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricsSvc))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Health)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.auth.Login)
		auth.POST("/refresh", deps.auth.Refresh)
		auth.POST("/logout", middleware.JWT(deps.authSvc), deps.auth.Logout)
		auth.POST("/change-password", middleware.JWT(deps.authSvc), deps.auth.ChangePassword)
		auth.GET("/me", middleware.JWT(deps.authSvc), deps.auth.Me)
	}

	// Signed download links are bearer credentials on their own.
	api.GET("/documents/download", deps.documents.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(deps.authSvc))

	users := protected.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleRH))
	{
		users.GET("", deps.users.List)
		users.GET("/:id", deps.users.Get)
		users.POST("", deps.users.Create)
		users.PUT("/:id", deps.users.Update)
		users.DELETE("/:id", deps.users.Delete)
	}

	stagiaires := protected.Group("/stagiaires")
	{
		stagiaires.GET("", deps.stagiaires.List)
		stagiaires.GET("/:id", deps.stagiaires.Get)
		stagiaires.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleRH), deps.stagiaires.Create)
		stagiaires.PUT("/:id", deps.stagiaires.Update)
		stagiaires.PUT("/:id/tuteur", middleware.RequireRoles(models.RoleAdmin, models.RoleRH), deps.stagiaires.AssignTuteur)
		stagiaires.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRH), deps.stagiaires.Delete)
	}

	demandes := protected.Group("/demandes")
	{
		demandes.GET("", deps.demandes.List)
		// Exports are not audited by the services, so the middleware
		// covers them here.
		demandes.GET("/export", middleware.Audit(deps.auditRepo, models.AuditActionExport, "demandes"), deps.demandes.ExportCSV)
		demandes.GET("/:id", deps.demandes.Get)
		demandes.POST("", deps.demandes.Create)
		demandes.PUT("/:id", deps.demandes.Update)
		demandes.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), deps.demandes.Purge)
		demandes.POST("/:id/approve", deps.demandes.Approve)
		demandes.POST("/:id/reject", deps.demandes.Reject)
		demandes.GET("/:id/workflow", deps.demandes.Workflow)
		demandes.GET("/:id/attestation", middleware.Audit(deps.auditRepo, models.AuditActionExport, "attestations"), deps.demandes.Attestation)
	}

	evaluations := protected.Group("/evaluations")
	{
		evaluations.GET("", deps.evaluations.List)
		evaluations.GET("/:id", deps.evaluations.Get)
		evaluations.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTuteur), deps.evaluations.Create)
		evaluations.PUT("/:id", deps.evaluations.Update)
		evaluations.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleRH), deps.evaluations.Delete)
	}

	documents := protected.Group("/documents")
	{
		documents.GET("", deps.documents.List)
		documents.GET("/:id", deps.documents.Get)
		documents.POST("", deps.documents.Upload)
		documents.DELETE("/:id", deps.documents.Delete)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", deps.notifications.List)
		notifications.POST("/:id/read", deps.notifications.MarkRead)
		notifications.POST("/read-all", deps.notifications.MarkAllRead)
	}

	if deps.dashboardOn {
		protected.GET("/dashboard", deps.dashboard.Summary)
	}

	protected.GET("/metrics/snapshot", middleware.RequireRoles(models.RoleAdmin), deps.metrics.Snapshot)

	return r
}
