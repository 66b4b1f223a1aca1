package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/hall-adp-api/api/swagger"
	"github.com/noah-isme/hall-adp-api/internal/handler"
	"github.com/noah-isme/hall-adp-api/internal/middleware"
	"github.com/noah-isme/hall-adp-api/internal/models"
	"github.com/noah-isme/hall-adp-api/internal/repository"
	"github.com/noah-isme/hall-adp-api/internal/service"
	"github.com/noah-isme/hall-adp-api/pkg/cache"
	"github.com/noah-isme/hall-adp-api/pkg/config"
	"github.com/noah-isme/hall-adp-api/pkg/database"
	"github.com/noah-isme/hall-adp-api/pkg/jobs"
	"github.com/noah-isme/hall-adp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hall-adp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hall-adp-api/pkg/middleware/requestid"
	"github.com/noah-isme/hall-adp-api/pkg/storage"
)

// @title Hall ADP API
// @version 0.1.0
// @description Dormitory admission and allocation pipeline
// @BasePath /api/v1
// @schemes http

// noopNotifier swallows events when delivery is disabled. The queue still
// drains so publishers never block.
type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, models.NotificationEvent) error { return nil }

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	interviewRepo := repository.NewInterviewRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	renewalRepo := repository.NewRenewalRepository(db)

	// Shared infrastructure.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.Enabled && redisClient != nil)

	var notifier service.Notifier = service.LogNotifier{Logger: logr}
	if !cfg.Notifications.Enabled {
		notifier = noopNotifier{}
	}
	notificationSvc := service.NewNotificationService(notifier, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	store, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "hall-adp-api",
		SingleSession:      true,
	})
	formSvc := service.NewFormService(formRepo, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, userRepo, logr)
	scoreSvc := service.NewScoreService(applicationRepo, formRepo, logr)
	rankingSvc := service.NewRankingService(applicationRepo, logr)
	interviewSvc := service.NewInterviewService(interviewRepo, applicationRepo, userRepo, notificationSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(roomRepo, waitlistRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	roomSvc := service.NewRoomService(roomRepo, dashboardSvc, validate, logr)
	allocationSvc := service.NewAllocationService(
		allocationRepo,
		applicationRepo,
		interviewRepo,
		userRepo,
		notificationSvc,
		metricsSvc,
		dashboardSvc,
		cfg.Allocation.DefaultValidityMonths,
		validate,
		logr,
	)
	waitlistSvc := service.NewWaitlistService(
		waitlistRepo,
		applicationRepo,
		applicationRepo,
		allocationSvc,
		userRepo,
		notificationSvc,
		metricsSvc,
		validate,
		logr,
	)
	renewalSvc := service.NewRenewalService(
		renewalRepo,
		allocationRepo,
		userRepo,
		notificationSvc,
		cfg.Renewals.WindowMonths,
		cfg.Renewals.MaxExtensionMonths,
		cfg.Allocation.DefaultValidityMonths,
		validate,
		logr,
	)
	attachmentSvc := service.NewAttachmentService(store, signer, cfg.Attachments.MaxFileSizeBytes, cfg.Attachments.AllowedMIMEs, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	formHandler := handler.NewFormHandler(formSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc, scoreSvc)
	interviewHandler := handler.NewInterviewHandler(interviewSvc)
	candidateHandler := handler.NewCandidateHandler(rankingSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	allocationHandler := handler.NewAllocationHandler(allocationSvc)
	waitlistHandler := handler.NewWaitlistHandler(waitlistSvc)
	renewalHandler := handler.NewRenewalHandler(renewalSvc, attachmentSvc)
	attachmentHandler := handler.NewAttachmentHandler(attachmentSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	authed := auth.Group("", middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)
	authed.GET("/me", authHandler.Me)

	// Download links carry their own signed token; claims are attached
	// when present so the access log can name the caller.
	api.GET("/files", middleware.OptionalJWT(authSvc), attachmentHandler.Download)

	protected := api.Group("", middleware.JWT(authSvc))

	staffRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleHallAdmin, models.RoleStaff)
	adminRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleHallAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	forms := protected.Group("/forms")
	forms.GET("", formHandler.List)
	forms.GET("/:id", formHandler.Get)

	applications := protected.Group("/applications")
	applications.GET("/mine", studentOnly, applicationHandler.Mine)
	applications.GET("", staffRoles, applicationHandler.List)
	applications.GET("/:id", staffRoles, applicationHandler.Get)
	applications.PATCH("/:id/status", adminRoles, applicationHandler.UpdateStatus)
	applications.POST("/:id/score", staffRoles, applicationHandler.RecomputeScore)

	interviews := protected.Group("/interviews")
	interviews.POST("/schedule", adminRoles, interviewHandler.Schedule)
	interviews.GET("", staffRoles, interviewHandler.List)
	interviews.POST("/:id/score", staffRoles, interviewHandler.ConfirmScore)
	interviews.POST("/applications/:applicationId/reject", adminRoles, interviewHandler.Reject)

	protected.GET("/candidates", staffRoles, candidateHandler.List)

	rooms := protected.Group("/rooms")
	rooms.GET("", staffRoles, roomHandler.List)
	rooms.GET("/assignable", staffRoles, roomHandler.Assignable)
	rooms.GET("/summary", staffRoles, roomHandler.Summary)
	rooms.GET("/:id", staffRoles, roomHandler.Get)
	rooms.POST("", adminRoles, middleware.Audit(userRepo, "ROOM_CREATE", "room"), roomHandler.Create)
	rooms.PUT("/:id", adminRoles, middleware.Audit(userRepo, "ROOM_UPDATE", "room"), roomHandler.Update)
	rooms.DELETE("/:id", adminRoles, middleware.Audit(userRepo, "ROOM_DELETE", "room"), roomHandler.Delete)

	allocations := protected.Group("/allocations")
	allocations.GET("", staffRoles, allocationHandler.List)
	allocations.GET("/:id", staffRoles, allocationHandler.Get)
	allocations.POST("/assign", adminRoles, allocationHandler.Assign)
	allocations.POST("/manual", adminRoles, allocationHandler.ManualAssign)
	allocations.POST("/manual-search", adminRoles, allocationHandler.ManualSearch)
	allocations.POST("/:id/transfer", adminRoles, allocationHandler.Transfer)
	allocations.POST("/:id/cancel", adminRoles, allocationHandler.Cancel)
	allocations.POST("/bulk-cancel", adminRoles, allocationHandler.BulkCancel)

	waitlist := protected.Group("/waitlist")
	waitlist.GET("", staffRoles, waitlistHandler.List)
	waitlist.POST("", adminRoles, waitlistHandler.Add)
	waitlist.POST("/:id/promote", adminRoles, waitlistHandler.Promote)
	waitlist.POST("/bulk-remove", adminRoles, waitlistHandler.BulkRemove)

	renewals := protected.Group("/renewals")
	renewals.GET("/eligibility", studentOnly, renewalHandler.Eligibility)
	renewals.POST("/proof", studentOnly, renewalHandler.UploadProof)
	renewals.POST("", studentOnly, renewalHandler.Submit)
	renewals.GET("", renewalHandler.List)
	renewals.GET("/:id/proof-url", renewalHandler.ProofURL)
	renewals.PATCH("/:id/decision", adminRoles, renewalHandler.Decide)

	protected.GET("/dashboard", staffRoles, dashboardHandler.Snapshot)
	protected.GET("/metrics/summary", staffRoles, metricsHandler.Snapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
