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

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	"github.com/noah-isme/sma-timetable-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Preference-driven weekly timetable generation, editing and approval workflow
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	lockRepo := repository.NewGenerationLockRepository(redisClient)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.CacheTTL, logr, redisClient != nil)

	notificationWorker := service.NewNotificationWorker(notificationRepo, userRepo, mailer.New(cfg.Mail, logr), metricsSvc, logr.Named("notifications"))
	notificationQueue := jobs.NewQueue("notifications", notificationWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		RetryDelay: 2 * time.Second,
		OnFailure:  notificationWorker.Failed,
		Logger:     logr,
	})
	notificationQueue.Start(ctx)
	defer notificationQueue.Stop()
	notificationSvc := service.NewNotificationService(notificationRepo, notificationQueue, logr)

	grid := service.Grid{Days: cfg.Timetable.Days, Slots: cfg.Timetable.TimeSlots}
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	preferenceSvc := service.NewPreferenceService(preferenceRepo, notificationSvc, grid, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, preferenceSvc, lockRepo, cacheSvc, notificationSvc, metricsSvc, validate, logr, service.TimetableConfig{
		Grid:    grid,
		LockTTL: cfg.Timetable.GenerationLockTTL,
	})
	exportSvc := service.NewExportService(timetableSvc, logr, nil, nil)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, notificationSvc, cfg.Notifications.AdminRecipientID, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	preferenceHandler := handler.NewPreferenceHandler(preferenceSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	anyone := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleFaculty, models.RoleStudent)

	secured.GET("/auth/me", anyone, authHandler.Me)

	secured.POST("/preferences/faculty", internalmiddleware.RequireRoles(models.RoleFaculty), preferenceHandler.SubmitFaculty)
	secured.POST("/preferences/student", internalmiddleware.RequireRoles(models.RoleStudent), preferenceHandler.SubmitStudent)
	secured.GET("/preferences", admin, preferenceHandler.List)
	secured.DELETE("/preferences", admin, preferenceHandler.Clear)

	timetable := secured.Group("/timetable")
	timetable.GET("", anyone, timetableHandler.Get)
	timetable.GET("/grid", anyone, timetableHandler.Grid)
	timetable.GET("/conflicts", anyone, timetableHandler.Conflicts)
	timetable.GET("/export", anyone, timetableHandler.Export)
	timetable.POST("/generate", admin, timetableHandler.Generate)
	timetable.POST("/import", admin, timetableHandler.Import)
	timetable.POST("/entries", admin, timetableHandler.AddEntry)
	timetable.PUT("/entries/:id", admin, timetableHandler.UpdateEntry)
	timetable.DELETE("/entries/:id", admin, timetableHandler.DeleteEntry)
	timetable.POST("/finalize", admin, timetableHandler.Finalize)
	timetable.POST("/unfinalize", admin, timetableHandler.Unfinalize)
	timetable.POST("/approve", admin, timetableHandler.Approve)
	timetable.POST("/unapprove", admin, timetableHandler.Unapprove)

	secured.GET("/notifications", anyone, notificationHandler.List)
	secured.DELETE("/notifications/:id", anyone, notificationHandler.Dismiss)

	secured.POST("/feedback", anyone, feedbackHandler.Submit)
	secured.GET("/feedback", admin, feedbackHandler.List)
	secured.DELETE("/feedback", admin, feedbackHandler.Clear)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "prefix", cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
