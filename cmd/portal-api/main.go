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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/repository"
	"github.com/noah-isme/project-submission-api/internal/service"
	"github.com/noah-isme/project-submission-api/pkg/cache"
	"github.com/noah-isme/project-submission-api/pkg/config"
	"github.com/noah-isme/project-submission-api/pkg/database"
	"github.com/noah-isme/project-submission-api/pkg/jobs"
	"github.com/noah-isme/project-submission-api/pkg/logger"
	"github.com/noah-isme/project-submission-api/pkg/mailer"
	"github.com/noah-isme/project-submission-api/pkg/storage"
)

// @title Project Submission Portal API
// @version 1.0.0
// @description Staged project report submission, supervision and review
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
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
		if version, err := database.MigrationVersion(db); err == nil {
			logr.Info("schema up to date", zap.Int64("version", version))
		}
	}

	var redisClient *redis.Client
	if cfg.Dashboard.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("report storage unavailable", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	outbound, err := mailer.New(cfg.Mail, cfg.AppName, logr)
	if err != nil {
		logr.Fatal("mailer configuration invalid", zap.Error(err))
	}
	worker := service.NewNotificationWorker(outbound, logr)
	queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Reports:     reportRepo,
		Users:       userRepo,
		Assignments: assignmentRepo,
		Cache:       cacheSvc,
		Logger:      logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:     cfg.Dashboard.CacheTTL,
			DisableCache: !cfg.Dashboard.CacheEnabled,
		},
	})

	activitySvc := service.NewActivityService(activityRepo, logr)
	activity := service.NewInvalidatingActivity(service.NewMeteredActivity(activitySvc, metrics), dashboardSvc)

	notifier := service.NewNotificationService(queue, logr, service.NotificationConfig{
		AppName: cfg.AppName,
		AppURL:  cfg.AppURL,
	})

	authSvc := service.NewAuthService(userRepo, activity, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.AppName,
	})
	userSvc := service.NewUserService(userRepo, activity, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userRepo, activity, validate, logr)
	lifecycleSvc := service.NewLifecycleService(reportRepo, feedbackRepo, assignmentRepo, files, signer, activity, notifier, validate, logr, service.LifecycleConfig{
		MaxFileSize:       cfg.Uploads.MaxFileSizeBytes,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
		APIPrefix:         cfg.APIPrefix,
	})
	exportSvc := service.NewExportService(reportRepo, activity, logr, nil, nil)

	router := newRouter(cfg, logr, routeDeps{
		db:          db,
		metrics:     metrics,
		auth:        authSvc,
		users:       userSvc,
		assignments: assignmentSvc,
		lifecycle:   lifecycleSvc,
		dashboard:   dashboardSvc,
		export:      exportSvc,
		activity:    activitySvc,
		userRepo:    userRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
