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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/handler"
	"github.com/noah-isme/portal-api/internal/repository"
	"github.com/noah-isme/portal-api/internal/service"
	"github.com/noah-isme/portal-api/pkg/cache"
	"github.com/noah-isme/portal-api/pkg/config"
	"github.com/noah-isme/portal-api/pkg/database"
	"github.com/noah-isme/portal-api/pkg/jobs"
	"github.com/noah-isme/portal-api/pkg/logger"
	"github.com/noah-isme/portal-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/portal-api/pkg/storage"
)

// @title Portal API
// @version 1.0.0
// @description Courses, schedules and assignments with statuses derived at request time.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Schedule.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, schedule cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	app, err := buildApp(ctx, cfg, logr, db, redisClient)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	if app.queue != nil {
		app.queue.Stop()
	}
	logr.Info("server stopped")
}

type application struct {
	router *gin.Engine
	queue  *jobs.Queue
}

// buildApp wires repositories, services and handlers. Background loops stop
// when ctx is cancelled.
func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Schedule.CacheTTL, logr, cfg.Schedule.CacheEnabled)
	}

	userRepo := repository.NewUserRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "portal-api",
	})
	if _, err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	semesterSvc := service.NewSemesterService(semesterRepo, validate, logr, cfg.Location)
	courseSvc := service.NewCourseService(courseRepo, enrollmentRepo, cacheSvc, metrics, validate, logr, cfg.Location)
	scheduleSvc := service.NewScheduleService(courseRepo, semesterSvc, cacheSvc, metrics, logr, service.ScheduleConfig{
		Location:     cfg.Location,
		MaxRangeDays: cfg.Schedule.MaxRangeDays,
		CacheTTL:     cfg.Schedule.CacheTTL,
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, submissionRepo, courseRepo, enrollmentRepo, metrics, validate, logr, cfg.Location)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(scheduleSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)
	worker := service.NewExportWorker(exportJobRepo, exporter, metrics, logr)
	queue := jobs.NewQueue("schedule-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		OnGiveUp:   worker.GiveUp,
		Logger:     logr,
	})
	exportJobs := service.NewExportJobService(exportJobRepo, scheduleSvc, queue, exporter, metrics, validate, logr, service.ExportJobConfig{
		Enabled:         cfg.Exports.Enabled,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})

	app := &application{}
	if cfg.Exports.Enabled {
		queue.Start(ctx)
		exportJobs.RecoverPendingJobs(ctx)
		exportJobs.StartCleanup(ctx)
		app.queue = queue
	}

	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Run(ctx)

	readiness := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		readiness["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	app.router = newRouter(cfg, logr, routeDeps{
		tokens:      authSvc,
		metrics:     metrics,
		limiter:     limiter,
		auth:        handler.NewAuthHandler(authSvc),
		semesters:   handler.NewSemesterHandler(semesterSvc),
		courses:     handler.NewCourseHandler(courseSvc),
		schedules:   handler.NewScheduleHandler(scheduleSvc),
		assignments: handler.NewAssignmentHandler(assignmentSvc),
		exports:     handler.NewExportHandler(exportJobs),
		system:      handler.NewMetricsHandler(metrics, readiness),
	})
	return app, nil
}
