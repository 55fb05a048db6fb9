package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/portal-api/api/swagger"
	"github.com/noah-isme/portal-api/internal/handler"
	"github.com/noah-isme/portal-api/internal/middleware"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/service"
	"github.com/noah-isme/portal-api/pkg/config"
	"github.com/noah-isme/portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/portal-api/pkg/middleware/cors"
	"github.com/noah-isme/portal-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/portal-api/pkg/middleware/requestid"
)

type routeDeps struct {
	tokens      middleware.TokenValidator
	metrics     *service.MetricsService
	limiter     *ratelimit.Limiter
	auth        *handler.AuthHandler
	semesters   *handler.SemesterHandler
	courses     *handler.CourseHandler
	schedules   *handler.ScheduleHandler
	assignments *handler.AssignmentHandler
	exports     *handler.ExportHandler
	system      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.system.Health)
	r.GET("/ready", deps.system.Ready)
	r.GET("/metrics", deps.system.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(deps.limiter.Middleware(), middleware.WithResponseMeta())

	api.POST("/auth/login", deps.auth.Login)
	// Download links are authorised by their signed token.
	api.GET("/exports/download", deps.exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	studentOnly := middleware.RequireRoles(models.RoleStudent)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(logr, action, resource)
	}

	secured.GET("/auth/me", deps.auth.Me)
	secured.GET("/system/metrics", adminOnly, deps.system.System)

	semesters := secured.Group("/semesters")
	semesters.GET("", deps.semesters.List)
	semesters.GET("/active", deps.semesters.Active)
	semesters.GET("/:id", deps.semesters.Get)
	semesters.POST("", adminOnly, audit("create", "semester"), deps.semesters.Create)

	courses := secured.Group("/courses")
	courses.GET("", deps.courses.List)
	courses.GET("/:id", deps.courses.Get)
	courses.POST("", staff, audit("create", "course"), deps.courses.Create)
	courses.PUT("/:id", staff, audit("update", "course"), deps.courses.Update)
	courses.DELETE("/:id", staff, audit("delete", "course"), deps.courses.Delete)
	courses.PUT("/:id/meetings", staff, audit("replace_meetings", "course"), deps.courses.ReplaceMeetings)
	courses.PUT("/:id/status", staff, audit("set_status", "course"), deps.courses.SetStatus)
	courses.DELETE("/:id/status", staff, audit("clear_status", "course"), deps.courses.ClearStatus)
	courses.GET("/:id/enrollments", staff, deps.courses.Roster)
	courses.POST("/:id/enrollments", adminOnly, audit("enroll", "course"), deps.courses.Enroll)

	schedules := secured.Group("/schedules")
	schedules.GET("", deps.schedules.Query)
	schedules.GET("/daily", deps.schedules.Daily)
	schedules.GET("/monthly", deps.schedules.Monthly)

	assignments := secured.Group("/assignments")
	assignments.GET("", deps.assignments.List)
	assignments.GET("/:id", deps.assignments.Get)
	assignments.POST("", staff, audit("create", "assignment"), deps.assignments.Create)
	assignments.PUT("/:id", staff, audit("update", "assignment"), deps.assignments.Update)
	assignments.GET("/:id/summary", staff, deps.assignments.Summary)
	assignments.POST("/:id/submissions", studentOnly, audit("submit", "assignment"), deps.assignments.Submit)
	assignments.PUT("/:id/submissions/:studentId/grade", staff, audit("grade", "submission"), deps.assignments.Grade)

	exports := secured.Group("/exports")
	exports.POST("/schedules", staff, audit("create", "export"), deps.exports.Create)
	exports.GET("/:id", deps.exports.Status)

	return r
}
