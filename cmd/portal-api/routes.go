package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/project-submission-api/api/swagger"
	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/handler"
	"github.com/noah-isme/project-submission-api/internal/middleware"
	"github.com/noah-isme/project-submission-api/internal/service"
	"github.com/noah-isme/project-submission-api/pkg/config"
	"github.com/noah-isme/project-submission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/project-submission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/project-submission-api/pkg/middleware/requestid"
)

type routeDeps struct {
	db          *sqlx.DB
	metrics     *service.MetricsService
	auth        *service.AuthService
	users       *service.UserService
	assignments *service.AssignmentService
	lifecycle   *service.LifecycleService
	dashboard   *service.DashboardService
	export      *service.ExportService
	activity    *service.ActivityService
	userRepo    middleware.UserLoader
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.ClientInfo())

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	userHandler := handler.NewUserHandler(deps.users)
	reportHandler := handler.NewReportHandler(deps.lifecycle)
	assignmentHandler := handler.NewAssignmentHandler(deps.assignments)
	dashboardHandler := handler.NewDashboardHandler(deps.dashboard, deps.export)
	activityHandler := handler.NewActivityHandler(deps.activity)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/register", authHandler.Register)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth), middleware.LoadActor(deps.userRepo), middleware.WithResponseMeta())
	secured.POST("/auth/logout", authHandler.Logout)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.GET("/auth/me", authHandler.Me)

	users := secured.Group("/users", middleware.RequireOperation(access.OpManageUsers))
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Deactivate)

	reports := secured.Group("/reports")
	view := middleware.RequireOperation(access.OpViewReport)
	editFile := middleware.RequireOperation(access.OpEditFile)
	reports.GET("", view, reportHandler.List)
	reports.POST("", middleware.RequireOperation(access.OpSubmit), reportHandler.Submit)
	reports.GET("/:id", view, reportHandler.Get)
	reports.GET("/:id/file", view, reportHandler.File)
	reports.PUT("/:id/file", middleware.RequireOperation(access.OpReupload), reportHandler.Reupload)
	reports.POST("/:id/download-link", view, reportHandler.DownloadLink)
	reports.GET("/:id/download", view, reportHandler.Download)
	reports.GET("/:id/content", editFile, reportHandler.Content)
	reports.PUT("/:id/content", editFile, reportHandler.EditContent)
	reports.POST("/:id/feedback", middleware.RequireOperation(access.OpRecordFeedback), reportHandler.Feedback)
	reports.POST("/:id/advance", middleware.RequireOperation(access.OpAdvanceStage), reportHandler.Advance)
	reports.POST("/:id/hod-feedback", middleware.RequireOperation(access.OpHODFeedback), reportHandler.HODFeedback)

	assignments := secured.Group("/assignments")
	assignments.GET("", middleware.RequireOperation(access.OpViewAssignments), assignmentHandler.Overview)
	assignments.POST("", middleware.RequireOperation(access.OpAssign), assignmentHandler.Assign)
	assignments.DELETE("/:id", middleware.RequireOperation(access.OpUnassign), assignmentHandler.Unassign)
	assignments.GET("/me", middleware.RequireOperation(access.OpViewSupervisor), assignmentHandler.MySupervisor)
	assignments.GET("/students", middleware.RequireOperation(access.OpListSupervisees), assignmentHandler.MyStudents)

	secured.GET("/dashboard", dashboardHandler.Dashboard)
	progress := middleware.RequireOperation(access.OpExportProgress)
	secured.GET("/progress", progress, dashboardHandler.Progress)
	secured.GET("/progress/export", progress, dashboardHandler.ExportProgress)

	secured.GET("/activity", middleware.RequireOperation(access.OpViewActivity), activityHandler.List)
	secured.GET("/metrics/summary", middleware.RequireOperation(access.OpViewMetrics), metricsHandler.Snapshot)

	return r
}
