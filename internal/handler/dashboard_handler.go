package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/middleware"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/service"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/response"
)

type dashboardService interface {
	ForActor(ctx context.Context, actor access.Actor) (*models.Dashboard, bool, error)
}

type progressService interface {
	Overview(ctx context.Context, actor access.Actor, req service.ProgressRequest) ([]models.ProgressRow, error)
	Export(ctx context.Context, actor access.Actor, req service.ProgressRequest, format string) (*service.ExportResult, error)
}

// DashboardHandler serves the landing summary and progress overviews.
type DashboardHandler struct {
	service  dashboardService
	progress progressService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, progress progressService) *DashboardHandler {
	return &DashboardHandler{service: service, progress: progress}
}

// Dashboard godoc
// @Summary Role specific dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.ForActor(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Progress godoc
// @Summary Progress overview
// @Description One row per student in scope with their latest report
// @Tags Dashboard
// @Produce json
// @Param department query string false "Department (admins only)"
// @Param level query string false "Level (admins only)"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /progress [get]
func (h *DashboardHandler) Progress(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.progress.Overview(c.Request.Context(), actor, progressRequest(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows)})
}

// ExportProgress godoc
// @Summary Export progress overview
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /progress/export [get]
func (h *DashboardHandler) ExportProgress(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.progress.Export(c.Request.Context(), actor, progressRequest(c), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Header("X-Export-Rows", strconv.Itoa(result.Rows))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func progressRequest(c *gin.Context) service.ProgressRequest {
	return service.ProgressRequest{
		Department: c.Query("department"),
		Level:      c.Query("level"),
		Status:     c.Query("status"),
	}
}
