package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/service"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type fakeDashboardSrv struct {
	dash  *models.Dashboard
	hit   bool
	err   error
	actor access.Actor
}

func (f *fakeDashboardSrv) ForActor(_ context.Context, actor access.Actor) (*models.Dashboard, bool, error) {
	f.actor = actor
	return f.dash, f.hit, f.err
}

type fakeProgressSrv struct {
	rows   []models.ProgressRow
	result *service.ExportResult
	err    error
	req    service.ProgressRequest
	format string
}

func (f *fakeProgressSrv) Overview(_ context.Context, _ access.Actor, req service.ProgressRequest) ([]models.ProgressRow, error) {
	f.req = req
	return f.rows, f.err
}

func (f *fakeProgressSrv) Export(_ context.Context, _ access.Actor, req service.ProgressRequest, format string) (*service.ExportResult, error) {
	f.req = req
	f.format = format
	return f.result, f.err
}

func TestDashboardHandlerReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeDashboardSrv{dash: &models.Dashboard{Role: models.RoleSupervisor, PendingReview: 2}, hit: true}
	handler := NewDashboardHandler(svc, &fakeProgressSrv{})

	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	withClaims(c, "sup-1", models.RoleSupervisor)
	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, float64(2), envelope.Data["pending_review"])
	assert.Equal(t, "sup-1", svc.actor.ID)
}

func TestDashboardHandlerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: appErrors.Clone(appErrors.ErrForbidden, "coordinator has no level")}, nil)

	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	handler.Dashboard(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/dashboard", nil)
	withClaims(c, "coord-1", models.RoleLevelCoordinator)
	handler.Dashboard(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDashboardHandlerProgressPassesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	progress := &fakeProgressSrv{rows: []models.ProgressRow{{StudentID: "s1", StudentName: "Ada"}}}
	handler := NewDashboardHandler(&fakeDashboardSrv{}, progress)

	c, w := newGinContext(http.MethodGet, "/progress?department=CS&level=400&status=pending", nil)
	withClaims(c, "admin-1", models.RoleGeneralAdmin)
	handler.Progress(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ProgressRequest{Department: "CS", Level: "400", Status: "pending"}, progress.req)
	var envelope struct {
		Data []models.ProgressRow   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)
	assert.Equal(t, float64(1), envelope.Meta["count"])
}

func TestDashboardHandlerExportSetsHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	progress := &fakeProgressSrv{result: &service.ExportResult{
		Filename:    "progress-20260101-120000.csv",
		ContentType: "text/csv",
		Payload:     []byte("Student\nAda\n"),
		Rows:        1,
	}}
	handler := NewDashboardHandler(&fakeDashboardSrv{}, progress)

	c, w := newGinContext(http.MethodGet, "/progress/export", nil)
	withClaims(c, "hod-1", models.RoleHOD)
	handler.ExportProgress(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", progress.format)
	assert.Equal(t, `attachment; filename="progress-20260101-120000.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", w.Header().Get("X-Export-Rows"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "Student\nAda\n", w.Body.String())
}

func TestDashboardHandlerExportRejectsFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	progress := &fakeProgressSrv{err: appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")}
	handler := NewDashboardHandler(&fakeDashboardSrv{}, progress)

	c, w := newGinContext(http.MethodGet, "/progress/export?format=xlsx", nil)
	withClaims(c, "hod-1", models.RoleHOD)
	handler.ExportProgress(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "xlsx", progress.format)
}
