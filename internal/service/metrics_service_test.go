package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-submission-api/internal/models"
)

func TestMetricsServiceCountsActivity(t *testing.T) {
	metrics := NewMetricsService()
	next := &recordingActivity{}
	metered := NewMeteredActivity(next, metrics)

	metered.Record(context.Background(), ActivityEntry{Action: models.ActivityReportSubmit})
	metered.Record(context.Background(), ActivityEntry{
		Action:  models.ActivityReportFeedback,
		Details: map[string]interface{}{"action": models.ActionApprove},
	})
	metered.Record(context.Background(), ActivityEntry{Action: models.ActivityReportSubmit})

	assert.Equal(t, []string{models.ActivityReportSubmit, models.ActivityReportFeedback, models.ActivityReportSubmit}, next.actions())
	snap := metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.ActivityTotals[models.ActivityReportSubmit])
	assert.Equal(t, uint64(1), snap.ActivityTotals[models.ActivityReportFeedback])

	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/reports", http.StatusOK, 20*time.Millisecond)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `portal_activity_total{action="REPORT_SUBMIT"} 2`))
	assert.True(t, strings.Contains(body, `portal_feedback_total{decision="approve"} 1`))
	assert.True(t, strings.Contains(body, "http_requests_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveActivity(ActivityEntry{Action: "X"})
	metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	assert.Equal(t, models.SystemMetrics{}, metrics.Snapshot())

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
