package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-submission-api/internal/models"
)

func TestActivityCreateDefaultsDetails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec("INSERT INTO activity_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.ActivityLog{Action: models.ActivityReportSubmit, EntityType: models.EntityReport}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "{}", string(entry.Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	cols := []string{"id", "user_id", "user_name", "action", "entity_type", "entity_id", "details", "ip_address", "user_agent", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE l.action = $1 AND l.entity_type = $2 ORDER BY l.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(models.ActivityReportFeedback, models.EntityReport).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("l1", "sup-1", "Dr X", models.ActivityReportFeedback, models.EntityReport, "rep-1", []byte(`{"action":"approve"}`), "", "", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activity_logs l WHERE l.action = $1 AND l.entity_type = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.ActivityFilter{Action: "report_feedback", EntityType: models.EntityReport})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.JSONEq(t, `{"action":"approve"}`, string(entries[0].Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}
