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

func TestFeedbackListByReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM feedback f JOIN users u ON u.id = f.supervisor_id")).
		WithArgs("rep-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "supervisor_id", "supervisor_name", "comment", "action_taken", "created_at"}).
			AddRow("f2", "rep-1", "sup-1", "Dr X", "Approved", "approve", now).
			AddRow("f1", "rep-1", "sup-1", "Dr X", "Fix chapter 2", "request_reupload", now.Add(-time.Hour)))

	items, err := repo.ListByReport(context.Background(), "rep-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.ActionApprove, items[0].ActionTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackCreateHOD(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFeedbackRepository(db)

	mock.ExpectExec("INSERT INTO hod_feedback").WillReturnResult(sqlmock.NewResult(1, 1))

	fb := &models.HODFeedback{ReportID: "rep-1", HODID: "hod-1", Comment: "Keep going"}
	require.NoError(t, repo.CreateHOD(context.Background(), fb))
	assert.NotEmpty(t, fb.ID)
	assert.False(t, fb.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
