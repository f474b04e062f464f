package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/project-submission-api/internal/models"
)

// FeedbackRepository reads the supervisor feedback ledger and owns the HOD ledger.
// Supervisor feedback is written by ReportRepository.ApplyFeedback together
// with the status change.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// ListByReport returns supervisor feedback for a report, newest first.
func (r *FeedbackRepository) ListByReport(ctx context.Context, reportID string) ([]models.Feedback, error) {
	const query = `SELECT f.id, f.report_id, f.supervisor_id, u.full_name AS supervisor_name, f.comment, f.action_taken, f.created_at
FROM feedback f JOIN users u ON u.id = f.supervisor_id
WHERE f.report_id = $1 ORDER BY f.created_at DESC`
	items := make([]models.Feedback, 0)
	if err := r.db.SelectContext(ctx, &items, query, reportID); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return items, nil
}

// CreateHOD appends an advisory HOD comment.
func (r *FeedbackRepository) CreateHOD(ctx context.Context, fb *models.HODFeedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO hod_feedback (id, report_id, hod_id, comment, created_at) VALUES (:id, :report_id, :hod_id, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fb); err != nil {
		return fmt.Errorf("create hod feedback: %w", err)
	}
	return nil
}

// ListHODByReport returns HOD comments for a report, newest first.
func (r *FeedbackRepository) ListHODByReport(ctx context.Context, reportID string) ([]models.HODFeedback, error) {
	const query = `SELECT h.id, h.report_id, h.hod_id, u.full_name AS hod_name, h.comment, h.created_at
FROM hod_feedback h JOIN users u ON u.id = h.hod_id
WHERE h.report_id = $1 ORDER BY h.created_at DESC`
	items := make([]models.HODFeedback, 0)
	if err := r.db.SelectContext(ctx, &items, query, reportID); err != nil {
		return nil, fmt.Errorf("list hod feedback: %w", err)
	}
	return items, nil
}
