package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/pkg/database"
)

const reportSelect = `SELECT r.id, r.student_id, r.supervisor_id, r.title, r.stage, r.file_key, r.file_name, r.file_size, r.mime_type,
	r.status, r.version, r.submitted_at, r.updated_at,
	st.full_name AS student_name, st.email AS student_email, st.department AS student_department, st.level AS student_level,
	sv.full_name AS supervisor_name, sv.email AS supervisor_email
FROM reports r
JOIN users st ON st.id = r.student_id
JOIN users sv ON sv.id = r.supervisor_id`

const reportVersionColumns = `id, report_id, version, file_key, file_name, file_size, mime_type, reason, archived_by, archived_at`

// FileReplacement describes swapping the file behind a report.
type FileReplacement struct {
	ReportID        string
	ExpectedVersion int
	File            models.ReportFile
	ActorID         string
	Reason          string
	// NewVersion bumps the version and resets status to pending (student re-upload).
	// Supervisor edits keep both unchanged.
	NewVersion bool
}

// ReportRepository persists reports, their archived file versions and review transitions.
type ReportRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new report at version 1 with status pending.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := r.now()
	report.Version = 1
	report.Status = models.StatusPending
	report.SubmittedAt = now
	report.UpdatedAt = now

	const query = `INSERT INTO reports (id, student_id, supervisor_id, title, stage, file_key, file_name, file_size, mime_type, status, version, submitted_at, updated_at)
VALUES (:id, :student_id, :supervisor_id, :title, :stage, :file_key, :file_name, :file_size, :mime_type, :status, :version, :submitted_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID returns a report with its student and supervisor attributes.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := r.db.GetContext(ctx, &report, reportSelect+` WHERE r.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &report, nil
}

// List returns reports matching filter, newest first, with total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	where, args := reportConditions(filter)
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY r.updated_at DESC LIMIT %d OFFSET %d", reportSelect, where, pageSize, offset)
	reports := make([]models.Report, 0)
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM reports r JOIN users st ON st.id = r.student_id` + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

// ReplaceFile points a report at a newly stored file and archives the previous one.
// Writers for the same report are serialised with a transaction scoped advisory
// lock; a concurrent writer gets ErrLockBusy instead of waiting. A version that
// moved since the caller read the report yields ErrVersionConflict.
func (r *ReportRepository) ReplaceFile(ctx context.Context, rep FileReplacement) (*models.Report, error) {
	now := r.now()
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var acquired bool
		if err := tx.GetContext(ctx, &acquired, `SELECT pg_try_advisory_xact_lock(hashtext('report:' || $1))`, rep.ReportID); err != nil {
			return fmt.Errorf("acquire report lock: %w", err)
		}
		if !acquired {
			return ErrLockBusy
		}

		var current models.Report
		const lock = `SELECT id, version, file_key, file_name, file_size, mime_type FROM reports WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lock, rep.ReportID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock report: %w", err)
		}
		if current.Version != rep.ExpectedVersion {
			return ErrVersionConflict
		}

		const archive = `INSERT INTO report_versions (` + reportVersionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.ExecContext(ctx, archive, uuid.NewString(), current.ID, current.Version, current.FileKey, current.FileName,
			current.FileSize, current.MimeType, rep.Reason, rep.ActorID, now); err != nil {
			return fmt.Errorf("archive report version: %w", err)
		}

		update := `UPDATE reports SET file_key = $2, file_name = $3, file_size = $4, mime_type = $5, updated_at = $6 WHERE id = $1`
		if rep.NewVersion {
			update = `UPDATE reports SET file_key = $2, file_name = $3, file_size = $4, mime_type = $5, updated_at = $6, version = version + 1, status = 'pending' WHERE id = $1`
		}
		if _, err := tx.ExecContext(ctx, update, rep.ReportID, rep.File.Key, rep.File.Name, rep.File.Size, rep.File.MimeType, now); err != nil {
			return fmt.Errorf("update report file: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, rep.ReportID)
}

// ApplyFeedback appends supervisor feedback and sets the resulting status in one
// transaction. The report row lock makes concurrent feedback calls commit one
// after the other, so the last commit's status wins and every comment is kept.
func (r *ReportRepository) ApplyFeedback(ctx context.Context, feedback *models.Feedback, expectedVersion int) (*models.Report, error) {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	feedback.CreatedAt = r.now()
	status := feedback.ActionTaken.ResultingStatus()

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var version int
		if err := tx.GetContext(ctx, &version, `SELECT version FROM reports WHERE id = $1 FOR UPDATE`, feedback.ReportID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock report: %w", err)
		}
		if version != expectedVersion {
			return ErrVersionConflict
		}

		const insert = `INSERT INTO feedback (id, report_id, supervisor_id, comment, action_taken, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, insert, feedback.ID, feedback.ReportID, feedback.SupervisorID, feedback.Comment, feedback.ActionTaken, feedback.CreatedAt); err != nil {
			return fmt.Errorf("insert feedback: %w", err)
		}

		const update = `UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, feedback.ReportID, status, feedback.CreatedAt); err != nil {
			return fmt.Errorf("update report status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, feedback.ReportID)
}

// AdvanceStage moves an approved report from one stage to the next when it is
// still at the expected stage and version. ErrVersionConflict means another
// writer got there first.
func (r *ReportRepository) AdvanceStage(ctx context.Context, id string, from, to models.ReportStage, expectedVersion int) (*models.Report, error) {
	const query = `UPDATE reports SET stage = $3, updated_at = $4 WHERE id = $1 AND stage = $2 AND version = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, from, to, r.now(), expectedVersion, models.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("advance report stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("advance report stage rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrVersionConflict
	}
	return r.FindByID(ctx, id)
}

// ListVersions returns archived files of a report, newest first.
func (r *ReportRepository) ListVersions(ctx context.Context, reportID string) ([]models.ReportVersion, error) {
	query := `SELECT ` + reportVersionColumns + ` FROM report_versions WHERE report_id = $1 ORDER BY archived_at DESC`
	versions := make([]models.ReportVersion, 0)
	if err := r.db.SelectContext(ctx, &versions, query, reportID); err != nil {
		return nil, fmt.Errorf("list report versions: %w", err)
	}
	return versions, nil
}

// Stats aggregates report counts by status and stage within the filter scope.
func (r *ReportRepository) Stats(ctx context.Context, filter models.ReportFilter) (*models.ReportStats, error) {
	where, args := reportConditions(filter)
	from := ` FROM reports r JOIN users st ON st.id = r.student_id` + where

	stats := &models.ReportStats{ByStatus: make([]models.StatusCount, 0), ByStage: make([]models.StageCount, 0)}
	if err := r.db.SelectContext(ctx, &stats.ByStatus, `SELECT r.status AS status, COUNT(*) AS count`+from+` GROUP BY r.status ORDER BY r.status`, args...); err != nil {
		return nil, fmt.Errorf("report stats by status: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.ByStage, `SELECT r.stage AS stage, COUNT(*) AS count`+from+` GROUP BY r.stage ORDER BY r.stage`, args...); err != nil {
		return nil, fmt.Errorf("report stats by stage: %w", err)
	}
	for _, c := range stats.ByStatus {
		stats.Total += c.Count
	}
	return stats, nil
}

// ProgressOverview lists students in scope with their most recently updated report.
func (r *ReportRepository) ProgressOverview(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressRow, error) {
	query := `SELECT u.id AS student_id, u.full_name AS student_name, u.registration_number, u.department, u.level,
	sv.full_name AS supervisor_name, lr.id AS report_id, lr.title AS report_title, lr.stage, lr.status, lr.version, lr.updated_at
FROM users u
LEFT JOIN assignments a ON a.student_id = u.id AND a.active = TRUE
LEFT JOIN users sv ON sv.id = a.supervisor_id
LEFT JOIN LATERAL (
	SELECT id, title, stage, status, version, updated_at FROM reports WHERE student_id = u.id ORDER BY updated_at DESC LIMIT 1
) lr ON TRUE
WHERE u.role = $1 AND u.active = TRUE`
	args := []interface{}{models.RoleStudent}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND u.department = $%d", len(args))
	}
	if filter.Level != "" {
		args = append(args, filter.Level)
		query += fmt.Sprintf(" AND u.level = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND lr.status = $%d", len(args))
	}
	query += ` ORDER BY u.level ASC, u.full_name ASC`

	rows := make([]models.ProgressRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("progress overview: %w", err)
	}
	return rows, nil
}

func reportConditions(filter models.ReportFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(expr string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if filter.StudentID != "" {
		add("r.student_id = $%d", filter.StudentID)
	}
	if filter.SupervisorID != "" {
		add("r.supervisor_id = $%d", filter.SupervisorID)
	}
	if filter.Department != "" {
		add("st.department = $%d", filter.Department)
	}
	if filter.Level != "" {
		add("st.level = $%d", filter.Level)
	}
	if filter.Status != nil {
		add("r.status = $%d", *filter.Status)
	}
	if filter.Stage != nil {
		add("r.stage = $%d", *filter.Stage)
	}
	if filter.Search != "" {
		add(`(LOWER(r.title) LIKE $%[1]d ESCAPE '\' OR LOWER(st.full_name) LIKE $%[1]d ESCAPE '\')`, containsPattern(filter.Search))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
