package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/pkg/database"
)

const assignmentColumns = `id, student_id, supervisor_id, coordinator_id, active, created_at, deactivated_at`

const studentAssignmentSelect = `SELECT u.id AS student_id, u.full_name AS student_name, u.email AS student_email,
	u.registration_number, u.department, u.level,
	a.id AS assignment_id, a.supervisor_id, s.full_name AS supervisor_name, a.coordinator_id, a.created_at AS assigned_at
FROM users u
LEFT JOIN assignments a ON a.student_id = u.id AND a.active = TRUE
LEFT JOIN users s ON s.id = a.supervisor_id`

// AssignmentRepository persists student-supervisor assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Replace makes assignment the student's only active assignment. The student's
// user row is locked for the duration of the transaction so concurrent
// replacements for the same student run one after another. The previously
// active assignment, if any, is returned.
func (r *AssignmentRepository) Replace(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.Active = true
	assignment.DeactivatedAt = nil

	var previous *models.Assignment
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, assignment.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock student: %w", err)
		}

		var prior []models.Assignment
		const deactivate = `UPDATE assignments SET active = FALSE, deactivated_at = $2 WHERE student_id = $1 AND active = TRUE RETURNING ` + assignmentColumns
		if err := tx.SelectContext(ctx, &prior, deactivate, assignment.StudentID, now); err != nil {
			return fmt.Errorf("deactivate assignments: %w", err)
		}
		if len(prior) > 0 {
			previous = &prior[0]
		}

		const insert = `INSERT INTO assignments (id, student_id, supervisor_id, coordinator_id, active, created_at) VALUES ($1, $2, $3, $4, TRUE, $5)`
		if _, err := tx.ExecContext(ctx, insert, assignment.ID, assignment.StudentID, assignment.SupervisorID, assignment.CoordinatorID, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert assignment: %w", ErrDuplicate)
			}
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// FindByID returns an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	var a models.Assignment
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &a, nil
}

// FindActiveByStudent returns the student's active assignment or sql.ErrNoRows.
func (r *AssignmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE student_id = $1 AND active = TRUE LIMIT 1`
	var a models.Assignment
	if err := r.db.GetContext(ctx, &a, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active assignment: %w", err)
	}
	return &a, nil
}

// Deactivate ends an active assignment. It reports whether a row changed.
func (r *AssignmentRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE assignments SET active = FALSE, deactivated_at = $2 WHERE id = $1 AND active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate assignment rows: %w", err)
	}
	return affected > 0, nil
}

// ListStudents returns the active students in a level/department with their current supervisor.
func (r *AssignmentRepository) ListStudents(ctx context.Context, department, level string) ([]models.StudentAssignment, error) {
	query := studentAssignmentSelect + ` WHERE u.role = $1 AND u.active = TRUE`
	args := []interface{}{models.RoleStudent}
	if department != "" {
		args = append(args, department)
		query += fmt.Sprintf(" AND u.department = $%d", len(args))
	}
	if level != "" {
		args = append(args, level)
		query += fmt.Sprintf(" AND u.level = $%d", len(args))
	}
	query += ` ORDER BY u.full_name ASC`

	rows := make([]models.StudentAssignment, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return rows, nil
}

// ListBySupervisor returns the students currently assigned to a supervisor.
func (r *AssignmentRepository) ListBySupervisor(ctx context.Context, supervisorID string) ([]models.StudentAssignment, error) {
	query := studentAssignmentSelect + ` WHERE a.supervisor_id = $1 AND u.active = TRUE ORDER BY u.full_name ASC`
	rows := make([]models.StudentAssignment, 0)
	if err := r.db.SelectContext(ctx, &rows, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list supervisor students: %w", err)
	}
	return rows, nil
}
