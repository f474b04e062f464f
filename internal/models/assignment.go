package models

import "time"

// Assignment binds a student to a supervisor, created by a level coordinator.
type Assignment struct {
	ID            string     `db:"id" json:"id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	SupervisorID  string     `db:"supervisor_id" json:"supervisor_id"`
	CoordinatorID string     `db:"coordinator_id" json:"coordinator_id"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivated_at,omitempty"`
}

// StudentAssignment is a student row joined with the current supervisor, if any.
type StudentAssignment struct {
	StudentID          string     `db:"student_id" json:"student_id"`
	StudentName        string     `db:"student_name" json:"student_name"`
	StudentEmail       string     `db:"student_email" json:"student_email"`
	RegistrationNumber *string    `db:"registration_number" json:"registration_number,omitempty"`
	Department         string     `db:"department" json:"department"`
	Level              string     `db:"level" json:"level"`
	AssignmentID       *string    `db:"assignment_id" json:"assignment_id,omitempty"`
	SupervisorID       *string    `db:"supervisor_id" json:"supervisor_id,omitempty"`
	SupervisorName     *string    `db:"supervisor_name" json:"supervisor_name,omitempty"`
	CoordinatorID      *string    `db:"coordinator_id" json:"coordinator_id,omitempty"`
	AssignedAt         *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
}
