package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Activity actions recorded in the activity log.
const (
	ActivityLogin             = "LOGIN"
	ActivityLogout            = "LOGOUT"
	ActivityRegister          = "REGISTER"
	ActivityPasswordChange    = "PASSWORD_CHANGE"
	ActivityUserCreate        = "USER_CREATE"
	ActivityUserUpdate        = "USER_UPDATE"
	ActivityUserDeactivate    = "USER_DEACTIVATE"
	ActivityReportSubmit      = "REPORT_SUBMIT"
	ActivityReportReupload    = "REPORT_REUPLOAD"
	ActivityReportFeedback    = "REPORT_FEEDBACK"
	ActivityReportHODFeedback = "REPORT_HOD_FEEDBACK"
	ActivityStageAdvance      = "REPORT_STAGE_ADVANCE"
	ActivityFileDownload      = "FILE_DOWNLOAD"
	ActivityFileEdit          = "FILE_EDIT"
	ActivityAssignmentCreate  = "ASSIGNMENT_CREATE"
	ActivityAssignmentEnd     = "ASSIGNMENT_DEACTIVATE"
	ActivityProgressExport    = "PROGRESS_EXPORT"
)

// Entity types referenced by activity entries.
const (
	EntityUser       = "user"
	EntityReport     = "report"
	EntityAssignment = "assignment"
)

// ActivityLog is one append-only activity trail record.
type ActivityLog struct {
	ID         string         `db:"id" json:"id"`
	UserID     *string        `db:"user_id" json:"user_id,omitempty"`
	UserName   *string        `db:"user_name" json:"user_name,omitempty"`
	Action     string         `db:"action" json:"action"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   *string        `db:"entity_id" json:"entity_id,omitempty"`
	Details    types.JSONText `db:"details" json:"details,omitempty"`
	IPAddress  string         `db:"ip_address" json:"ip_address"`
	UserAgent  string         `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ActivityFilter narrows activity log listings.
type ActivityFilter struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Page       int
	PageSize   int
}
