package models

import "time"

// FeedbackAction is the supervisor's verdict attached to feedback.
type FeedbackAction string

const (
	ActionApprove         FeedbackAction = "approve"
	ActionReject          FeedbackAction = "reject"
	ActionRequestReupload FeedbackAction = "request_reupload"
	ActionComment         FeedbackAction = "comment"
)

// ResultingStatus maps a feedback action onto the report status it produces.
// Unrecognised actions count as plain feedback.
func (a FeedbackAction) ResultingStatus() ReportStatus {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionRequestReupload:
		return StatusReuploadRequested
	default:
		return StatusFeedbackGiven
	}
}

// Feedback is a supervisor comment on a report.
type Feedback struct {
	ID             string         `db:"id" json:"id"`
	ReportID       string         `db:"report_id" json:"report_id"`
	SupervisorID   string         `db:"supervisor_id" json:"supervisor_id"`
	SupervisorName string         `db:"supervisor_name" json:"supervisor_name,omitempty"`
	Comment        string         `db:"comment" json:"comment"`
	ActionTaken    FeedbackAction `db:"action_taken" json:"action_taken"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// HODFeedback is an advisory comment from a head of department.
type HODFeedback struct {
	ID        string    `db:"id" json:"id"`
	ReportID  string    `db:"report_id" json:"report_id"`
	HODID     string    `db:"hod_id" json:"hod_id"`
	HODName   string    `db:"hod_name" json:"hod_name,omitempty"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
