package models

import "time"

// ReportStage is a milestone in the fixed submission sequence.
type ReportStage string

const (
	StageProgress1 ReportStage = "progress_1"
	StageProgress2 ReportStage = "progress_2"
	StageProgress3 ReportStage = "progress_3"
	StageFinal     ReportStage = "final"
)

// StageOrder lists every stage in the order reports move through them.
var StageOrder = []ReportStage{StageProgress1, StageProgress2, StageProgress3, StageFinal}

// Valid reports whether s is a known stage.
func (s ReportStage) Valid() bool {
	for _, stage := range StageOrder {
		if s == stage {
			return true
		}
	}
	return false
}

// Next returns the successor stage. Final has none.
func (s ReportStage) Next() (ReportStage, bool) {
	for i, stage := range StageOrder {
		if s == stage && i+1 < len(StageOrder) {
			return StageOrder[i+1], true
		}
	}
	return "", false
}

// ReportStatus is the review state of the current report version.
type ReportStatus string

const (
	StatusPending           ReportStatus = "pending"
	StatusFeedbackGiven     ReportStatus = "feedback_given"
	StatusApproved          ReportStatus = "approved"
	StatusRejected          ReportStatus = "rejected"
	StatusReuploadRequested ReportStatus = "reupload_requested"
)

// Valid reports whether s is a known status.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusFeedbackGiven, StatusApproved, StatusRejected, StatusReuploadRequested:
		return true
	}
	return false
}

// Report is a student's submission for one stage together with its current file.
type Report struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"student_id"`
	SupervisorID string       `db:"supervisor_id" json:"supervisor_id"`
	Title        string       `db:"title" json:"title"`
	Stage        ReportStage  `db:"stage" json:"stage"`
	FileKey      string       `db:"file_key" json:"-"`
	FileName     string       `db:"file_name" json:"file_name"`
	FileSize     int64        `db:"file_size" json:"file_size"`
	MimeType     string       `db:"mime_type" json:"mime_type"`
	Status       ReportStatus `db:"status" json:"status"`
	Version      int          `db:"version" json:"version"`
	SubmittedAt  time.Time    `db:"submitted_at" json:"submitted_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`

	StudentName       string `db:"student_name" json:"student_name,omitempty"`
	StudentEmail      string `db:"student_email" json:"-"`
	StudentDepartment string `db:"student_department" json:"student_department,omitempty"`
	StudentLevel      string `db:"student_level" json:"student_level,omitempty"`
	SupervisorName    string `db:"supervisor_name" json:"supervisor_name,omitempty"`
	SupervisorEmail   string `db:"supervisor_email" json:"-"`
}

// ReportFile references one stored object backing a report version.
type ReportFile struct {
	Key      string
	Name     string
	Size     int64
	MimeType string
}

// File returns the report's current file reference.
func (r *Report) File() ReportFile {
	return ReportFile{Key: r.FileKey, Name: r.FileName, Size: r.FileSize, MimeType: r.MimeType}
}

// ReportVersion archives a superseded file of a report.
type ReportVersion struct {
	ID         string    `db:"id" json:"id"`
	ReportID   string    `db:"report_id" json:"report_id"`
	Version    int       `db:"version" json:"version"`
	FileKey    string    `db:"file_key" json:"-"`
	FileName   string    `db:"file_name" json:"file_name"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	Reason     string    `db:"reason" json:"reason"`
	ArchivedBy string    `db:"archived_by" json:"archived_by"`
	ArchivedAt time.Time `db:"archived_at" json:"archived_at"`
}

// Reasons a file version was archived.
const (
	VersionReasonReupload = "reupload"
	VersionReasonEdit     = "supervisor_edit"
)

// ReportFilter narrows report listings. Scope fields are set by the service from the actor.
type ReportFilter struct {
	StudentID    string
	SupervisorID string
	Department   string
	Level        string
	Status       *ReportStatus
	Stage        *ReportStage
	Search       string
	Page         int
	PageSize     int
}

// ReportDetail bundles a report with its feedback trail and archived versions.
type ReportDetail struct {
	Report      *Report         `json:"report"`
	Feedback    []Feedback      `json:"feedback"`
	HODFeedback []HODFeedback   `json:"hod_feedback"`
	Versions    []ReportVersion `json:"versions"`
}
