package models

import "time"

// StatusCount is the number of reports in one status.
type StatusCount struct {
	Status ReportStatus `db:"status" json:"status"`
	Count  int          `db:"count" json:"count"`
}

// StageCount is the number of reports at one stage.
type StageCount struct {
	Stage ReportStage `db:"stage" json:"stage"`
	Count int         `db:"count" json:"count"`
}

// ReportStats aggregates report counts within a scope.
type ReportStats struct {
	Total    int           `json:"total"`
	ByStatus []StatusCount `json:"by_status"`
	ByStage  []StageCount  `json:"by_stage"`
}

// Dashboard is the role specific landing summary.
type Dashboard struct {
	Role              UserRole    `json:"role"`
	Scope             string      `json:"scope,omitempty"`
	Reports           ReportStats `json:"reports"`
	StudentCount      int         `json:"student_count,omitempty"`
	SupervisorCount   int         `json:"supervisor_count,omitempty"`
	UnassignedCount   int         `json:"unassigned_count,omitempty"`
	PendingReview     int         `json:"pending_review,omitempty"`
	RecentReports     []Report    `json:"recent_reports"`
	CurrentSupervisor *User       `json:"current_supervisor,omitempty"`
	GeneratedAt       time.Time   `json:"generated_at"`
}

// ProgressRow is one student's latest report in a progress overview.
type ProgressRow struct {
	StudentID          string        `db:"student_id" json:"student_id"`
	StudentName        string        `db:"student_name" json:"student_name"`
	RegistrationNumber *string       `db:"registration_number" json:"registration_number,omitempty"`
	Department         string        `db:"department" json:"department"`
	Level              string        `db:"level" json:"level"`
	SupervisorName     *string       `db:"supervisor_name" json:"supervisor_name,omitempty"`
	ReportID           *string       `db:"report_id" json:"report_id,omitempty"`
	ReportTitle        *string       `db:"report_title" json:"report_title,omitempty"`
	Stage              *ReportStage  `db:"stage" json:"stage,omitempty"`
	Status             *ReportStatus `db:"status" json:"status,omitempty"`
	Version            *int          `db:"version" json:"version,omitempty"`
	UpdatedAt          *time.Time    `db:"updated_at" json:"updated_at,omitempty"`
}

// ProgressFilter scopes a progress overview.
type ProgressFilter struct {
	Department string
	Level      string
	Status     *ReportStatus
}

// SystemMetrics is a point in time view of runtime counters.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	ActivityTotals           map[string]uint64 `json:"activity_totals"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
