// Package access decides whether an actor may perform an operation on a resource.
//
// The rule table in this package is the only place role permissions are
// defined. CanPerform is pure: it never touches storage, so callers load the
// resource's ownership attributes first and pass them in.
package access

import "github.com/noah-isme/project-submission-api/internal/models"

// Operation names a guarded action.
type Operation string

const (
	OpSubmit         Operation = "submit"
	OpReupload       Operation = "reupload"
	OpRecordFeedback Operation = "record_feedback"
	OpAdvanceStage   Operation = "advance_stage"
	OpViewReport     Operation = "view_report"
	OpAssign         Operation = "assign"
	OpUnassign       Operation = "unassign"
	OpHODFeedback    Operation = "hod_feedback"
	OpEditFile       Operation = "edit_file"
	OpManageUsers    Operation = "manage_users"
	OpViewActivity   Operation = "view_activity"
	OpExportProgress Operation = "export_progress"

	OpViewAssignments Operation = "view_assignments"
	OpViewSupervisor  Operation = "view_supervisor"
	OpListSupervisees Operation = "list_supervisees"
	OpViewMetrics     Operation = "view_metrics"
)

// Actor is the authenticated caller.
type Actor struct {
	ID         string
	Role       models.UserRole
	Department string
	Level      string
}

// Resource carries the ownership attributes of the target entity. Fields that
// do not apply to an operation are left empty.
type Resource struct {
	StudentID     string
	SupervisorID  string
	CoordinatorID string
	Department    string
	Level         string
}

// ReportResource describes a report for gate checks.
func ReportResource(r *models.Report) Resource {
	return Resource{
		StudentID:    r.StudentID,
		SupervisorID: r.SupervisorID,
		Department:   r.StudentDepartment,
		Level:        r.StudentLevel,
	}
}

// AssignmentResource describes an assignment for gate checks.
func AssignmentResource(a *models.Assignment) Resource {
	return Resource{
		StudentID:     a.StudentID,
		SupervisorID:  a.SupervisorID,
		CoordinatorID: a.CoordinatorID,
	}
}

type scope int

const (
	never scope = iota
	own
	supervised
	sameLevel
	sameDepartment
	created
	all
)

var rules = map[models.UserRole]map[Operation]scope{
	models.RoleStudent: {
		OpSubmit:         own,
		OpReupload:       own,
		OpViewReport:     own,
		OpViewSupervisor: own,
	},
	models.RoleSupervisor: {
		OpRecordFeedback:  supervised,
		OpAdvanceStage:    supervised,
		OpViewReport:      supervised,
		OpEditFile:        supervised,
		OpListSupervisees: supervised,
	},
	models.RoleLevelCoordinator: {
		OpViewReport:      sameLevel,
		OpAssign:          created,
		OpUnassign:        created,
		OpExportProgress:  sameLevel,
		OpViewAssignments: sameLevel,
	},
	models.RoleHOD: {
		OpViewReport:     sameDepartment,
		OpHODFeedback:    sameDepartment,
		OpExportProgress: sameDepartment,
	},
	models.RoleGeneralAdmin: {
		OpViewReport:      all,
		OpManageUsers:     all,
		OpViewActivity:    all,
		OpExportProgress:  all,
		OpViewAssignments: all,
		OpViewMetrics:     all,
	},
}

// CanPerform reports whether actor may perform op on res.
func CanPerform(actor Actor, op Operation, res Resource) bool {
	if actor.ID == "" || !actor.Role.Valid() {
		return false
	}
	switch rules[actor.Role][op] {
	case own:
		return res.StudentID != "" && res.StudentID == actor.ID
	case supervised:
		return res.SupervisorID != "" && res.SupervisorID == actor.ID
	case sameLevel:
		return actor.Level != "" && res.Level == actor.Level
	case sameDepartment:
		return actor.Department != "" && res.Department == actor.Department
	case created:
		return res.CoordinatorID != "" && res.CoordinatorID == actor.ID
	case all:
		return true
	default:
		return false
	}
}

// Allows reports whether role has any grant for op, ignoring ownership. Route
// middleware uses it to reject callers before the resource is loaded.
func Allows(role models.UserRole, op Operation) bool {
	return rules[role][op] != never
}
