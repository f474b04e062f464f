package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/project-submission-api/internal/models"
)

func TestCanPerformTable(t *testing.T) {
	student := Actor{ID: "stu-1", Role: models.RoleStudent, Department: "CS", Level: "400"}
	supervisor := Actor{ID: "sup-1", Role: models.RoleSupervisor, Department: "CS"}
	coordinator := Actor{ID: "coord-1", Role: models.RoleLevelCoordinator, Department: "CS", Level: "400"}
	hod := Actor{ID: "hod-1", Role: models.RoleHOD, Department: "CS"}
	admin := Actor{ID: "admin-1", Role: models.RoleGeneralAdmin}

	report := Resource{StudentID: "stu-1", SupervisorID: "sup-1", Department: "CS", Level: "400"}
	otherReport := Resource{StudentID: "stu-2", SupervisorID: "sup-2", Department: "EE", Level: "300"}
	assignment := Resource{StudentID: "stu-1", SupervisorID: "sup-1", CoordinatorID: "coord-1"}
	foreignAssignment := Resource{StudentID: "stu-1", SupervisorID: "sup-1", CoordinatorID: "coord-2"}

	cases := []struct {
		name  string
		actor Actor
		op    Operation
		res   Resource
		want  bool
	}{
		{"student submits own", student, OpSubmit, report, true},
		{"student submits for other", student, OpSubmit, otherReport, false},
		{"student reuploads own", student, OpReupload, report, true},
		{"student reuploads other", student, OpReupload, otherReport, false},
		{"student views own", student, OpViewReport, report, true},
		{"student views other", student, OpViewReport, otherReport, false},
		{"student cannot give feedback", student, OpRecordFeedback, report, false},
		{"student cannot advance", student, OpAdvanceStage, report, false},
		{"student cannot assign", student, OpAssign, assignment, false},

		{"supervisor feedback own", supervisor, OpRecordFeedback, report, true},
		{"supervisor feedback other", supervisor, OpRecordFeedback, otherReport, false},
		{"supervisor advances own", supervisor, OpAdvanceStage, report, true},
		{"supervisor views own", supervisor, OpViewReport, report, true},
		{"supervisor views other", supervisor, OpViewReport, otherReport, false},
		{"supervisor edits supervised file", supervisor, OpEditFile, report, true},
		{"supervisor cannot submit", supervisor, OpSubmit, report, false},
		{"supervisor cannot reupload", supervisor, OpReupload, report, false},

		{"coordinator views level", coordinator, OpViewReport, report, true},
		{"coordinator views other level", coordinator, OpViewReport, otherReport, false},
		{"coordinator assigns as creator", coordinator, OpAssign, assignment, true},
		{"coordinator unassigns own", coordinator, OpUnassign, assignment, true},
		{"coordinator unassigns foreign", coordinator, OpUnassign, foreignAssignment, false},
		{"coordinator cannot give feedback", coordinator, OpRecordFeedback, report, false},

		{"hod views department", hod, OpViewReport, report, true},
		{"hod views other department", hod, OpViewReport, otherReport, false},
		{"hod comments in department", hod, OpHODFeedback, report, true},
		{"hod cannot record feedback", hod, OpRecordFeedback, report, false},
		{"hod cannot advance", hod, OpAdvanceStage, report, false},

		{"admin views all", admin, OpViewReport, otherReport, true},
		{"admin cannot submit", admin, OpSubmit, report, false},
		{"admin cannot give feedback", admin, OpRecordFeedback, report, false},
		{"admin cannot assign", admin, OpAssign, assignment, false},
		{"admin manages users", admin, OpManageUsers, Resource{}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanPerform(tc.actor, tc.op, tc.res))
		})
	}
}

func TestCanPerformRejectsUnknownActors(t *testing.T) {
	report := Resource{StudentID: "stu-1", SupervisorID: "sup-1", Department: "CS", Level: "400"}
	assert.False(t, CanPerform(Actor{ID: "x", Role: "janitor"}, OpViewReport, report))
	assert.False(t, CanPerform(Actor{Role: models.RoleGeneralAdmin}, OpViewReport, report))
}

func TestCanPerformEmptyScopeNeverMatches(t *testing.T) {
	hod := Actor{ID: "hod-1", Role: models.RoleHOD}
	assert.False(t, CanPerform(hod, OpViewReport, Resource{StudentID: "s"}))
	coordinator := Actor{ID: "c", Role: models.RoleLevelCoordinator}
	assert.False(t, CanPerform(coordinator, OpViewReport, Resource{StudentID: "s"}))
	supervisor := Actor{ID: "sup-1", Role: models.RoleSupervisor}
	assert.False(t, CanPerform(supervisor, OpRecordFeedback, Resource{}))
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(models.RoleStudent, OpSubmit))
	assert.False(t, Allows(models.RoleGeneralAdmin, OpSubmit))
	assert.True(t, Allows(models.RoleLevelCoordinator, OpAssign))
	assert.False(t, Allows("unknown", OpViewReport))
	assert.True(t, Allows(models.RoleGeneralAdmin, OpViewMetrics))
	assert.False(t, Allows(models.RoleHOD, OpViewMetrics))
}

func TestAssignmentViews(t *testing.T) {
	student := Actor{ID: "s1", Role: models.RoleStudent}
	supervisor := Actor{ID: "v1", Role: models.RoleSupervisor}
	coordinator := Actor{ID: "c1", Role: models.RoleLevelCoordinator, Level: "400"}
	admin := Actor{ID: "a1", Role: models.RoleGeneralAdmin}

	assert.True(t, CanPerform(student, OpViewSupervisor, Resource{StudentID: "s1"}))
	assert.False(t, CanPerform(supervisor, OpViewSupervisor, Resource{StudentID: "v1"}))
	assert.True(t, CanPerform(supervisor, OpListSupervisees, Resource{SupervisorID: "v1"}))
	assert.False(t, CanPerform(student, OpListSupervisees, Resource{SupervisorID: "s1"}))
	assert.True(t, CanPerform(coordinator, OpViewAssignments, Resource{Level: "400"}))
	assert.False(t, CanPerform(Actor{ID: "c2", Role: models.RoleLevelCoordinator}, OpViewAssignments, Resource{}))
	assert.True(t, CanPerform(admin, OpViewAssignments, Resource{}))
}

func TestReportResource(t *testing.T) {
	res := ReportResource(&models.Report{StudentID: "s", SupervisorID: "v", StudentDepartment: "CS", StudentLevel: "400"})
	assert.Equal(t, Resource{StudentID: "s", SupervisorID: "v", Department: "CS", Level: "400"}, res)
}
