package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/repository"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type assignmentStore interface {
	Replace(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	ListStudents(ctx context.Context, department, level string) ([]models.StudentAssignment, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]models.StudentAssignment, error)
}

type assignmentUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByRoleAndScope(ctx context.Context, role models.UserRole, department, level string) ([]models.User, error)
}

// AssignRequest binds a student to a supervisor.
type AssignRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	SupervisorID string `json:"supervisor_id" validate:"required"`
}

// CoordinatorOverview is what a level coordinator needs to manage assignments.
type CoordinatorOverview struct {
	Students    []models.StudentAssignment `json:"students"`
	Supervisors []models.User              `json:"supervisors"`
}

// AssignmentService manages student-supervisor assignments.
type AssignmentService struct {
	repo      assignmentStore
	users     assignmentUserLookup
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentStore, users assignmentUserLookup, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, users: users, activity: activity, validator: validate, logger: logger}
}

// Assign makes supervisor the student's only active supervisor. Any previous
// assignment is deactivated in the same transaction.
func (s *AssignmentService) Assign(ctx context.Context, actor access.Actor, req AssignRequest) (*models.Assignment, error) {
	if !access.CanPerform(actor, access.OpAssign, access.Resource{CoordinatorID: actor.ID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only level coordinators can assign supervisors")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id and supervisor_id are required")
	}
	if _, err := s.userWithRole(ctx, req.StudentID, models.RoleStudent, "student not found"); err != nil {
		return nil, err
	}
	if _, err := s.userWithRole(ctx, req.SupervisorID, models.RoleSupervisor, "supervisor not found"); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		StudentID:     req.StudentID,
		SupervisorID:  req.SupervisorID,
		CoordinatorID: actor.ID,
	}
	previous, err := s.repo.Replace(ctx, assignment)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student was reassigned concurrently; retry")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign supervisor")
		}
	}

	details := map[string]interface{}{
		"student_id":    assignment.StudentID,
		"supervisor_id": assignment.SupervisorID,
	}
	if previous != nil {
		details["previous_assignment_id"] = previous.ID
		details["previous_supervisor_id"] = previous.SupervisorID
	}
	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityAssignmentCreate,
		EntityType: models.EntityAssignment,
		EntityID:   assignment.ID,
		Details:    details,
	})
	return assignment, nil
}

// Unassign deactivates an assignment created by the calling coordinator.
// Deactivating an inactive assignment is a no-op.
func (s *AssignmentService) Unassign(ctx context.Context, actor access.Actor, assignmentID string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if !access.CanPerform(actor, access.OpUnassign, access.AssignmentResource(assignment)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the coordinator who created this assignment can remove it")
	}
	if !assignment.Active {
		return assignment, nil
	}

	changed, err := s.repo.Deactivate(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate assignment")
	}
	assignment.Active = false
	if changed {
		s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			Action:     models.ActivityAssignmentEnd,
			EntityType: models.EntityAssignment,
			EntityID:   assignment.ID,
			Details: map[string]interface{}{
				"student_id":    assignment.StudentID,
				"supervisor_id": assignment.SupervisorID,
			},
		})
	}
	return assignment, nil
}

// CurrentSupervisorOf returns the student's active assignment, or nil when there is none.
func (s *AssignmentService) CurrentSupervisorOf(ctx context.Context, studentID string) (*models.Assignment, error) {
	assignment, err := s.repo.FindActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// ListForCoordinator returns the coordinator's students with their current
// supervisor together with every active supervisor. Administrators see all levels.
func (s *AssignmentService) ListForCoordinator(ctx context.Context, actor access.Actor) (*CoordinatorOverview, error) {
	if !access.CanPerform(actor, access.OpViewAssignments, access.Resource{Level: actor.Level}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only level coordinators can view assignments")
	}
	level := actor.Level
	if actor.Role == models.RoleGeneralAdmin {
		level = ""
	}

	students, err := s.repo.ListStudents(ctx, "", level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	supervisors, err := s.users.FindByRoleAndScope(ctx, models.RoleSupervisor, "", "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list supervisors")
	}
	return &CoordinatorOverview{Students: students, Supervisors: supervisors}, nil
}

// ListSupervisorStudents returns the supervisor's currently assigned students.
func (s *AssignmentService) ListSupervisorStudents(ctx context.Context, actor access.Actor) ([]models.StudentAssignment, error) {
	if !access.CanPerform(actor, access.OpListSupervisees, access.Resource{SupervisorID: actor.ID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only supervisors have assigned students")
	}
	students, err := s.repo.ListBySupervisor(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

func (s *AssignmentService) userWithRole(ctx context.Context, id string, role models.UserRole, notFound string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role || !user.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return user, nil
}
