package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type dashboardReportSource interface {
	Stats(ctx context.Context, filter models.ReportFilter) (*models.ReportStats, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
}

type dashboardUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole, department, level string) (int, error)
}

type dashboardAssignmentSource interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Assignment, error)
	ListStudents(ctx context.Context, department, level string) ([]models.StudentAssignment, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]models.StudentAssignment, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	RecentLimit  int
	CachePrefix  string
	DisableCache bool
}

// DashboardService composes the role specific landing summary.
type DashboardService struct {
	reports     dashboardReportSource
	users       dashboardUserSource
	assignments dashboardAssignmentSource
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Reports     dashboardReportSource
	Users       dashboardUserSource
	Assignments dashboardAssignmentSource
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "dash"
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		reports:     params.Reports,
		users:       params.Users,
		assignments: params.Assignments,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// ForActor returns the dashboard for the caller's role and reports whether it came from cache.
func (s *DashboardService) ForActor(ctx context.Context, actor access.Actor) (*models.Dashboard, bool, error) {
	if actor.ID == "" || !actor.Role.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	if s.cache == nil || s.cfg.DisableCache {
		dash, err := s.build(ctx, actor)
		return dash, false, err
	}
	return Remember(ctx, s.cache, s.cacheKey(actor), s.cfg.CacheTTL, func(ctx context.Context) (*models.Dashboard, error) {
		return s.build(ctx, actor)
	})
}

func (s *DashboardService) build(ctx context.Context, actor access.Actor) (*models.Dashboard, error) {
	var (
		dash *models.Dashboard
		err  error
	)
	switch actor.Role {
	case models.RoleStudent:
		dash, err = s.student(ctx, actor)
	case models.RoleSupervisor:
		dash, err = s.supervisor(ctx, actor)
	case models.RoleLevelCoordinator:
		dash, err = s.coordinator(ctx, actor)
	case models.RoleHOD:
		dash, err = s.hod(ctx, actor)
	case models.RoleGeneralAdmin:
		dash, err = s.admin(ctx)
	}
	if err != nil {
		return nil, err
	}
	dash.Role = actor.Role
	dash.GeneratedAt = s.now().UTC()
	s.logger.Debug("dashboard built", zap.String("role", string(actor.Role)), zap.String("actor_id", actor.ID))
	return dash, nil
}

// Invalidate drops every cached dashboard.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil || s.cfg.DisableCache {
		return
	}
	_ = s.cache.Invalidate(ctx, s.cfg.CachePrefix+":*")
}

func (s *DashboardService) student(ctx context.Context, actor access.Actor) (*models.Dashboard, error) {
	filter := models.ReportFilter{StudentID: actor.ID}
	dash, err := s.withReports(ctx, filter)
	if err != nil {
		return nil, err
	}
	assignment, err := s.assignments.FindActiveByStudent(ctx, actor.ID)
	switch {
	case err == nil:
		supervisor, lookupErr := s.users.FindByID(ctx, assignment.SupervisorID)
		if lookupErr != nil && !errors.Is(lookupErr, sql.ErrNoRows) {
			return nil, appErrors.Wrap(lookupErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
		}
		dash.CurrentSupervisor = supervisor
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return dash, nil
}

func (s *DashboardService) supervisor(ctx context.Context, actor access.Actor) (*models.Dashboard, error) {
	dash, err := s.withReports(ctx, models.ReportFilter{SupervisorID: actor.ID})
	if err != nil {
		return nil, err
	}
	students, err := s.assignments.ListBySupervisor(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	dash.StudentCount = len(students)
	dash.PendingReview = countStatus(dash.Reports, models.StatusPending)
	return dash, nil
}

func (s *DashboardService) coordinator(ctx context.Context, actor access.Actor) (*models.Dashboard, error) {
	if actor.Level == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "coordinator has no level")
	}
	dash, err := s.withReports(ctx, models.ReportFilter{Level: actor.Level})
	if err != nil {
		return nil, err
	}
	dash.Scope = "level " + actor.Level
	students, err := s.assignments.ListStudents(ctx, "", actor.Level)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	dash.StudentCount = len(students)
	for _, st := range students {
		if st.SupervisorID == nil {
			dash.UnassignedCount++
		}
	}
	if dash.SupervisorCount, err = s.users.CountByRole(ctx, models.RoleSupervisor, "", ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count supervisors")
	}
	return dash, nil
}

func (s *DashboardService) hod(ctx context.Context, actor access.Actor) (*models.Dashboard, error) {
	if actor.Department == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "head of department has no department")
	}
	dash, err := s.withReports(ctx, models.ReportFilter{Department: actor.Department})
	if err != nil {
		return nil, err
	}
	dash.Scope = "department " + actor.Department
	if err := s.countUsers(ctx, dash, actor.Department); err != nil {
		return nil, err
	}
	return dash, nil
}

func (s *DashboardService) admin(ctx context.Context) (*models.Dashboard, error) {
	dash, err := s.withReports(ctx, models.ReportFilter{})
	if err != nil {
		return nil, err
	}
	if err := s.countUsers(ctx, dash, ""); err != nil {
		return nil, err
	}
	return dash, nil
}

func (s *DashboardService) withReports(ctx context.Context, filter models.ReportFilter) (*models.Dashboard, error) {
	stats, err := s.reports.Stats(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report statistics")
	}
	filter.Page = 1
	filter.PageSize = s.cfg.RecentLimit
	recent, _, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent reports")
	}
	if recent == nil {
		recent = []models.Report{}
	}
	return &models.Dashboard{Reports: *stats, RecentReports: recent}, nil
}

func (s *DashboardService) countUsers(ctx context.Context, dash *models.Dashboard, department string) error {
	var err error
	if dash.StudentCount, err = s.users.CountByRole(ctx, models.RoleStudent, department, ""); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if dash.SupervisorCount, err = s.users.CountByRole(ctx, models.RoleSupervisor, department, ""); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count supervisors")
	}
	return nil
}

func (s *DashboardService) cacheKey(actor access.Actor) string {
	switch actor.Role {
	case models.RoleLevelCoordinator:
		return fmt.Sprintf("%s:%s:%s", s.cfg.CachePrefix, actor.Role, actor.Level)
	case models.RoleHOD:
		return fmt.Sprintf("%s:%s:%s", s.cfg.CachePrefix, actor.Role, actor.Department)
	case models.RoleGeneralAdmin:
		return fmt.Sprintf("%s:%s", s.cfg.CachePrefix, actor.Role)
	default:
		return fmt.Sprintf("%s:%s:%s", s.cfg.CachePrefix, actor.Role, actor.ID)
	}
}

func countStatus(stats models.ReportStats, status models.ReportStatus) int {
	for _, c := range stats.ByStatus {
		if c.Status == status {
			return c.Count
		}
	}
	return 0
}

var dashboardAffecting = map[string]struct{}{
	models.ActivityReportSubmit:     {},
	models.ActivityReportReupload:   {},
	models.ActivityReportFeedback:   {},
	models.ActivityStageAdvance:     {},
	models.ActivityAssignmentCreate: {},
	models.ActivityAssignmentEnd:    {},
	models.ActivityRegister:         {},
	models.ActivityUserCreate:       {},
	models.ActivityUserUpdate:       {},
	models.ActivityUserDeactivate:   {},
}

// InvalidatingActivity drops cached dashboards when an entry changes the
// counts they summarise.
type InvalidatingActivity struct {
	next       activityRecorder
	dashboards *DashboardService
}

// NewInvalidatingActivity wraps an activity recorder with dashboard invalidation.
func NewInvalidatingActivity(next activityRecorder, dashboards *DashboardService) *InvalidatingActivity {
	return &InvalidatingActivity{next: next, dashboards: dashboards}
}

// Record implements the activity sink.
func (a *InvalidatingActivity) Record(ctx context.Context, entry ActivityEntry) {
	if a.next != nil {
		a.next.Record(ctx, entry)
	}
	if _, ok := dashboardAffecting[entry.Action]; ok && a.dashboards != nil {
		a.dashboards.Invalidate(ctx)
	}
}
