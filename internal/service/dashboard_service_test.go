package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type fakeDashboardReports struct {
	stats      models.ReportStats
	statsCalls int
	filters    []models.ReportFilter
}

func (f *fakeDashboardReports) Stats(_ context.Context, filter models.ReportFilter) (*models.ReportStats, error) {
	f.statsCalls++
	f.filters = append(f.filters, filter)
	stats := f.stats
	return &stats, nil
}

func (f *fakeDashboardReports) List(_ context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	return []models.Report{{ID: "r1", Title: "Proposal"}}, 1, nil
}

type fakeDashboardUsers struct {
	users  map[string]models.User
	counts map[models.UserRole]int
}

func (f *fakeDashboardUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (f *fakeDashboardUsers) CountByRole(_ context.Context, role models.UserRole, _, _ string) (int, error) {
	return f.counts[role], nil
}

type fakeDashboardAssignments struct {
	active   map[string]models.Assignment
	students []models.StudentAssignment
}

func (f *fakeDashboardAssignments) FindActiveByStudent(_ context.Context, studentID string) (*models.Assignment, error) {
	a, ok := f.active[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (f *fakeDashboardAssignments) ListStudents(context.Context, string, string) ([]models.StudentAssignment, error) {
	return f.students, nil
}

func (f *fakeDashboardAssignments) ListBySupervisor(context.Context, string) ([]models.StudentAssignment, error) {
	return f.students[:1], nil
}

func newDashboardFixture(cache *CacheService) (*DashboardService, *fakeDashboardReports) {
	sup := supervisorV1
	reports := &fakeDashboardReports{stats: models.ReportStats{
		Total: 3,
		ByStatus: []models.StatusCount{
			{Status: models.StatusPending, Count: 2},
			{Status: models.StatusApproved, Count: 1},
		},
	}}
	svc := NewDashboardService(DashboardServiceParams{
		Reports: reports,
		Users: &fakeDashboardUsers{
			users:  map[string]models.User{supervisorV1: {ID: supervisorV1, FullName: "Dr. V", Role: models.RoleSupervisor}},
			counts: map[models.UserRole]int{models.RoleStudent: 40, models.RoleSupervisor: 6},
		},
		Assignments: &fakeDashboardAssignments{
			active: map[string]models.Assignment{studentS1: {StudentID: studentS1, SupervisorID: supervisorV1, Active: true}},
			students: []models.StudentAssignment{
				{StudentID: studentS1, SupervisorID: &sup},
				{StudentID: studentS2},
			},
		},
		Cache:  cache,
		Logger: zap.NewNop(),
	})
	return svc, reports
}

func TestDashboardStudentShowsCurrentSupervisor(t *testing.T) {
	svc, reports := newDashboardFixture(nil)

	dash, hit, err := svc.ForActor(context.Background(), actorS1)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.RoleStudent, dash.Role)
	require.NotNil(t, dash.CurrentSupervisor)
	assert.Equal(t, "Dr. V", dash.CurrentSupervisor.FullName)
	assert.Equal(t, studentS1, reports.filters[0].StudentID)
	assert.Len(t, dash.RecentReports, 1)

	dash, _, err = svc.ForActor(context.Background(), actorS2)
	require.NoError(t, err)
	assert.Nil(t, dash.CurrentSupervisor)
}

func TestDashboardScopesByRole(t *testing.T) {
	svc, reports := newDashboardFixture(nil)
	ctx := context.Background()

	dash, _, err := svc.ForActor(ctx, actorV1)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.PendingReview)
	assert.Equal(t, 1, dash.StudentCount)
	assert.Equal(t, supervisorV1, reports.filters[0].SupervisorID)

	dash, _, err = svc.ForActor(ctx, actorC400)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.StudentCount)
	assert.Equal(t, 1, dash.UnassignedCount)
	assert.Equal(t, "400", reports.filters[1].Level)

	dash, _, err = svc.ForActor(ctx, actorHODCS)
	require.NoError(t, err)
	assert.Equal(t, 40, dash.StudentCount)
	assert.Equal(t, "CS", reports.filters[2].Department)

	_, _, err = svc.ForActor(ctx, access.Actor{ID: "hod-x", Role: models.RoleHOD})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, _, err = svc.ForActor(ctx, access.Actor{ID: "x", Role: "JANITOR"})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestDashboardUsesCache(t *testing.T) {
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc, reports := newDashboardFixture(cache)
	ctx := context.Background()

	first, hit, err := svc.ForActor(ctx, actorAdmin)
	require.NoError(t, err)
	assert.False(t, hit)

	second, hit, err := svc.ForActor(ctx, actorAdmin)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.Reports, second.Reports)
	assert.Equal(t, 1, reports.statsCalls)

	svc.Invalidate(ctx)
	_, hit, err = svc.ForActor(ctx, actorAdmin)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, reports.statsCalls)
}

func TestInvalidatingActivityDropsCachedDashboards(t *testing.T) {
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc, reports := newDashboardFixture(cache)
	recorded := &recordingActivity{}
	sink := NewInvalidatingActivity(recorded, svc)
	ctx := context.Background()

	_, _, err := svc.ForActor(ctx, actorAdmin)
	require.NoError(t, err)

	sink.Record(ctx, ActivityEntry{ActorID: studentS1, Action: models.ActivityFileDownload})
	_, hit, err := svc.ForActor(ctx, actorAdmin)
	require.NoError(t, err)
	assert.True(t, hit)

	sink.Record(ctx, ActivityEntry{ActorID: studentS1, Action: models.ActivityReportSubmit})
	_, hit, err = svc.ForActor(ctx, actorAdmin)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, reports.statsCalls)
	assert.Len(t, recorded.entries, 2)
}
