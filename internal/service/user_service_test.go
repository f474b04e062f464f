package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/project-submission-api/internal/models"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type mockUserRepo struct {
	users          map[string]*models.User
	listUsers      []models.User
	listCount      int
	listErr        error
	findByIDErr    error
	findByEmailErr error
	revoked        []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	if m.listUsers != nil {
		return m.listUsers, m.listCount, nil
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, &recordingActivity{}, validator.New(), zap.NewNop())
	users, pagination, err := svc.List(context.Background(), actorAdmin, models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), actorHODCS, models.UserFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	bogus := models.UserRole("JANITOR")
	_, _, err = svc.List(context.Background(), actorAdmin, models.UserFilter{Role: &bogus})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	activity := &recordingActivity{}
	svc := NewUserService(repo, activity, validator.New(), zap.NewNop())

	user, err := svc.Create(context.Background(), actorAdmin, CreateUserRequest{Email: "HOD@EXAMPLE.COM", FullName: "Head", Password: "secret1", Role: models.RoleHOD, Department: "CS", Active: true})
	require.NoError(t, err)
	assert.Equal(t, "hod@example.com", user.Email)
	assert.Equal(t, []string{models.ActivityUserCreate}, activity.actions())

	_, err = svc.Create(context.Background(), actorAdmin, CreateUserRequest{Email: "hod@example.com", FullName: "Other", Password: "secret1", Role: models.RoleHOD, Department: "EE"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), actorAdmin, CreateUserRequest{Email: "c@example.com", FullName: "Coord", Password: "secret1", Role: models.RoleLevelCoordinator})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), actorAdmin, CreateUserRequest{Email: "t@example.com", FullName: "Janitor", Password: "secret1", Role: "JANITOR"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), actorV1, CreateUserRequest{Email: "x@example.com", FullName: "X", Password: "secret1", Role: models.RoleSupervisor})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleSupervisor, Active: true}}}
	activity := &recordingActivity{}
	svc := NewUserService(repo, activity, validator.New(), zap.NewNop())
	level := "300"
	user, err := svc.Update(context.Background(), actorAdmin, "1", UpdateUserRequest{FullName: "New", Role: models.RoleLevelCoordinator, Level: &level})
	require.NoError(t, err)
	assert.Equal(t, models.RoleLevelCoordinator, user.Role)
	assert.Equal(t, "300", repo.users["1"].Level)
	assert.Equal(t, []string{models.ActivityUserUpdate}, activity.actions())

	_, err = svc.Update(context.Background(), actorAdmin, "missing", UpdateUserRequest{FullName: "New", Role: models.RoleSupervisor})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceUpdateSelfDemotion(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{actorAdmin.ID: {ID: actorAdmin.ID, Role: models.RoleGeneralAdmin, Active: true}}}
	svc := NewUserService(repo, &recordingActivity{}, validator.New(), zap.NewNop())
	_, err := svc.Update(context.Background(), actorAdmin, actorAdmin.ID, UpdateUserRequest{FullName: "Me", Role: models.RoleSupervisor})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, models.RoleGeneralAdmin, repo.users[actorAdmin.ID].Role)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleSupervisor, Active: true}}}
	activity := &recordingActivity{}
	svc := NewUserService(repo, activity, validator.New(), zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), actorAdmin, "1"))
	assert.False(t, repo.users["1"].Active)
	assert.Equal(t, []string{"1"}, repo.revoked)

	require.NoError(t, svc.Deactivate(context.Background(), actorAdmin, "1"))
	assert.Len(t, activity.entries, 1)

	err := svc.Deactivate(context.Background(), actorAdmin, actorAdmin.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
