package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/service"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type assignmentServiceMock struct {
	assignReq service.AssignRequest
	current   *models.Assignment
	err       error
	studentID string
}

func (m *assignmentServiceMock) Assign(_ context.Context, actor access.Actor, req service.AssignRequest) (*models.Assignment, error) {
	m.assignReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Assignment{ID: "asg-1", StudentID: req.StudentID, SupervisorID: req.SupervisorID, CoordinatorID: actor.ID, Active: true}, nil
}

func (m *assignmentServiceMock) Unassign(_ context.Context, _ access.Actor, id string) (*models.Assignment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Assignment{ID: id}, nil
}

func (m *assignmentServiceMock) CurrentSupervisorOf(_ context.Context, studentID string) (*models.Assignment, error) {
	m.studentID = studentID
	return m.current, m.err
}

func (m *assignmentServiceMock) ListForCoordinator(context.Context, access.Actor) (*service.CoordinatorOverview, error) {
	return &service.CoordinatorOverview{}, m.err
}

func (m *assignmentServiceMock) ListSupervisorStudents(context.Context, access.Actor) ([]models.StudentAssignment, error) {
	return []models.StudentAssignment{}, m.err
}

func TestAssignmentHandlerAssign(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &assignmentServiceMock{}
	handler := NewAssignmentHandler(mockSvc)

	payload, _ := json.Marshal(service.AssignRequest{StudentID: "s1", SupervisorID: "v1"})
	c, w := newGinContext(http.MethodPost, "/assignments", payload)
	withClaims(c, "coord-1", models.RoleLevelCoordinator)
	handler.Assign(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "v1", mockSvc.assignReq.SupervisorID)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "coord-1", envelope.Data["coordinator_id"])
}

func TestAssignmentHandlerAssignConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAssignmentHandler(&assignmentServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "student was assigned concurrently")})

	payload, _ := json.Marshal(service.AssignRequest{StudentID: "s1", SupervisorID: "v1"})
	c, w := newGinContext(http.MethodPost, "/assignments", payload)
	withClaims(c, "coord-1", models.RoleLevelCoordinator)
	handler.Assign(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssignmentHandlerMySupervisor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &assignmentServiceMock{}
	handler := NewAssignmentHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/assignments/me", nil)
	withClaims(c, "s1", models.RoleStudent)
	handler.MySupervisor(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "s1", mockSvc.studentID)

	mockSvc.current = &models.Assignment{ID: "asg-1", SupervisorID: "v1", Active: true}
	c, w = newGinContext(http.MethodGet, "/assignments/me", nil)
	withClaims(c, "s1", models.RoleStudent)
	handler.MySupervisor(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodGet, "/assignments/me", nil)
	withClaims(c, "v1", models.RoleSupervisor)
	handler.MySupervisor(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
