package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/service"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
	"github.com/noah-isme/project-submission-api/pkg/response"
)

type assignmentService interface {
	Assign(ctx context.Context, actor access.Actor, req service.AssignRequest) (*models.Assignment, error)
	Unassign(ctx context.Context, actor access.Actor, assignmentID string) (*models.Assignment, error)
	CurrentSupervisorOf(ctx context.Context, studentID string) (*models.Assignment, error)
	ListForCoordinator(ctx context.Context, actor access.Actor) (*service.CoordinatorOverview, error)
	ListSupervisorStudents(ctx context.Context, actor access.Actor) ([]models.StudentAssignment, error)
}

// AssignmentHandler exposes supervisor assignment endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Overview godoc
// @Summary Students and supervisors for assignment
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) Overview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	overview, err := h.service.ListForCoordinator(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// Assign godoc
// @Summary Assign a supervisor
// @Description Replaces any current supervisor of the student
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.AssignRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Unassign godoc
// @Summary Deactivate an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignment, err := h.service.Unassign(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// MySupervisor godoc
// @Summary Current supervisor of the calling student
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/me [get]
func (h *AssignmentHandler) MySupervisor(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !access.CanPerform(actor, access.OpViewSupervisor, access.Resource{StudentID: actor.ID}) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only students have a supervisor"))
		return
	}
	assignment, err := h.service.CurrentSupervisorOf(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if assignment == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no supervisor assigned"))
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// MyStudents godoc
// @Summary Students assigned to the calling supervisor
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/students [get]
func (h *AssignmentHandler) MyStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	students, err := h.service.ListSupervisorStudents(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}
