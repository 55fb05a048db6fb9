package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
	"github.com/noah-isme/portal-api/pkg/response"
)

type assignmentService interface {
	List(ctx context.Context, viewer models.Viewer, query dto.AssignmentQuery) ([]timeline.AssignmentView, *models.Pagination, error)
	Get(ctx context.Context, viewer models.Viewer, id string) (*timeline.AssignmentView, error)
	Create(ctx context.Context, actor models.Viewer, req dto.AssignmentRequest) (*models.Assignment, error)
	Update(ctx context.Context, actor models.Viewer, id string, req dto.AssignmentUpdateRequest) (*models.Assignment, error)
	Submit(ctx context.Context, student models.Viewer, id string, req dto.SubmitRequest) (*dto.SubmitResponse, error)
	Grade(ctx context.Context, actor models.Viewer, id, studentID string, req dto.GradeRequest) (*models.Submission, error)
	Summary(ctx context.Context, actor models.Viewer, id string) (*dto.AssignmentSummaryResponse, error)
}

// AssignmentHandler exposes assignment and submission endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// List godoc
// @Summary Assignments annotated for the caller
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param status query string false "all|pending|submitted|graded|overdue|late"
// @Param q query string false "Search title, description or course"
// @Param sort query string false "dueDate"
// @Param order query string false "asc|desc"
// @Param courseId query string false "Course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var query dto.AssignmentQuery
	if !bindQuery(c, &query) {
		return
	}
	views, pagination, err := h.service.List(c.Request.Context(), viewer, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, views, pagination)
}

// Get godoc
// @Summary Assignment detail
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	view, err := h.service.Get(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, view, nil)
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.AssignmentRequest
	if !bindJSON(c, &req) {
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), viewer, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body dto.AssignmentUpdateRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.AssignmentUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	assignment, err := h.service.Update(c.Request.Context(), viewer, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, assignment, nil)
}

// Submit godoc
// @Summary Submit work
// @Description Permission is decided at the moment of the call. Late work is kept only when the assignment allows it.
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param payload body dto.SubmitRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.SubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Submit(c.Request.Context(), viewer, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param studentId path string true "Student ID"
// @Param payload body dto.GradeRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions/{studentId}/grade [put]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.GradeRequest
	if !bindJSON(c, &req) {
		return
	}
	submission, err := h.service.Grade(c.Request.Context(), viewer, c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, submission, nil)
}

// Summary godoc
// @Summary Submission counts for one assignment
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/summary [get]
func (h *AssignmentHandler) Summary(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, summary, nil)
}
