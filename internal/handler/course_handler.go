package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context, viewer models.Viewer, query dto.CourseQuery) ([]dto.CourseResponse, *models.Pagination, error)
	Get(ctx context.Context, viewer models.Viewer, id string) (*dto.CourseDetailResponse, error)
	Create(ctx context.Context, actor models.Viewer, req dto.CourseRequest) (*dto.CourseDetailResponse, error)
	Update(ctx context.Context, actor models.Viewer, id string, req dto.CourseRequest) (*dto.CourseDetailResponse, error)
	ReplaceMeetings(ctx context.Context, actor models.Viewer, id string, req dto.MeetingsRequest) (*dto.CourseDetailResponse, error)
	SetStatus(ctx context.Context, actor models.Viewer, id string, req dto.CourseStatusRequest) (*dto.CourseDetailResponse, error)
	ClearStatus(ctx context.Context, actor models.Viewer, id string) (*dto.CourseDetailResponse, error)
	Delete(ctx context.Context, actor models.Viewer, id string) error
	Enroll(ctx context.Context, id string, req dto.EnrollRequest) (*dto.EnrollResponse, error)
	Roster(ctx context.Context, actor models.Viewer, id string) ([]models.EnrollmentDetail, error)
}

// CourseHandler exposes course endpoints. Every read carries a status
// derived at request time.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// List godoc
// @Summary List courses visible to the caller
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param semesterId query string false "Semester"
// @Param q query string false "Search code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "code|name|start_date|end_date"
// @Param order query string false "asc|desc"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var query dto.CourseQuery
	if !bindQuery(c, &query) {
		return
	}
	courses, pagination, err := h.service.List(c.Request.Context(), viewer, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, courses, pagination)
}

// Get godoc
// @Summary Course detail with timeline
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	course, err := h.service.Get(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.CourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.service.Create(c.Request.Context(), viewer, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.CourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.service.Update(c.Request.Context(), viewer, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, course, nil)
}

// ReplaceMeetings godoc
// @Summary Replace the weekly meeting pattern
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.MeetingsRequest true "Weekly pattern"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/meetings [put]
func (h *CourseHandler) ReplaceMeetings(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.MeetingsRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.service.ReplaceMeetings(c.Request.Context(), viewer, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, course, nil)
}

// SetStatus godoc
// @Summary Cancel or pause a course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.CourseStatusRequest true "Override"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/status [put]
func (h *CourseHandler) SetStatus(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	var req dto.CourseStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.service.SetStatus(c.Request.Context(), viewer, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, course, nil)
}

// ClearStatus godoc
// @Summary Remove the administrative override
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/status [delete]
func (h *CourseHandler) ClearStatus(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	course, err := h.service.ClearStatus(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	if err := h.service.Delete(c.Request.Context(), viewer, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Enroll godoc
// @Summary Enroll students
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.EnrollRequest true "Students"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [post]
func (h *CourseHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.service.Enroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, res, nil)
}

// Roster godoc
// @Summary List enrolled students
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	roster, err := h.service.Roster(c.Request.Context(), viewer, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondOK(c, roster, nil)
}
