package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/middleware"
	"github.com/noah-isme/portal-api/internal/models"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
	"github.com/noah-isme/portal-api/pkg/response"
)

type scheduleService interface {
	Query(ctx context.Context, viewer models.Viewer, q dto.ScheduleQuery) (*dto.ScheduleResponse, bool, error)
}

// ScheduleHandler serves materialised schedules.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Query godoc
// @Summary Schedule for a date, a range, a month or a semester
// @Description Exactly one of date, startDate/endDate or year/month may be given. semesterId alone selects the semester's dates; with no parameters the schedule covers today.
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param date query string false "Single date (YYYY-MM-DD)"
// @Param startDate query string false "Range start"
// @Param endDate query string false "Range end"
// @Param year query int false "Year"
// @Param month query int false "Month (1-12)"
// @Param semesterId query string false "Semester"
// @Param courseId query string false "Course"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) Query(c *gin.Context) {
	var q dto.ScheduleQuery
	if !bindQuery(c, &q) {
		return
	}
	h.serve(c, q)
}

// Daily godoc
// @Summary Schedule of one day
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param date query string false "Date (YYYY-MM-DD), today when omitted"
// @Param courseId query string false "Course"
// @Success 200 {object} response.Envelope
// @Router /schedules/daily [get]
func (h *ScheduleHandler) Daily(c *gin.Context) {
	h.serve(c, dto.ScheduleQuery{Date: c.Query("date"), CourseID: c.Query("courseId")})
}

// Monthly godoc
// @Summary Schedule of one calendar month
// @Tags Schedules
// @Produce json
// @Security BearerAuth
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Param courseId query string false "Course"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedules/monthly [get]
func (h *ScheduleHandler) Monthly(c *gin.Context) {
	var params struct {
		Year     int    `form:"year"`
		Month    int    `form:"month"`
		CourseID string `form:"courseId"`
	}
	if !bindQuery(c, &params) {
		return
	}
	if params.Year == 0 || params.Month == 0 {
		err := appErrors.Clone(appErrors.ErrValidation, "year and month are required")
		err.Field = "month"
		response.Error(c, err)
		return
	}
	h.serve(c, dto.ScheduleQuery{Year: params.Year, Month: params.Month, CourseID: params.CourseID})
}

func (h *ScheduleHandler) serve(c *gin.Context, q dto.ScheduleQuery) {
	viewer, authed := currentViewer(c)
	if !authed {
		return
	}
	schedule, hit, err := h.service.Query(c.Request.Context(), viewer, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	if len(schedule.Issues) > 0 {
		middleware.SetMeta(c, "skippedEntries", len(schedule.Issues))
	}
	respondOK(c, schedule, nil)
}
