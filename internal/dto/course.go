package dto

import (
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
)

// CourseQuery captures GET /courses filters.
type CourseQuery struct {
	SemesterID string `form:"semesterId"`
	Search     string `form:"q"`
	Page       int    `form:"page"`
	PageSize   int    `form:"limit"`
	SortBy     string `form:"sort"`
	SortOrder  string `form:"order"`
}

// CourseRequest is the POST/PUT /courses payload. Dates are ISO-8601 strings
// and are rejected, never defaulted, when they do not parse.
type CourseRequest struct {
	Code         string                   `json:"code" validate:"required,max=32"`
	Name         string                   `json:"name" validate:"required,max=200"`
	Description  *string                  `json:"description,omitempty"`
	InstructorID string                   `json:"instructorId,omitempty" validate:"omitempty,uuid"`
	Location     *string                  `json:"location,omitempty"`
	SemesterID   *string                  `json:"semesterId,omitempty" validate:"omitempty,uuid"`
	StartDate    string                   `json:"startDate" validate:"required"`
	EndDate      string                   `json:"endDate" validate:"required"`
	Schedule     []timeline.PatternRecord `json:"schedule"`
}

// MeetingsRequest replaces a course's weekly pattern.
type MeetingsRequest struct {
	Schedule []timeline.PatternRecord `json:"schedule"`
}

// CourseStatusRequest sets an administrative override.
type CourseStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled paused"`
}

// EnrollRequest registers students to a course.
type EnrollRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,uuid"`
}

// EnrollResponse reports how many enrollments were new.
type EnrollResponse struct {
	Enrolled int `json:"enrolled"`
	Skipped  int `json:"skipped"`
}

// CourseResponse is a course row with its derived status and weekly pattern.
type CourseResponse struct {
	models.Course
	Status   timeline.CourseStatus    `json:"status"`
	Schedule []timeline.PatternRecord `json:"schedule"`
}

// CourseDetailResponse adds the timeline quantities and roster size.
type CourseDetailResponse struct {
	CourseResponse
	Timeline      timeline.CourseTimeline    `json:"timeline"`
	EnrolledCount int                        `json:"enrolledCount"`
	Issues        []timeline.ValidationIssue `json:"issues,omitempty"`
}
