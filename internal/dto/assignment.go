package dto

import (
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
)

// AssignmentQuery captures GET /assignments filters.
type AssignmentQuery struct {
	Status   string `form:"status"`
	Search   string `form:"q"`
	Sort     string `form:"sort"`
	Order    string `form:"order"`
	CourseID string `form:"courseId"`
	Page     int    `form:"page"`
	PageSize int    `form:"limit"`
}

// AssignmentRequest is the POST /assignments payload.
type AssignmentRequest struct {
	CourseID            string  `json:"courseId" validate:"required,uuid"`
	Title               string  `json:"title" validate:"required,max=200"`
	Description         *string `json:"description,omitempty"`
	DueDate             string  `json:"dueDate" validate:"required"`
	AllowLateSubmission bool    `json:"allowLateSubmission"`
	IsActive            *bool   `json:"isActive,omitempty"`
	MaxScore            float64 `json:"maxScore" validate:"omitempty,gt=0"`
}

// AssignmentUpdateRequest is the PUT /assignments/:id payload; nil fields are kept.
type AssignmentUpdateRequest struct {
	Title               *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description         *string  `json:"description,omitempty"`
	DueDate             *string  `json:"dueDate,omitempty"`
	AllowLateSubmission *bool    `json:"allowLateSubmission,omitempty"`
	IsActive            *bool    `json:"isActive,omitempty"`
	MaxScore            *float64 `json:"maxScore,omitempty" validate:"omitempty,gt=0"`
}

// SubmitRequest is the POST /assignments/:id/submissions payload.
type SubmitRequest struct {
	Content string `json:"content" validate:"required"`
}

// GradeRequest is the PUT .../grade payload.
type GradeRequest struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback *string `json:"feedback,omitempty"`
}

// AssignmentSummaryResponse is the teacher view of one assignment.
type AssignmentSummaryResponse struct {
	Assignment  models.Assignment          `json:"assignment"`
	Enrolled    int                        `json:"enrolled"`
	Summary     timeline.SubmissionSummary `json:"summary"`
	Submissions []models.Submission        `json:"submissions"`
}

// SubmitResponse returns the stored submission with the refreshed view.
type SubmitResponse struct {
	Submission models.Submission       `json:"submission"`
	View       timeline.AssignmentView `json:"assignment"`
}
