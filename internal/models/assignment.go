package models

import (
	"time"

	"github.com/noah-isme/portal-api/internal/timeline"
)

// Assignment is a row of the assignments table joined with its course name.
type Assignment struct {
	ID                  string    `db:"id" json:"id"`
	CourseID            string    `db:"course_id" json:"courseId"`
	CourseName          string    `db:"course_name" json:"courseName"`
	Title               string    `db:"title" json:"title"`
	Description         *string   `db:"description" json:"description,omitempty"`
	DueDate             time.Time `db:"due_date" json:"dueDate"`
	AllowLateSubmission bool      `db:"allow_late_submission" json:"allowLateSubmission"`
	IsActive            bool      `db:"is_active" json:"isActive"`
	MaxScore            float64   `db:"max_score" json:"maxScore"`
	CreatedBy           string    `db:"created_by" json:"createdBy"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	CourseIDs  []string
	ActiveOnly bool
}

// Submission is a row of the submissions table. There is at most one per
// (assignment, student); resubmitting overwrites it and bumps AttemptNumber.
type Submission struct {
	ID             string     `db:"id" json:"id"`
	AssignmentID   string     `db:"assignment_id" json:"assignmentId"`
	StudentID      string     `db:"student_id" json:"studentId"`
	StudentName    string     `db:"student_name" json:"studentName,omitempty"`
	Content        string     `db:"content" json:"content"`
	SubmissionDate time.Time  `db:"submission_date" json:"submissionDate"`
	Score          *float64   `db:"score" json:"score,omitempty"`
	Feedback       *string    `db:"feedback" json:"feedback,omitempty"`
	GradedAt       *time.Time `db:"graded_at" json:"gradedAt,omitempty"`
	GradedBy       *string    `db:"graded_by" json:"gradedBy,omitempty"`
	AttemptNumber  int        `db:"attempt_number" json:"attemptNumber"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Timeline converts the row and its submissions into the derivation model.
func (a Assignment) Timeline(subs []Submission) timeline.Assignment {
	out := timeline.Assignment{
		ID:                  a.ID,
		CourseID:            a.CourseID,
		CourseName:          a.CourseName,
		Title:               a.Title,
		Description:         deref(a.Description),
		DueDate:             a.DueDate,
		AllowLateSubmission: a.AllowLateSubmission,
		IsActive:            a.IsActive,
		MaxScore:            a.MaxScore,
	}
	for _, s := range subs {
		if s.AssignmentID != a.ID {
			continue
		}
		out.Submissions = append(out.Submissions, s.Timeline())
	}
	return out
}

// Timeline converts the row into the derivation model.
func (s Submission) Timeline() timeline.Submission {
	return timeline.Submission{
		ID:             s.ID,
		AssignmentID:   s.AssignmentID,
		StudentID:      s.StudentID,
		SubmissionDate: s.SubmissionDate,
		Score:          s.Score,
		GradedAt:       s.GradedAt,
		AttemptNumber:  s.AttemptNumber,
	}
}
