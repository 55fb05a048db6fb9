package timeline

import "time"

// AssignmentStatus is the derived state of an assignment for one viewing student.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentGraded    AssignmentStatus = "graded"
	AssignmentOverdue   AssignmentStatus = "overdue"
)

// Submission is one student's work for one assignment.
type Submission struct {
	ID             string     `json:"id,omitempty"`
	AssignmentID   string     `json:"assignmentId"`
	StudentID      string     `json:"studentId"`
	SubmissionDate time.Time  `json:"submissionDate"`
	Score          *float64   `json:"score,omitempty"`
	GradedAt       *time.Time `json:"gradedAt,omitempty"`
	AttemptNumber  int        `json:"attemptNumber"`
}

// Assignment is the read-only view of an assignment and its submissions.
type Assignment struct {
	ID                  string       `json:"id"`
	CourseID            string       `json:"courseId,omitempty"`
	CourseName          string       `json:"courseName,omitempty"`
	Title               string       `json:"title"`
	Description         string       `json:"description,omitempty"`
	DueDate             time.Time    `json:"dueDate"`
	AllowLateSubmission bool         `json:"allowLateSubmission"`
	IsActive            bool         `json:"isActive"`
	MaxScore            float64      `json:"maxScore,omitempty"`
	Submissions         []Submission `json:"submissions,omitempty"`
}

// Submit refusal reasons.
const (
	ReasonInactive       = "assignment is not accepting submissions"
	ReasonDeadlinePassed = "the submission deadline has passed and late submissions are not allowed"
)

// SubmitDecision is the outcome of a submission permission check.
type SubmitDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// SubmissionFor returns the viewer's submission, or nil when there is none.
func SubmissionFor(assignment Assignment, studentID string) *Submission {
	if studentID == "" {
		return nil
	}
	for i := range assignment.Submissions {
		if assignment.Submissions[i].StudentID == studentID {
			sub := assignment.Submissions[i]
			return &sub
		}
	}
	return nil
}

// DeriveAssignmentStatus computes the status of assignment for the viewer whose
// submission is given (nil when the viewer has not submitted).
func DeriveAssignmentStatus(assignment Assignment, submission *Submission, now time.Time) AssignmentStatus {
	if submission == nil {
		if now.After(assignment.DueDate) {
			return AssignmentOverdue
		}
		return AssignmentPending
	}
	if submission.Score != nil {
		return AssignmentGraded
	}
	return AssignmentSubmitted
}

// IsLate reports whether the submission arrived after the due date. It is
// independent of the derived status.
func IsLate(assignment Assignment, submission *Submission) bool {
	if submission == nil {
		return false
	}
	return submission.SubmissionDate.After(assignment.DueDate)
}

// CanSubmit decides whether a submission is permitted at now. Callers must
// evaluate it at submission time rather than reuse an earlier result.
func CanSubmit(assignment Assignment, now time.Time) SubmitDecision {
	if !assignment.IsActive {
		return SubmitDecision{Reason: ReasonInactive}
	}
	if now.After(assignment.DueDate) && !assignment.AllowLateSubmission {
		return SubmitDecision{Reason: ReasonDeadlinePassed}
	}
	return SubmitDecision{Allowed: true}
}

// AssignmentView is an assignment annotated for one viewing student.
type AssignmentView struct {
	Assignment
	Status     AssignmentStatus `json:"status"`
	IsLate     bool             `json:"isLate"`
	CanSubmit  SubmitDecision   `json:"canSubmit"`
	Submission *Submission      `json:"submission,omitempty"`
}

// Annotate derives the viewer's status, lateness and submit permission for each
// assignment. Other students' submissions are not carried into the views.
func Annotate(assignments []Assignment, studentID string, now time.Time) []AssignmentView {
	views := make([]AssignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, View(a, studentID, now))
	}
	return views
}

// View annotates a single assignment for studentID.
func View(assignment Assignment, studentID string, now time.Time) AssignmentView {
	sub := SubmissionFor(assignment, studentID)
	assignment.Submissions = nil
	return AssignmentView{
		Assignment: assignment,
		Status:     DeriveAssignmentStatus(assignment, sub, now),
		IsLate:     IsLate(assignment, sub),
		CanSubmit:  CanSubmit(assignment, now),
		Submission: sub,
	}
}

// SubmissionSummary counts submissions of one assignment for its teacher.
type SubmissionSummary struct {
	Submitted int  `json:"submitted"`
	Graded    int  `json:"graded"`
	Ungraded  int  `json:"ungraded"`
	Late      int  `json:"late"`
	Missing   int  `json:"missing"`
	PastDue   bool `json:"pastDue"`
}

// SummarizeSubmissions counts submissions against the number of enrolled students.
func SummarizeSubmissions(assignment Assignment, enrolled int, now time.Time) SubmissionSummary {
	summary := SubmissionSummary{PastDue: now.After(assignment.DueDate)}
	for i := range assignment.Submissions {
		sub := &assignment.Submissions[i]
		summary.Submitted++
		if sub.Score != nil {
			summary.Graded++
		} else {
			summary.Ungraded++
		}
		if IsLate(assignment, sub) {
			summary.Late++
		}
	}
	if enrolled > summary.Submitted {
		summary.Missing = enrolled - summary.Submitted
	}
	return summary
}
