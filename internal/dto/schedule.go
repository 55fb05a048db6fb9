package dto

import "github.com/noah-isme/portal-api/internal/timeline"

// ScheduleQuery accepts the three range shapes: a single date, a start/end
// pair, or a year/month pair. A semester id alone selects the semester's dates.
type ScheduleQuery struct {
	Date       string `form:"date" json:"date,omitempty"`
	StartDate  string `form:"startDate" json:"startDate,omitempty"`
	EndDate    string `form:"endDate" json:"endDate,omitempty"`
	Year       int    `form:"year" json:"year,omitempty"`
	Month      int    `form:"month" json:"month,omitempty"`
	SemesterID string `form:"semesterId" json:"semesterId,omitempty"`
	CourseID   string `form:"courseId" json:"courseId,omitempty"`
}

// ScheduleRange echoes the resolved calendar dates.
type ScheduleRange struct {
	From string `json:"from"`
	To   string `json:"to"`
	Days int    `json:"days"`
}

// ScheduleDay groups the occurrences of one calendar date.
type ScheduleDay struct {
	Date        string                `json:"date"`
	Weekday     timeline.Weekday      `json:"dayOfWeek"`
	Occurrences []timeline.Occurrence `json:"occurrences"`
}

// ScheduleResponse is the materialised schedule for a range. Only dates with
// at least one occurrence appear in Days.
type ScheduleResponse struct {
	Range  ScheduleRange              `json:"range"`
	Days   []ScheduleDay              `json:"days"`
	Total  int                        `json:"total"`
	Issues []timeline.ValidationIssue `json:"issues,omitempty"`
}
