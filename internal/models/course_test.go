package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/portal-api/internal/timeline"
)

func strPtr(s string) *string { return &s }

func TestCourseTimelineReportsBadMeetings(t *testing.T) {
	row := Course{
		ID:                   "c1",
		Name:                 "Algorithms",
		InstructorName:       "Dr. Ada",
		Location:             strPtr("Building A"),
		StartDate:            time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		AdministrativeStatus: strPtr("paused"),
	}
	meetings := []CourseMeeting{
		{DayOfWeek: 1, StartTime: "07:00", EndTime: "09:30", Room: strPtr("A1")},
		{DayOfWeek: 8, StartTime: "07:00", EndTime: "09:30"},
		{DayOfWeek: 3, StartTime: "12:00", EndTime: "11:00"},
	}

	course, issues := row.Timeline(meetings)
	assert.Equal(t, timeline.AdminStatusPaused, course.AdministrativeStatus)
	assert.Equal(t, "Building A", course.Location)
	require.Len(t, course.Pattern, 1)
	assert.Equal(t, timeline.Monday, course.Pattern[0].Day)
	assert.Equal(t, "A1", course.Pattern[0].Room)

	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Index)
	assert.Equal(t, 2, issues[1].Index)
}

func TestAssignmentTimelineKeepsOwnSubmissions(t *testing.T) {
	score := 8.0
	a := Assignment{ID: "a1", Title: "Essay", DueDate: time.Date(2024, 10, 1, 23, 59, 0, 0, time.UTC), IsActive: true}
	subs := []Submission{
		{AssignmentID: "a1", StudentID: "s1", SubmissionDate: time.Date(2024, 10, 1, 10, 0, 0, 0, time.UTC), Score: &score},
		{AssignmentID: "a2", StudentID: "s1"},
	}

	got := a.Timeline(subs)
	require.Len(t, got.Submissions, 1)
	assert.Equal(t, timeline.AssignmentGraded, timeline.View(got, "s1", time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)).Status)
}

func TestNormalisePage(t *testing.T) {
	p, s := NormalisePage(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, 20, s)
	_, s = NormalisePage(3, 500)
	assert.Equal(t, 100, s)
}

func TestExportJobParamsScan(t *testing.T) {
	var p ExportJobParams
	require.NoError(t, p.Scan([]byte(`{"format":"xlsx","startDate":"2024-09-01","endDate":"2024-09-30","role":"STUDENT"}`)))
	assert.Equal(t, ExportFormatXLSX, p.Format)
	assert.True(t, p.Format.Valid())
	assert.Equal(t, RoleStudent, p.Role)

	require.NoError(t, p.Scan(nil))
	assert.Equal(t, ExportJobParams{}, p)
	assert.Error(t, p.Scan(42))
}
