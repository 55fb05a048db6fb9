package models

import (
	"time"

	"github.com/noah-isme/portal-api/internal/timeline"
)

// Course is a row of the courses table joined with its instructor's name.
// AdministrativeStatus is the only persisted status; lifecycle is derived.
type Course struct {
	ID                   string     `db:"id" json:"id"`
	Code                 string     `db:"code" json:"code"`
	Name                 string     `db:"name" json:"name"`
	Description          *string    `db:"description" json:"description,omitempty"`
	InstructorID         string     `db:"instructor_id" json:"instructorId"`
	InstructorName       string     `db:"instructor_name" json:"instructor"`
	Location             *string    `db:"location" json:"location,omitempty"`
	SemesterID           *string    `db:"semester_id" json:"semesterId,omitempty"`
	StartDate            time.Time  `db:"start_date" json:"startDate"`
	EndDate              time.Time  `db:"end_date" json:"endDate"`
	AdministrativeStatus *string    `db:"administrative_status" json:"administrativeStatus,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt            *time.Time `db:"deleted_at" json:"-"`
}

// CourseMeeting is one stored entry of a course's weekly pattern. Times are
// kept as HH:MM text and re-validated whenever they are read.
type CourseMeeting struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"courseId"`
	DayOfWeek int       `db:"day_of_week" json:"dayOfWeek"`
	StartTime string    `db:"start_time" json:"startTime"`
	EndTime   string    `db:"end_time" json:"endTime"`
	Room      *string   `db:"room" json:"room,omitempty"`
	Position  int       `db:"position" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	IDs          []string
	SemesterID   string
	InstructorID string
	StudentID    string
	Search       string
	// Overlapping keeps courses whose validity intersects [OverlapFrom, OverlapTo].
	OverlapFrom *time.Time
	OverlapTo   *time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// Timeline converts the row and its meetings into the derivation model.
// Stored entries that no longer parse are dropped and reported.
func (c Course) Timeline(meetings []CourseMeeting) (timeline.Course, []timeline.ValidationIssue) {
	course := timeline.Course{
		ID:                   c.ID,
		Code:                 c.Code,
		Name:                 c.Name,
		Instructor:           c.InstructorName,
		Location:             deref(c.Location),
		StartDate:            c.StartDate,
		EndDate:              c.EndDate,
		AdministrativeStatus: timeline.ParseAdministrativeStatus(deref(c.AdministrativeStatus)),
	}
	var issues []timeline.ValidationIssue
	for i, m := range meetings {
		pattern, err := timeline.ParsePattern(m.PatternRecord())
		if err != nil {
			issues = append(issues, timeline.ValidationIssue{
				Kind:     timeline.IssueMalformedPattern,
				RecordID: c.ID,
				Field:    "schedule",
				Index:    i,
				Value:    m.StartTime + "-" + m.EndTime,
				Reason:   err.Error(),
			})
			continue
		}
		course.Pattern = append(course.Pattern, pattern)
	}
	return course, issues
}

// PatternRecord renders the stored meeting in wire form.
func (m CourseMeeting) PatternRecord() timeline.PatternRecord {
	return timeline.PatternRecord{
		DayOfWeek: timeline.Weekday(m.DayOfWeek).String(),
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Room:      deref(m.Room),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
