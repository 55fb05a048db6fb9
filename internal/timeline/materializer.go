package timeline

import (
	"fmt"
	"time"
)

// Occurrence is one dated meeting of a course, carrying a snapshot of the
// course display fields at materialisation time.
type Occurrence struct {
	CourseID   string       `json:"courseId"`
	CourseCode string       `json:"courseCode,omitempty"`
	CourseName string       `json:"courseName"`
	Instructor string       `json:"instructor,omitempty"`
	Location   string       `json:"location,omitempty"`
	Room       string       `json:"room,omitempty"`
	Date       time.Time    `json:"-"`
	DateKey    string       `json:"date"`
	Weekday    Weekday      `json:"dayOfWeek"`
	StartTime  ClockTime    `json:"startTime"`
	EndTime    ClockTime    `json:"endTime"`
	Status     CourseStatus `json:"status"`
}

// Key identifies the occurrence as (course, date, start time).
func (o Occurrence) Key() string {
	return o.CourseID + "|" + o.DateKey + "|" + o.StartTime.String()
}

// Starts returns the instant the meeting starts, in the occurrence's location.
func (o Occurrence) Starts() time.Time {
	return o.at(o.StartTime)
}

// Ends returns the instant the meeting ends.
func (o Occurrence) Ends() time.Time {
	return o.at(o.EndTime)
}

func (o Occurrence) at(c ClockTime) time.Time {
	y, m, d := o.Date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, o.Date.Location())
}

// Materialize expands the weekly patterns of courses into dated occurrences over
// r. Courses are visited in input order, dates ascending and pattern entries in
// pattern order, so identical inputs give list-equal outputs. Cancelled courses
// produce nothing; paused courses stay on the calendar. Invalid or duplicate
// pattern entries are skipped and reported without discarding the course.
func Materialize(courses []Course, r DateRange, now time.Time) ([]Occurrence, []ValidationIssue) {
	var (
		out    []Occurrence
		issues []ValidationIssue
	)
	if r.Empty() {
		return out, issues
	}

	for _, course := range courses {
		if issue, ok := checkInterval(course); !ok {
			issues = append(issues, issue)
			continue
		}
		status := DeriveCourseStatus(course, now)
		if status == CourseCancelled {
			continue
		}

		byDay, entryIssues := indexPattern(course)
		issues = append(issues, entryIssues...)
		if len(byDay) == 0 {
			continue
		}

		span := r.Clamp(course.StartDate, course.EndDate)
		for d := span.From; !d.After(span.To); d = d.AddDate(0, 0, 1) {
			wd := WeekdayOf(d)
			for _, entry := range byDay[wd] {
				out = append(out, Occurrence{
					CourseID:   course.ID,
					CourseCode: course.Code,
					CourseName: course.Name,
					Instructor: course.Instructor,
					Location:   course.Location,
					Room:       entry.Room,
					Date:       d,
					DateKey:    d.Format(DateKeyLayout),
					Weekday:    wd,
					StartTime:  entry.Start,
					EndTime:    entry.End,
					Status:     status,
				})
			}
		}
	}
	return out, issues
}

func checkInterval(course Course) (ValidationIssue, bool) {
	switch {
	case course.StartDate.IsZero():
		return dateIssue(course.ID, "startDate", "", fmt.Errorf("start date is missing")), false
	case course.EndDate.IsZero():
		return dateIssue(course.ID, "endDate", "", fmt.Errorf("end date is missing")), false
	case course.StartDate.After(course.EndDate):
		return dateIssue(course.ID, "endDate", course.EndDate.Format(time.RFC3339), fmt.Errorf("end date is before start date")), false
	}
	return ValidationIssue{}, true
}

// indexPattern groups valid pattern entries by weekday, preserving pattern order.
func indexPattern(course Course) (map[Weekday][]MeetingPattern, []ValidationIssue) {
	var issues []ValidationIssue
	byDay := make(map[Weekday][]MeetingPattern, len(course.Pattern))
	seen := make(map[string]struct{}, len(course.Pattern))
	for i, entry := range course.Pattern {
		if reason := checkEntry(entry); reason != "" {
			issues = append(issues, patternIssue(course.ID, i, describeEntry(entry), reason))
			continue
		}
		key := fmt.Sprintf("%d|%d", entry.Day, entry.Start)
		if _, dup := seen[key]; dup {
			issues = append(issues, patternIssue(course.ID, i, describeEntry(entry), "duplicate day and start time"))
			continue
		}
		seen[key] = struct{}{}
		byDay[entry.Day] = append(byDay[entry.Day], entry)
	}
	return byDay, issues
}

func checkEntry(entry MeetingPattern) string {
	switch {
	case !entry.Day.Valid():
		return "unrecognised day of week"
	case !entry.Start.Valid() || !entry.End.Valid():
		return "time outside of a single day"
	case entry.Start >= entry.End:
		return "start time must be before end time"
	}
	return ""
}

func describeEntry(entry MeetingPattern) string {
	return fmt.Sprintf("%s %s-%s", entry.Day, entry.Start, entry.End)
}
