package timeline

import (
	"fmt"
	"strings"
	"time"
)

// CourseRecord is a course as delivered by the data service.
type CourseRecord struct {
	ID         string          `json:"_id"`
	Code       string          `json:"code,omitempty"`
	Name       string          `json:"name"`
	Instructor string          `json:"instructor,omitempty"`
	Location   string          `json:"location,omitempty"`
	StartDate  string          `json:"startDate"`
	EndDate    string          `json:"endDate"`
	Schedule   []PatternRecord `json:"schedule"`
	Status     string          `json:"status,omitempty"`
}

// PatternRecord is one weekly pattern entry as delivered by the data service.
type PatternRecord struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Room      string `json:"room,omitempty"`
}

// AssignmentRecord is an assignment as delivered by the data service.
type AssignmentRecord struct {
	ID                  string             `json:"_id"`
	Course              string             `json:"course,omitempty"`
	CourseName          string             `json:"courseName,omitempty"`
	Title               string             `json:"title"`
	Description         string             `json:"description,omitempty"`
	DueDate             string             `json:"dueDate"`
	AllowLateSubmission bool               `json:"allowLateSubmission"`
	IsActive            bool               `json:"isActive"`
	MaxScore            float64            `json:"maxScore,omitempty"`
	Submissions         []SubmissionRecord `json:"submissions"`
}

// SubmissionRecord is a submission as delivered by the data service.
type SubmissionRecord struct {
	ID             string   `json:"_id,omitempty"`
	Student        string   `json:"student"`
	SubmissionDate string   `json:"submissionDate"`
	Score          *float64 `json:"score,omitempty"`
	GradedAt       *string  `json:"gradedAt,omitempty"`
	AttemptNumber  int      `json:"attemptNumber,omitempty"`
}

// offsetLayouts carry their own offset, in the extended (+07:00) or basic
// (+0700) form.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
}

// localLayouts are read in the caller's location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	DateKeyLayout,
}

// ParseInstant parses an ISO-8601 instant or bare date. Values without an
// offset are read in loc. Unparseable input is an error, never a default.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q is not ISO-8601", raw)
}

// ParsePattern decodes one weekly pattern entry.
func ParsePattern(rec PatternRecord) (MeetingPattern, error) {
	day, err := ParseWeekday(rec.DayOfWeek)
	if err != nil {
		return MeetingPattern{}, err
	}
	start, err := ParseClock(rec.StartTime)
	if err != nil {
		return MeetingPattern{}, fmt.Errorf("startTime: %w", err)
	}
	end, err := ParseClock(rec.EndTime)
	if err != nil {
		return MeetingPattern{}, fmt.Errorf("endTime: %w", err)
	}
	if start >= end {
		return MeetingPattern{}, fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return MeetingPattern{Day: day, Start: start, End: end, Room: strings.TrimSpace(rec.Room)}, nil
}

// DecodeCourse turns a course record into a Course. Malformed dates reject the
// record with a *ValidationError. Malformed or duplicate pattern entries are
// dropped and returned as issues while the rest of the course is kept.
func DecodeCourse(rec CourseRecord, loc *time.Location) (Course, []ValidationIssue, error) {
	var rejected []ValidationIssue
	start, err := ParseInstant(rec.StartDate, loc)
	if err != nil {
		rejected = append(rejected, dateIssue(rec.ID, "startDate", rec.StartDate, err))
	}
	end, err := ParseInstant(rec.EndDate, loc)
	if err != nil {
		rejected = append(rejected, dateIssue(rec.ID, "endDate", rec.EndDate, err))
	}
	if len(rejected) == 0 && start.After(end) {
		rejected = append(rejected, dateIssue(rec.ID, "endDate", rec.EndDate, fmt.Errorf("end date is before start date")))
	}
	if len(rejected) > 0 {
		return Course{}, nil, &ValidationError{Issues: rejected}
	}

	course := Course{
		ID:                   rec.ID,
		Code:                 rec.Code,
		Name:                 rec.Name,
		Instructor:           rec.Instructor,
		Location:             rec.Location,
		StartDate:            start,
		EndDate:              end,
		AdministrativeStatus: ParseAdministrativeStatus(rec.Status),
	}

	var issues []ValidationIssue
	course.Pattern, issues = DecodePattern(rec.ID, rec.Schedule)
	return course, issues, nil
}

// DecodePattern parses the weekly pattern of record recordID. Malformed entries
// and repeats of an earlier (day, start time) pair are dropped and reported.
func DecodePattern(recordID string, schedule []PatternRecord) ([]MeetingPattern, []ValidationIssue) {
	var (
		patterns []MeetingPattern
		issues   []ValidationIssue
	)
	seen := make(map[string]struct{}, len(schedule))
	for i, entry := range schedule {
		pattern, err := ParsePattern(entry)
		if err != nil {
			issues = append(issues, patternIssue(recordID, i, entry.DayOfWeek+" "+entry.StartTime+"-"+entry.EndTime, err.Error()))
			continue
		}
		key := fmt.Sprintf("%d|%d", pattern.Day, pattern.Start)
		if _, dup := seen[key]; dup {
			issues = append(issues, patternIssue(recordID, i, describeEntry(pattern), "duplicate day and start time"))
			continue
		}
		seen[key] = struct{}{}
		patterns = append(patterns, pattern)
	}
	return patterns, issues
}

// DecodeAssignment turns an assignment record into an Assignment. Any malformed
// due, submission or grading date rejects the record.
func DecodeAssignment(rec AssignmentRecord, loc *time.Location) (Assignment, error) {
	var rejected []ValidationIssue
	due, err := ParseInstant(rec.DueDate, loc)
	if err != nil {
		rejected = append(rejected, dateIssue(rec.ID, "dueDate", rec.DueDate, err))
	}

	subs := make([]Submission, 0, len(rec.Submissions))
	for i, sr := range rec.Submissions {
		submitted, err := ParseInstant(sr.SubmissionDate, loc)
		if err != nil {
			issue := dateIssue(rec.ID, "submissions.submissionDate", sr.SubmissionDate, err)
			issue.Index = i
			rejected = append(rejected, issue)
			continue
		}
		sub := Submission{
			ID:             sr.ID,
			AssignmentID:   rec.ID,
			StudentID:      sr.Student,
			SubmissionDate: submitted,
			Score:          sr.Score,
			AttemptNumber:  sr.AttemptNumber,
		}
		if sr.GradedAt != nil && strings.TrimSpace(*sr.GradedAt) != "" {
			graded, err := ParseInstant(*sr.GradedAt, loc)
			if err != nil {
				issue := dateIssue(rec.ID, "submissions.gradedAt", *sr.GradedAt, err)
				issue.Index = i
				rejected = append(rejected, issue)
				continue
			}
			sub.GradedAt = &graded
		}
		subs = append(subs, sub)
	}
	if len(rejected) > 0 {
		return Assignment{}, &ValidationError{Issues: rejected}
	}

	return Assignment{
		ID:                  rec.ID,
		CourseID:            rec.Course,
		CourseName:          rec.CourseName,
		Title:               rec.Title,
		Description:         rec.Description,
		DueDate:             due,
		AllowLateSubmission: rec.AllowLateSubmission,
		IsActive:            rec.IsActive,
		MaxScore:            rec.MaxScore,
		Submissions:         subs,
	}, nil
}
