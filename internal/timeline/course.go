package timeline

import (
	"strings"
	"time"
)

// AdministrativeStatus is a manually set status that overrides time-based derivation.
type AdministrativeStatus string

const (
	AdminStatusNone      AdministrativeStatus = ""
	AdminStatusCancelled AdministrativeStatus = "cancelled"
	AdminStatusPaused    AdministrativeStatus = "paused"
)

// ParseAdministrativeStatus maps stored values onto an override. Values other than
// cancelled and paused carry no override: lifecycle states are always derived.
func ParseAdministrativeStatus(raw string) AdministrativeStatus {
	switch AdministrativeStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case AdminStatusCancelled:
		return AdminStatusCancelled
	case AdminStatusPaused:
		return AdminStatusPaused
	default:
		return AdminStatusNone
	}
}

// Valid reports whether s is an override value (or unset).
func (s AdministrativeStatus) Valid() bool {
	return s == AdminStatusNone || s == AdminStatusCancelled || s == AdminStatusPaused
}

// CourseStatus is the derived lifecycle state of a course.
type CourseStatus string

const (
	CourseUpcoming  CourseStatus = "upcoming"
	CourseOngoing   CourseStatus = "ongoing"
	CourseCompleted CourseStatus = "completed"
	CourseCancelled CourseStatus = "cancelled"
	CoursePaused    CourseStatus = "paused"
)

// MeetingPattern is one entry of a course's weekly recurring schedule.
type MeetingPattern struct {
	Day   Weekday   `json:"dayOfWeek"`
	Start ClockTime `json:"startTime"`
	End   ClockTime `json:"endTime"`
	Room  string    `json:"room,omitempty"`
}

// Course is the read-only view of a course this package derives from.
type Course struct {
	ID                   string               `json:"id"`
	Code                 string               `json:"code,omitempty"`
	Name                 string               `json:"name"`
	Instructor           string               `json:"instructor,omitempty"`
	Location             string               `json:"location,omitempty"`
	StartDate            time.Time            `json:"startDate"`
	EndDate              time.Time            `json:"endDate"`
	Pattern              []MeetingPattern     `json:"schedule"`
	AdministrativeStatus AdministrativeStatus `json:"administrativeStatus,omitempty"`
}

// SoonThreshold is the window used by the starting-soon, ending-soon and
// recently-completed flags.
const SoonThreshold = 7 * 24 * time.Hour

const day = 24 * time.Hour

// DeriveCourseStatus computes the lifecycle status of course at now.
func DeriveCourseStatus(course Course, now time.Time) CourseStatus {
	switch course.AdministrativeStatus {
	case AdminStatusCancelled:
		return CourseCancelled
	case AdminStatusPaused:
		return CoursePaused
	}
	return phase(course, now)
}

func phase(course Course, now time.Time) CourseStatus {
	switch {
	case now.Before(course.StartDate):
		return CourseUpcoming
	case now.After(course.EndDate):
		return CourseCompleted
	default:
		return CourseOngoing
	}
}

// CourseTimeline bundles a course status with auxiliary quantities computed from the same instant.
type CourseTimeline struct {
	Status              CourseStatus `json:"status"`
	DaysUntilStart      int          `json:"daysUntilStart"`
	DaysUntilEnd        int          `json:"daysUntilEnd"`
	DaysSinceEnd        int          `json:"daysSinceEnd"`
	DurationDays        int          `json:"durationDays"`
	IsStartingSoon      bool         `json:"isStartingSoon"`
	IsEndingSoon        bool         `json:"isEndingSoon"`
	IsRecentlyCompleted bool         `json:"isRecentlyCompleted"`
}

// DescribeCourse derives the status and auxiliary quantities of course at now.
// Under an administrative override the soon/recent flags are all false.
func DescribeCourse(course Course, now time.Time) CourseTimeline {
	tl := CourseTimeline{
		Status:       DeriveCourseStatus(course, now),
		DurationDays: int(course.EndDate.Sub(course.StartDate).Round(day) / day),
	}

	p := phase(course, now)
	switch p {
	case CourseUpcoming:
		tl.DaysUntilStart = ceilDays(course.StartDate.Sub(now))
		tl.DaysUntilEnd = ceilDays(course.EndDate.Sub(now))
	case CourseOngoing:
		tl.DaysUntilEnd = ceilDays(course.EndDate.Sub(now))
	case CourseCompleted:
		tl.DaysSinceEnd = int(now.Sub(course.EndDate) / day)
	}

	if tl.Status != p {
		return tl
	}
	tl.IsStartingSoon = p == CourseUpcoming && course.StartDate.Sub(now) <= SoonThreshold
	tl.IsEndingSoon = p == CourseOngoing && course.EndDate.Sub(now) <= SoonThreshold
	tl.IsRecentlyCompleted = p == CourseCompleted && now.Sub(course.EndDate) <= SoonThreshold
	return tl
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := d / day
	if d%day != 0 {
		n++
	}
	return int(n)
}
