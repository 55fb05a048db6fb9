package timeline

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fallCourse() Course {
	return Course{
		ID:        "c1",
		Name:      "Algorithms",
		StartDate: time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Pattern:   []MeetingPattern{{Day: Monday, Start: Clock(7, 0), End: Clock(9, 30), Room: "A1"}},
	}
}

func TestDeriveCourseStatusByTime(t *testing.T) {
	course := fallCourse()
	cases := []struct {
		name string
		now  time.Time
		want CourseStatus
	}{
		{"before start", time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), CourseUpcoming},
		{"at start", course.StartDate, CourseOngoing},
		{"mid course", time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC), CourseOngoing},
		{"at end", course.EndDate, CourseOngoing},
		{"after end", course.EndDate.Add(time.Second), CourseCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveCourseStatus(course, tc.now))
		})
	}
}

func TestBareEndDateCompletesAtMidnightOfLastDay(t *testing.T) {
	course := fallCourse()
	course.EndDate = time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC) // a Monday
	now := time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, CourseCompleted, DeriveCourseStatus(course, now))

	occurrences, issues := Materialize([]Course{course}, DayRange(now, time.UTC), now)
	assert.Empty(t, issues)
	require.Len(t, occurrences, 1)
	assert.Equal(t, CourseCompleted, occurrences[0].Status)
}

func TestDeriveCourseStatusAdministrativeOverride(t *testing.T) {
	course := fallCourse()
	now := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	course.AdministrativeStatus = AdminStatusCancelled
	assert.Equal(t, CourseCancelled, DeriveCourseStatus(course, now))

	course.AdministrativeStatus = AdminStatusPaused
	assert.Equal(t, CoursePaused, DeriveCourseStatus(course, now))
	assert.Equal(t, CoursePaused, DeriveCourseStatus(course, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseAdministrativeStatusIgnoresLifecycleValues(t *testing.T) {
	assert.Equal(t, AdminStatusCancelled, ParseAdministrativeStatus(" Cancelled "))
	assert.Equal(t, AdminStatusPaused, ParseAdministrativeStatus("paused"))
	assert.Equal(t, AdminStatusNone, ParseAdministrativeStatus("active"))
	assert.Equal(t, AdminStatusNone, ParseAdministrativeStatus("completed"))
}

func TestDescribeCourseUpcoming(t *testing.T) {
	course := fallCourse()
	now := course.StartDate.Add(-3*24*time.Hour - time.Hour)

	tl := DescribeCourse(course, now)
	require.Equal(t, CourseUpcoming, tl.Status)
	assert.Equal(t, 4, tl.DaysUntilStart)
	assert.True(t, tl.IsStartingSoon)
	assert.False(t, tl.IsEndingSoon)
	assert.False(t, tl.IsRecentlyCompleted)
	assert.Equal(t, 138, tl.DurationDays)
}

func TestDescribeCourseEndingSoonAndRecent(t *testing.T) {
	course := fallCourse()

	ending := DescribeCourse(course, course.EndDate.Add(-48*time.Hour))
	assert.Equal(t, CourseOngoing, ending.Status)
	assert.Equal(t, 2, ending.DaysUntilEnd)
	assert.True(t, ending.IsEndingSoon)
	assert.False(t, ending.IsStartingSoon)

	done := DescribeCourse(course, course.EndDate.Add(3*24*time.Hour))
	assert.Equal(t, CourseCompleted, done.Status)
	assert.Equal(t, 3, done.DaysSinceEnd)
	assert.True(t, done.IsRecentlyCompleted)

	old := DescribeCourse(course, course.EndDate.Add(30*24*time.Hour))
	assert.False(t, old.IsRecentlyCompleted)
}

func TestDescribeCourseOverrideClearsFlags(t *testing.T) {
	course := fallCourse()
	course.AdministrativeStatus = AdminStatusPaused

	tl := DescribeCourse(course, course.StartDate.Add(-24*time.Hour))
	assert.Equal(t, CoursePaused, tl.Status)
	assert.False(t, tl.IsStartingSoon)
	assert.Equal(t, 1, tl.DaysUntilStart)
}

func TestCourseStatusMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	rank := map[CourseStatus]int{CourseUpcoming: 0, CourseOngoing: 1, CourseCompleted: 2}

	properties.Property("status never moves backwards as now advances", prop.ForAll(
		func(startOffset, length int, steps []int) bool {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			course := Course{
				ID:        "p",
				StartDate: base.Add(time.Duration(startOffset) * time.Hour),
				EndDate:   base.Add(time.Duration(startOffset+length) * time.Hour),
			}
			now := base.Add(-time.Duration(1000) * time.Hour)
			prev := rank[DeriveCourseStatus(course, now)]
			if prev != 0 {
				return false
			}
			for _, step := range steps {
				now = now.Add(time.Duration(step) * time.Minute)
				cur := rank[DeriveCourseStatus(course, now)]
				if cur < prev {
					return false
				}
				prev = cur
			}
			return true
		},
		gen.IntRange(0, 500),
		gen.IntRange(0, 500),
		gen.SliceOf(gen.IntRange(1, 6000)),
	))

	properties.Property("soon flags agree with the status", prop.ForAll(
		func(offsetHours int) bool {
			course := fallCourse()
			now := course.StartDate.Add(time.Duration(offsetHours) * time.Hour)
			tl := DescribeCourse(course, now)
			if tl.IsStartingSoon && tl.Status != CourseUpcoming {
				return false
			}
			if tl.IsEndingSoon && tl.Status != CourseOngoing {
				return false
			}
			return !tl.IsRecentlyCompleted || tl.Status == CourseCompleted
		},
		gen.IntRange(-24*60, 24*200),
	))

	properties.TestingRun(t)
}
