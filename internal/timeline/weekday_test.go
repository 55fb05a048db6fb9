package timeline

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	cases := map[string]Weekday{
		"Monday":   Monday,
		"monday":   Monday,
		" MON ":    Monday,
		"sun":      Sunday,
		"Saturday": Saturday,
		"thu":      Thursday,
	}
	for raw, want := range cases {
		got, err := ParseWeekday(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "Mo", "Mondays", "1"} {
		_, err := ParseWeekday(raw)
		assert.Error(t, err, raw)
	}
}

func TestWeekdayOfMatchesTimePackage(t *testing.T) {
	assert.Equal(t, Monday, WeekdayOf(time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Sunday, WeekdayOf(time.Date(2024, 9, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Weekday(9)", Weekday(9).String())
	assert.Equal(t, Monday, Weekdays[0])
	assert.Equal(t, Sunday, Weekdays[6])
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Hour())
	assert.Equal(t, 5, got.Minute())
	assert.Equal(t, "07:05", got.String())

	for _, raw := range []string{"", "7:05", "24:00", "12:60", "12-30", "ab:cd", "12:300"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

func TestPatternJSONRoundTrip(t *testing.T) {
	pattern := MeetingPattern{Day: Wednesday, Start: Clock(13, 0), End: Clock(14, 30), Room: "B2"}
	raw, err := json.Marshal(pattern)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dayOfWeek":"Wednesday","startTime":"13:00","endTime":"14:30","room":"B2"}`, string(raw))

	var decoded MeetingPattern
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, pattern, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"dayOfWeek":"Someday","startTime":"13:00","endTime":"14:00"}`), &decoded))
}

func TestDateRange(t *testing.T) {
	r := MonthRange(2024, time.February, time.UTC)
	assert.Equal(t, 29, r.Days())
	assert.True(t, r.Contains(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	wib := time.FixedZone("WIB", 7*3600)
	day := DayRange(time.Date(2024, 9, 1, 20, 0, 0, 0, time.UTC), wib)
	assert.Equal(t, "2024-09-02", day.From.Format(DateKeyLayout))
	assert.Equal(t, 1, day.Days())

	clamped := r.Clamp(time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02-10", clamped.From.Format(DateKeyLayout))
	assert.Equal(t, "2024-02-29", clamped.To.Format(DateKeyLayout))

	outside := r.Clamp(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, outside.Empty())
	assert.Equal(t, 0, outside.Days())
}

func TestDateRangeDaysAcrossCenturies(t *testing.T) {
	wide := NewDateRange(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, 3652059, wide.Days())

	leap := NewDateRange(time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), time.UTC)
	assert.Equal(t, 366, leap.Days())

	// A DST change inside the range still counts calendar dates.
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	spring := NewDateRange(time.Date(2024, 3, 9, 12, 0, 0, 0, ny), time.Date(2024, 3, 11, 12, 0, 0, 0, ny), ny)
	assert.Equal(t, 3, spring.Days())
}
