package timeline

import "time"

// DateKeyLayout formats calendar dates used as grouping keys.
const DateKeyLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates, both ends normalised to
// midnight in a single location. A range whose From is after To is empty.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LocalDate returns midnight of t's calendar date in loc.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DateKey formats the calendar date of t in loc as YYYY-MM-DD.
func DateKey(t time.Time, loc *time.Location) string {
	return LocalDate(t, loc).Format(DateKeyLayout)
}

// NewDateRange normalises from and to to calendar dates in loc.
func NewDateRange(from, to time.Time, loc *time.Location) DateRange {
	return DateRange{From: LocalDate(from, loc), To: LocalDate(to, loc)}
}

// DayRange covers the single calendar date of day.
func DayRange(day time.Time, loc *time.Location) DateRange {
	return NewDateRange(day, day, loc)
}

// MonthRange covers every date of the given month.
func MonthRange(year int, month time.Month, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	return DateRange{From: first, To: last}
}

// Location returns the location both bounds are expressed in.
func (r DateRange) Location() *time.Location {
	if r.From.IsZero() {
		return time.UTC
	}
	return r.From.Location()
}

// Empty reports whether the range contains no dates.
func (r DateRange) Empty() bool {
	return r.From.After(r.To)
}

// Days returns the number of calendar dates in the range.
func (r DateRange) Days() int {
	if r.Empty() {
		return 0
	}
	return int(civilDay(r.To)-civilDay(r.From)) + 1
}

// civilDay numbers the calendar date of t in its own location, counting
// whole days since the Unix epoch.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

const secondsPerDay = 24 * 60 * 60

// Contains reports whether the calendar date of t (in the range's location) lies in the range.
func (r DateRange) Contains(t time.Time) bool {
	d := LocalDate(t, r.Location())
	return !d.Before(r.From) && !d.After(r.To)
}

// Clamp intersects the range with the calendar dates spanned by [start, end].
func (r DateRange) Clamp(start, end time.Time) DateRange {
	loc := r.Location()
	from := LocalDate(start, loc)
	to := LocalDate(end, loc)
	if from.Before(r.From) {
		from = r.From
	}
	if to.After(r.To) {
		to = r.To
	}
	return DateRange{From: from, To: to}
}
