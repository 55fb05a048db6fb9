package timeline

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the tagged weekday used by weekly meeting patterns. Values line up
// with time.Weekday so conversion is a cast.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Weekdays lists every weekday starting on Monday, the order schedule views render in.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf returns the weekday of t in its own location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

// Valid reports whether w is one of the seven weekdays.
func (w Weekday) Valid() bool {
	return w >= Sunday && w <= Saturday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	return weekdayNames[w]
}

// ParseWeekday accepts full English names and three-letter abbreviations, case-insensitively.
func ParseWeekday(raw string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return 0, fmt.Errorf("weekday is empty")
	}
	for i, candidate := range weekdayNames {
		lower := strings.ToLower(candidate)
		if name == lower || name == lower[:3] {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", raw)
}

// MarshalText encodes the weekday by name.
func (w Weekday) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(w))
	}
	return []byte(w.String()), nil
}

// UnmarshalText decodes a weekday name.
func (w *Weekday) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
