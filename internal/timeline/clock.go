package timeline

import (
	"fmt"
)

const minutesPerDay = 24 * 60

// ClockTime is a wall-clock time of day stored as minutes since midnight.
type ClockTime int

// Clock builds a ClockTime from an hour and minute.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses a strict "HH:MM" 24-hour string.
func ParseClock(raw string) (ClockTime, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return 0, fmt.Errorf("time %q is not HH:MM", raw)
	}
	hour, ok := twoDigits(raw[0], raw[1])
	if !ok || hour > 23 {
		return 0, fmt.Errorf("time %q has an invalid hour", raw)
	}
	minute, ok := twoDigits(raw[3], raw[4])
	if !ok || minute > 59 {
		return 0, fmt.Errorf("time %q has an invalid minute", raw)
	}
	return Clock(hour, minute), nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// Valid reports whether c falls within a single day.
func (c ClockTime) Valid() bool {
	return c >= 0 && c < minutesPerDay
}

// Hour returns the hour component.
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText encodes the time as HH:MM.
func (c ClockTime) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid clock time %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes an HH:MM string.
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
