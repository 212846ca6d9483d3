// Package model defines domain types for notchstat sessions and aggregates.
package model

import "time"

// DateLayout is the calendar-date key format used everywhere: local time,
// lexicographically sortable.
const DateLayout = "2006-01-02"

// DateKey returns the local calendar date of t as a yyyy-MM-dd string.
func DateKey(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// DayStart parses a date key into midnight local time.
func DayStart(key string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, time.Local)
}

// NextDate returns the date key one calendar day after key.
// Returns key unchanged if it does not parse.
func NextDate(key string) string {
	t, err := DayStart(key)
	if err != nil {
		return key
	}
	return DateKey(t.AddDate(0, 0, 1))
}

// DaysBetween returns the number of calendar days from a to b (b - a).
// Returns 0 if either key does not parse.
func DaysBetween(a, b string) int {
	ta, errA := DayStart(a)
	tb, errB := DayStart(b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// DateRange is a closed [From, To] interval of date keys.
// An empty bound means unbounded on that side.
type DateRange struct {
	From string
	To   string
}

// Contains reports whether the date key falls inside the range.
// Date keys compare correctly as strings.
func (r DateRange) Contains(date string) bool {
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool {
	return r.From == "" && r.To == ""
}
