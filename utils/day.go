// utils/day.go
package utils

import (
	"fmt"
	"time"
)

// DayLayout is the ISO-8601 calendar date used as the key of every habit log.
const DayLayout = "2006-01-02"

// ParseDay parses an ISO-8601 date into UTC midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDay renders the calendar date of t as seen in t's own location.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// Today returns the calendar day of now as UTC midnight.
func Today(now time.Time) time.Time {
	return DayOf(now)
}

// DayOf truncates t to its calendar date and pins it to UTC midnight.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a day key by n calendar days.
func AddDays(day time.Time, n int) time.Time {
	return day.AddDate(0, 0, n)
}

// DaysBetween returns b - a in whole calendar days.
func DaysBetween(a, b time.Time) int {
	a, b = DayOf(a), DayOf(b)
	return int(b.Sub(a).Hours() / 24)
}

// StartOfWeek returns the Monday of day's week.
func StartOfWeek(day time.Time) time.Time {
	day = DayOf(day)
	offset := (int(day.Weekday()) + 6) % 7 // Mon=0..Sun=6
	return day.AddDate(0, 0, -offset)
}
