package types

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical on-disk date layout. Older data may use the
// dashed variant; ParseDate accepts both.
const DateFormat = "2006.01.02"

const legacyDateFormat = "2006-01-02"

// ParseDate parses a logbook date string. Both "2006.01.02" and
// "2006-01-02" are accepted for backward compatibility with existing data.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "---" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{DateFormat, legacyDateFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// FormatDate renders a time in the canonical date layout.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// DaysUntil returns the number of whole calendar days from today until the
// given date. Negative values mean the date is in the past.
func DaysUntil(date, today time.Time) int {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(t).Hours() / 24)
}
