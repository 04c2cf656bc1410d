package domain

import (
	"fmt"
	"time"
)

// operativeDateLayout is the canonical textual form of an operative date.
const operativeDateLayout = "2006-01-02"

// OperativeDate identifies a business day ("YYYY-MM-DD"). A business day does
// not match the calendar day: everything before the configured cutoff hour
// still belongs to the previous date, so a sale at 01:30 counts for the
// evening that started it.
type OperativeDate string

// OperativeDateOf derives the operative date of an instant. The instant is
// converted to loc, and when its hour is before cutoffHour the previous
// calendar date is returned.
func OperativeDateOf(t time.Time, loc *time.Location, cutoffHour int) OperativeDate {
	local := t.In(loc)
	if local.Hour() < cutoffHour {
		local = local.AddDate(0, 0, -1)
	}
	return OperativeDate(local.Format(operativeDateLayout))
}

// ParseOperativeDate validates a textual operative date.
func ParseOperativeDate(s string) (OperativeDate, error) {
	if _, err := time.Parse(operativeDateLayout, s); err != nil {
		return "", fmt.Errorf("invalid operative date %q: %w", s, err)
	}
	return OperativeDate(s), nil
}

// Window returns the half-open instant range [start, end) covered by the
// operative date: from cutoffHour on the date itself until cutoffHour on the
// next calendar day, both in loc.
func (d OperativeDate) Window(loc *time.Location, cutoffHour int) (time.Time, time.Time) {
	day, err := time.ParseInLocation(operativeDateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, time.Time{}
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), cutoffHour, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (d OperativeDate) String() string { return string(d) }
