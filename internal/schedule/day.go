package schedule

import (
	"fmt"
	"time"
)

// DayLayout is the textual form of a day key.
const DayLayout = "2006-01-02"

// LocalMidnight returns 00:00 of t's calendar day in loc.
func LocalMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayKey returns the storage key for t's local calendar day: the same
// year/month/day at UTC midnight. Keys compare and export identically
// regardless of the zone the process runs in.
func DayKey(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDayKey parses YYYY-MM-DD into a day key.
func ParseDayKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return t, nil
}

// MonthRange returns the half-open [from, to) day-key range of a calendar month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
