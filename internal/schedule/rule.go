package schedule

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MinutesPerDay bounds StartMinutes and EndMinutes.
const MinutesPerDay = 24 * 60

const maxLabelLen = 100

// ErrInvalidRule is returned by Validate.
var ErrInvalidRule = errors.New("invalid schedule rule")

// Rule is one weekly class window. Minutes are counted from local midnight.
type Rule struct {
	ID           int64   `yaml:"id,omitempty" json:"id"`
	DayOfWeek    int     `yaml:"day_of_week" json:"day_of_week"`
	StartMinutes int     `yaml:"start_minutes" json:"start_minutes"`
	EndMinutes   int     `yaml:"end_minutes" json:"end_minutes"`
	Active       bool    `yaml:"active" json:"active"`
	Label        *string `yaml:"label,omitempty" json:"label,omitempty"`
}

// Weekday returns DayOfWeek as a time.Weekday (0 = Sunday).
func (r Rule) Weekday() time.Weekday { return time.Weekday(r.DayOfWeek) }

// Validate checks the bounds a rule must satisfy before it can produce a window.
func Validate(r Rule) error {
	switch {
	case r.DayOfWeek < 0 || r.DayOfWeek > 6:
		return fmt.Errorf("%w: day_of_week %d out of [0,6]", ErrInvalidRule, r.DayOfWeek)
	case r.StartMinutes < 0 || r.StartMinutes >= MinutesPerDay:
		return fmt.Errorf("%w: start_minutes %d out of [0,%d)", ErrInvalidRule, r.StartMinutes, MinutesPerDay)
	case r.EndMinutes <= 0 || r.EndMinutes > MinutesPerDay:
		return fmt.Errorf("%w: end_minutes %d out of (0,%d]", ErrInvalidRule, r.EndMinutes, MinutesPerDay)
	case r.EndMinutes <= r.StartMinutes:
		return fmt.Errorf("%w: end_minutes must be greater than start_minutes", ErrInvalidRule)
	case r.Label != nil && utf8.RuneCountInString(*r.Label) > maxLabelLen:
		return fmt.Errorf("%w: label longer than %d characters", ErrInvalidRule, maxLabelLen)
	}
	return nil
}

// Window is the local start/end pair during which attendance is scored.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor builds the window of r on day's calendar date in loc.
func WindowFor(r Rule, day time.Time, loc *time.Location) Window {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, r.StartMinutes/60, r.StartMinutes%60, 0, 0, loc)
	var end time.Time
	if r.EndMinutes == MinutesPerDay {
		end = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	} else {
		end = time.Date(y, m, d, r.EndMinutes/60, r.EndMinutes%60, 0, 0, loc)
	}
	return Window{Start: start, End: end}
}
