package schedule

import (
	"fmt"
	"sort"
	"time"
)

// CloseTime is a weekly instant, in local wall-clock terms, at which an
// absence sweep is due. DaysAfter counts the days between the window's own
// day and the instant; it is 1 when end plus delay crosses midnight.
type CloseTime struct {
	Weekday   time.Weekday
	Hour      int
	Minute    int
	DaysAfter int
}

// CronSpec renders c as a five-field cron expression.
func (c CloseTime) CronSpec() string {
	return fmt.Sprintf("%d %d * * %d", c.Minute, c.Hour, int(c.Weekday))
}

func (c CloseTime) String() string {
	return fmt.Sprintf("%s %02d:%02d", c.Weekday, c.Hour, c.Minute)
}

// CloseTimes returns the distinct instants at which sweeps fire: each active
// rule's end plus delay, rounded up to the minute. Only the rule the resolver
// would pick for a weekday contributes. A time that crosses midnight moves to
// the following weekday.
func CloseTimes(rules []Rule, delay time.Duration) []CloseTime {
	delayMin := int((delay + time.Minute - 1) / time.Minute)
	if delay <= 0 {
		delayMin = 0
	}

	chosen := map[int]Rule{}
	for _, r := range rules {
		if !r.Active || Validate(r) != nil {
			continue
		}
		if cur, ok := chosen[r.DayOfWeek]; !ok || r.StartMinutes < cur.StartMinutes {
			chosen[r.DayOfWeek] = r
		}
	}

	seen := map[CloseTime]struct{}{}
	out := make([]CloseTime, 0, len(chosen))
	for _, r := range chosen {
		total := r.EndMinutes + delayMin
		ct := CloseTime{
			Weekday:   time.Weekday((r.DayOfWeek + total/MinutesPerDay) % 7),
			Hour:      (total % MinutesPerDay) / 60,
			Minute:    total % 60,
			DaysAfter: total / MinutesPerDay,
		}
		if _, dup := seen[ct]; dup {
			continue
		}
		seen[ct] = struct{}{}
		out = append(out, ct)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.Minute < b.Minute
	})
	return out
}
