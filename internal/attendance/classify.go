package attendance

import (
	"time"

	"rollcall/internal/schedule"
)

// Classify decides the status of a scan at ts against w. It returns false
// when w is nil: scans on days without a class are never recorded.
// Scans after the window has closed still count as LATE.
func Classify(ts time.Time, w *schedule.Window, grace time.Duration) (Status, bool) {
	if w == nil {
		return "", false
	}
	graceEnd := w.Start.Add(grace)
	if !ts.After(graceEnd) {
		return StatusPresent, true
	}
	return StatusLate, true
}

// Classifier carries the process-wide classification policy.
type Classifier struct {
	Grace time.Duration
	// IgnoreAfterClose drops scans after the window end instead of counting them LATE.
	IgnoreAfterClose bool
}

// Classify applies the policy to a scan at ts.
func (c Classifier) Classify(ts time.Time, w *schedule.Window) (Status, bool) {
	if c.IgnoreAfterClose && w != nil && ts.After(w.End) {
		return "", false
	}
	return Classify(ts, w, c.Grace)
}
