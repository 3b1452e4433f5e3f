package attendance

import (
	"context"
	"fmt"
	"time"

	"rollcall/internal/schedule"
)

// Sweep outcomes reported when nothing was created.
const (
	ReasonNoClassToday = "no-class-today"
	ReasonTooEarly     = "too-early"
	ReasonAllMarked    = "all-marked"
)

// SweepResult reports what a sweep did.
type SweepResult struct {
	Created int    `json:"created"`
	Reason  string `json:"reason,omitempty"`
}

// WindowResolver resolves the class window of a local day.
type WindowResolver interface {
	Resolve(ctx context.Context, t time.Time) (*schedule.Window, error)
	Location() *time.Location
}

// RosterLister lists every person on the roster.
type RosterLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Sweeper back-fills ABSENT for people with no record once a window has closed.
type Sweeper struct {
	repo     Repository
	roster   RosterLister
	resolver WindowResolver
	delay    time.Duration
}

// NewSweeper creates a sweeper that waits delay after a window's end.
func NewSweeper(repo Repository, roster RosterLister, resolver WindowResolver, delay time.Duration) *Sweeper {
	return &Sweeper{repo: repo, roster: roster, resolver: resolver, delay: delay}
}

// SweepAbsences sweeps the local day of ref.
func (s *Sweeper) SweepAbsences(ctx context.Context, ref time.Time) (SweepResult, error) {
	return s.SweepDay(ctx, ref, ref)
}

// SweepDay sweeps the local day of day, using ref as the single "now" of the
// operation. It is used directly when the cutoff of a window falls on the
// following calendar day.
func (s *Sweeper) SweepDay(ctx context.Context, day, ref time.Time) (SweepResult, error) {
	w, err := s.resolver.Resolve(ctx, day)
	if err != nil {
		return SweepResult{}, fmt.Errorf("resolve window: %w", err)
	}
	if w == nil {
		return SweepResult{Reason: ReasonNoClassToday}, nil
	}
	if cutoff := w.End.Add(s.delay); ref.Before(cutoff) {
		return SweepResult{Reason: ReasonTooEarly}, nil
	}

	key := schedule.DayKey(w.Start, s.resolver.Location())
	marked, err := s.repo.PersonIDsOn(ctx, key)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list recorded people: %w", err)
	}
	have := make(map[string]struct{}, len(marked))
	for _, id := range marked {
		have[id] = struct{}{}
	}

	everyone, err := s.roster.ListIDs(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list roster: %w", err)
	}

	at := ref.UTC()
	var missing []Record
	for _, id := range everyone {
		if _, ok := have[id]; ok {
			continue
		}
		have[id] = struct{}{}
		missing = append(missing, Record{PersonID: id, Day: key, Status: StatusAbsent, UpdatedAt: at})
	}
	if len(missing) == 0 {
		return SweepResult{Reason: ReasonAllMarked}, nil
	}

	created, err := s.repo.CreateIfAbsent(ctx, missing)
	if err != nil {
		return SweepResult{}, fmt.Errorf("create absences: %w", err)
	}
	return SweepResult{Created: created}, nil
}
