package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RuleSource yields the active rules for a weekday. Implementations are
// read-only views over the schedule configuration.
type RuleSource interface {
	ActiveRules(ctx context.Context, weekday time.Weekday) ([]Rule, error)
}

// Resolver maps a local calendar day to at most one window.
type Resolver struct {
	rules  RuleSource
	loc    *time.Location
	logger *slog.Logger
}

// NewResolver creates a resolver reading rules from src and computing days in loc.
func NewResolver(src RuleSource, loc *time.Location, logger *slog.Logger) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{rules: src, loc: loc, logger: logger}
}

// Location returns the zone every local day is computed in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns the window for t's local day, or nil when no active rule
// applies (a rest day). Only the date and weekday of t matter. When several
// active rules share the weekday, the one with the earliest start wins.
func (r *Resolver) Resolve(ctx context.Context, t time.Time) (*Window, error) {
	local := t.In(r.loc)
	rules, err := r.rules.ActiveRules(ctx, local.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", local.Weekday(), err)
	}

	var chosen *Rule
	for i := range rules {
		rule := rules[i]
		if !rule.Active || rule.Weekday() != local.Weekday() {
			continue
		}
		if err := Validate(rule); err != nil {
			r.logger.Warn("skipping invalid schedule rule", "rule_id", rule.ID, "err", err)
			continue
		}
		if chosen == nil || rule.StartMinutes < chosen.StartMinutes {
			chosen = &rule
		}
	}
	if chosen == nil {
		return nil, nil
	}

	w := WindowFor(*chosen, local, r.loc)
	return &w, nil
}

// Static is an in-memory RuleSource.
type Static []Rule

// ActiveRules returns the active rules of weekday.
func (s Static) ActiveRules(_ context.Context, weekday time.Weekday) ([]Rule, error) {
	var out []Rule
	for _, r := range s {
		if r.Active && r.Weekday() == weekday {
			out = append(out, r)
		}
	}
	return out, nil
}

// AllActive returns every active rule.
func (s Static) AllActive(context.Context) ([]Rule, error) {
	var out []Rule
	for _, r := range s {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}
