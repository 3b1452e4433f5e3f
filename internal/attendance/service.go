package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rollcall/internal/schedule"
)

// Service merges scan-derived statuses into the daily records.
type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

// NewService creates a service backed by a repository. Day keys are computed in loc.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// MergeScan folds a scan at ts classified as incoming into the person's
// record for ts's local day and returns the resulting status. Repeating the
// call, or delivering a day's scans out of order, converges on the same state.
func (s *Service) MergeScan(ctx context.Context, personID string, ts time.Time, incoming Status) (Status, error) {
	if personID == "" {
		return "", errors.New("person id required")
	}
	if !incoming.FromScan() {
		return "", fmt.Errorf("%w: scans classify as PRESENT or LATE, got %q", ErrInvalidStatus, incoming)
	}
	now := s.now().UTC()
	day := schedule.DayKey(ts, s.loc)

	existing, err := s.repo.Get(ctx, personID, day)
	if err != nil {
		return "", fmt.Errorf("get attendance: %w", err)
	}
	if existing == nil {
		created, err := s.repo.Create(ctx, Record{PersonID: personID, Day: day, Status: incoming, UpdatedAt: now})
		if err == nil {
			return created.Status, nil
		}
		if !errors.Is(err, ErrDuplicate) {
			return "", fmt.Errorf("create attendance: %w", err)
		}
		// Someone else created the day first; merge into theirs.
		if existing, err = s.repo.Get(ctx, personID, day); err != nil {
			return "", fmt.Errorf("get attendance: %w", err)
		}
		if existing == nil {
			return "", fmt.Errorf("attendance for %s on %s vanished after duplicate create", personID, day.Format(schedule.DayLayout))
		}
	}

	return s.escalate(ctx, *existing, incoming, now)
}

const maxEscalateAttempts = 3

func (s *Service) escalate(ctx context.Context, existing Record, incoming Status, now time.Time) (Status, error) {
	for attempt := 0; attempt < maxEscalateAttempts; attempt++ {
		next := Merge(existing.Status, incoming)
		if next == existing.Status {
			return existing.Status, nil
		}
		ok, err := s.repo.UpdateStatus(ctx, StatusChange{
			PersonID: existing.PersonID,
			Day:      existing.Day,
			From:     existing.Status,
			To:       next,
			At:       now,
		})
		if err != nil {
			return "", fmt.Errorf("update attendance: %w", err)
		}
		if ok {
			return next, nil
		}
		// The row changed underneath us (an override or a parallel escalation).
		current, err := s.repo.Get(ctx, existing.PersonID, existing.Day)
		if err != nil {
			return "", fmt.Errorf("get attendance: %w", err)
		}
		if current == nil {
			return "", fmt.Errorf("attendance for %s on %s vanished during update", existing.PersonID, existing.Day.Format(schedule.DayLayout))
		}
		existing = *current
	}
	return "", fmt.Errorf("attendance for %s on %s kept changing during update", existing.PersonID, existing.Day.Format(schedule.DayLayout))
}
