package attendance

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"rollcall/internal/schedule"
)

// PersonSummary counts one person's statuses over a period.
type PersonSummary struct {
	PersonID   string `json:"person_id"`
	Present    int    `json:"present"`
	Absent     int    `json:"absent"`
	Late       int    `json:"late"`
	Excused    int    `json:"excused"`
	Total      int    `json:"total"`
	Percentage int    `json:"attendance_pct"`
}

// Admin exposes administrative corrections and reports. Overrides written
// here replace whatever the device produced.
type Admin struct {
	repo   AdminRepository
	roster RosterLister
	now    func() time.Time
}

// NewAdmin creates the administrative service.
func NewAdmin(repo AdminRepository, roster RosterLister) *Admin {
	return &Admin{repo: repo, roster: roster, now: time.Now}
}

// SetDay writes status (and note) for personID on day, a schedule.DayKey.
// Repositories that enforce the roster fail with ErrUnknownPerson.
func (a *Admin) SetDay(ctx context.Context, personID string, day time.Time, status Status, note *string) (Record, error) {
	if personID == "" {
		return Record{}, errors.New("person id required")
	}
	if !status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	return a.repo.Upsert(ctx, Record{
		PersonID:  personID,
		Day:       day.UTC(),
		Status:    status,
		Note:      note,
		UpdatedAt: a.now().UTC(),
	})
}

// ClearDay deletes the record of personID on day.
func (a *Admin) ClearDay(ctx context.Context, personID string, day time.Time) error {
	return a.repo.Delete(ctx, personID, day.UTC())
}

// MonthRecords lists every day record of the given month.
func (a *Admin) MonthRecords(ctx context.Context, year int, month time.Month) ([]Record, error) {
	from, to := schedule.MonthRange(year, month)
	return a.repo.ListRange(ctx, from, to)
}

// MonthSummary counts statuses for every roster member in the given month.
func (a *Admin) MonthSummary(ctx context.Context, year int, month time.Month) ([]PersonSummary, error) {
	ids, err := a.roster.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	from, to := schedule.MonthRange(year, month)
	counts, err := a.repo.CountByStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byPerson := make(map[string]*PersonSummary, len(ids))
	out := make([]PersonSummary, len(ids))
	for i, id := range ids {
		out[i].PersonID = id
		byPerson[id] = &out[i]
	}
	for _, c := range counts {
		s, ok := byPerson[c.PersonID]
		if !ok {
			continue
		}
		switch c.Status {
		case StatusPresent:
			s.Present += c.Count
		case StatusAbsent:
			s.Absent += c.Count
		case StatusLate:
			s.Late += c.Count
		case StatusExcused:
			s.Excused += c.Count
		}
	}
	for i := range out {
		s := &out[i]
		s.Total = s.Present + s.Absent + s.Late + s.Excused
		if s.Total > 0 {
			s.Percentage = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}
