package attendance

import (
	"context"
	"time"
)

// Record is the single attendance row of a person on a day. Day is a
// schedule.DayKey value.
type Record struct {
	PersonID  string    `json:"person_id"`
	Day       time.Time `json:"day"`
	Status    Status    `json:"status"`
	Note      *string   `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusChange is a guarded status update: it applies only while the stored
// status still equals From.
type StatusChange struct {
	PersonID string
	Day      time.Time
	From     Status
	To       Status
	At       time.Time
}

// Repository is the persistence boundary used by reconciliation and sweeps.
// (PersonID, Day) is unique.
type Repository interface {
	// Get returns nil when no record exists.
	Get(ctx context.Context, personID string, day time.Time) (*Record, error)
	// Create fails with ErrDuplicate when the key is taken.
	Create(ctx context.Context, rec Record) (Record, error)
	// UpdateStatus reports whether the guarded change was applied.
	UpdateStatus(ctx context.Context, change StatusChange) (bool, error)
	// CreateIfAbsent inserts every record whose key is free and returns how many were written.
	CreateIfAbsent(ctx context.Context, recs []Record) (int, error)
	// PersonIDsOn lists everyone holding a record on day.
	PersonIDsOn(ctx context.Context, day time.Time) ([]string, error)
}

// StatusCount is one group of CountByStatus.
type StatusCount struct {
	PersonID string
	Status   Status
	Count    int
}

// AdminRepository adds the administrative operations that bypass merging.
type AdminRepository interface {
	Repository
	Upsert(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, personID string, day time.Time) error
	CountByStatus(ctx context.Context, from, to time.Time) ([]StatusCount, error)
	// ListRange returns every record with from <= day < to ordered by day, then person.
	ListRange(ctx context.Context, from, to time.Time) ([]Record, error)
}
