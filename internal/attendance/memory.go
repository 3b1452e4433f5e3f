package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

type recordKey struct {
	personID string
	day      string
}

func keyOf(personID string, day time.Time) recordKey {
	return recordKey{personID: personID, day: day.UTC().Format(time.DateOnly)}
}

// MemoryRepository is a mutex-guarded AdminRepository for tests and local runs.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[recordKey]Record
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[recordKey]Record{}}
}

func (m *MemoryRepository) Get(_ context.Context, personID string, day time.Time) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[keyOf(personID, day)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryRepository) Create(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(rec.PersonID, rec.Day)
	if _, ok := m.records[k]; ok {
		return Record{}, ErrDuplicate
	}
	m.records[k] = rec
	return rec, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, c StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(c.PersonID, c.Day)
	rec, ok := m.records[k]
	if !ok || rec.Status != c.From {
		return false, nil
	}
	rec.Status = c.To
	rec.UpdatedAt = c.At
	m.records[k] = rec
	return true, nil
}

func (m *MemoryRepository) CreateIfAbsent(_ context.Context, recs []Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, rec := range recs {
		k := keyOf(rec.PersonID, rec.Day)
		if _, ok := m.records[k]; ok {
			continue
		}
		m.records[k] = rec
		created++
	}
	return created, nil
}

func (m *MemoryRepository) PersonIDsOn(_ context.Context, day time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := day.UTC().Format(time.DateOnly)
	var ids []string
	for k := range m.records {
		if k.day == want {
			ids = append(ids, k.personID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryRepository) Upsert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[keyOf(rec.PersonID, rec.Day)] = rec
	return rec, nil
}

func (m *MemoryRepository) Delete(_ context.Context, personID string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(personID, day)
	if _, ok := m.records[k]; !ok {
		return ErrNotFound
	}
	delete(m.records, k)
	return nil
}

func (m *MemoryRepository) CountByStatus(_ context.Context, from, to time.Time) ([]StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type group struct {
		personID string
		status   Status
	}
	counts := map[group]int{}
	for _, rec := range m.records {
		if rec.Day.Before(from) || !rec.Day.Before(to) {
			continue
		}
		counts[group{rec.PersonID, rec.Status}]++
	}
	out := make([]StatusCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, StatusCount{PersonID: g.personID, Status: g.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonID != out[j].PersonID {
			return out[i].PersonID < out[j].PersonID
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

func (m *MemoryRepository) ListRange(_ context.Context, from, to time.Time) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.Day.Before(from) || !rec.Day.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.Before(out[j].Day)
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out, nil
}

// Len returns the number of stored records.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
