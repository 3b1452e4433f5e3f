package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the attendance outcome of one person on one day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusLate    Status = "LATE"
	StatusAbsent  Status = "ABSENT"
	StatusExcused Status = "EXCUSED"
)

var (
	ErrInvalidStatus = errors.New("invalid attendance status")
	ErrDuplicate     = errors.New("attendance record already exists")
	ErrNotFound      = errors.New("attendance record not found")
	ErrUnknownPerson = errors.New("person not on roster")
)

// ParseStatus accepts any casing of the four statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return true
	}
	return false
}

// Absorbing reports whether scans can never change s.
func (s Status) Absorbing() bool {
	return s == StatusAbsent || s == StatusExcused
}

// FromScan reports whether s can be produced by classifying a scan.
func (s Status) FromScan() bool {
	return s == StatusPresent || s == StatusLate
}

// Merge returns the status a day ends up with when a scan classified as
// incoming meets the existing one. ABSENT and EXCUSED absorb every scan;
// PRESENT escalates to LATE and nothing ever moves back.
func Merge(existing, incoming Status) Status {
	if existing.Absorbing() {
		return existing
	}
	if existing == StatusPresent && incoming == StatusLate {
		return StatusLate
	}
	return existing
}
