package roster

import (
	"context"
	"sort"
	"strings"
)

// Person is a roster member. BiometricID is the user id enrolled on the
// scanning device and may be unset.
type Person struct {
	ID          string  `json:"id"`
	BiometricID *string `json:"biometric_id,omitempty"`
	Name        string  `json:"name"`
}

// Lookup resolves device user ids to people.
type Lookup interface {
	FindByBiometricID(ctx context.Context, biometricID string) (*Person, error)
}

// NormalizeBiometricID trims the id as reported by the device.
func NormalizeBiometricID(id string) string {
	return strings.TrimSpace(id)
}

// Static is an in-memory roster.
type Static []Person

// FindByBiometricID returns nil when nobody carries id.
func (s Static) FindByBiometricID(_ context.Context, id string) (*Person, error) {
	id = NormalizeBiometricID(id)
	if id == "" {
		return nil, nil
	}
	for i := range s {
		if s[i].BiometricID != nil && *s[i].BiometricID == id {
			p := s[i]
			return &p, nil
		}
	}
	return nil, nil
}

// ListIDs returns every person id in order.
func (s Static) ListIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s))
	for _, p := range s {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
