package roster

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

type peopleFile struct {
	People []struct {
		ID          string  `yaml:"id"`
		Name        string  `yaml:"name"`
		BiometricID *string `yaml:"biometric_id"`
	} `yaml:"people"`
}

// LoadPeopleYAML decodes the people section of a seed file:
//
//	people:
//	  - name: Ada
//	    biometric_id: "101"
//
// Entries without an id get one on Upsert.
func LoadPeopleYAML(r io.Reader) ([]Person, error) {
	var f peopleFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode people: %w", err)
	}
	out := make([]Person, 0, len(f.People))
	seen := map[string]int{}
	for i, p := range f.People {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("person %d: name is required", i)
		}
		person := Person{ID: strings.TrimSpace(p.ID), Name: name}
		if p.BiometricID != nil {
			if id := NormalizeBiometricID(*p.BiometricID); id != "" {
				if j, dup := seen[id]; dup {
					return nil, fmt.Errorf("person %d: biometric id %q already used by person %d", i, id, j)
				}
				seen[id] = i
				person.BiometricID = &id
			}
		}
		out = append(out, person)
	}
	return out, nil
}
