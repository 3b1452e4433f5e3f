package roster

import (
	"context"
	"strings"
	"testing"
)

func ptr(s string) *string { return &s }

func TestStaticLookup(t *testing.T) {
	r := Static{
		{ID: "b", BiometricID: ptr("42"), Name: "Dara"},
		{ID: "a", Name: "Sokha"},
	}
	ctx := context.Background()

	p, err := r.FindByBiometricID(ctx, " 42 ")
	if err != nil || p == nil || p.ID != "b" {
		t.Fatalf("FindByBiometricID = %+v, %v", p, err)
	}
	for _, miss := range []string{"", "  ", "7"} {
		if p, _ := r.FindByBiometricID(ctx, miss); p != nil {
			t.Errorf("FindByBiometricID(%q) = %+v, want nil", miss, p)
		}
	}

	ids, _ := r.ListIDs(ctx)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ListIDs = %v", ids)
	}
}

func TestLoadPeopleYAML(t *testing.T) {
	people, err := LoadPeopleYAML(strings.NewReader(`
people:
  - name: Dara
    biometric_id: " 42 "
  - id: fixed-id
    name: Sokha
`))
	if err != nil {
		t.Fatalf("LoadPeopleYAML: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("people = %+v", people)
	}
	if people[0].BiometricID == nil || *people[0].BiometricID != "42" || people[0].ID != "" {
		t.Errorf("people[0] = %+v", people[0])
	}
	if people[1].ID != "fixed-id" || people[1].BiometricID != nil {
		t.Errorf("people[1] = %+v", people[1])
	}

	if _, err := LoadPeopleYAML(strings.NewReader("people:\n  - biometric_id: \"1\"\n")); err == nil {
		t.Error("expected error for missing name")
	}
	dup := "people:\n  - {name: A, biometric_id: \"1\"}\n  - {name: B, biometric_id: \"1\"}\n"
	if _, err := LoadPeopleYAML(strings.NewReader(dup)); err == nil {
		t.Error("expected error for duplicate biometric id")
	}
	if people, err := LoadPeopleYAML(strings.NewReader("rules: []\n")); err != nil || len(people) != 0 {
		t.Errorf("file without people = %v, %v", people, err)
	}
}
