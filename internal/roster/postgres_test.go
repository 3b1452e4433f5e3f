package roster

import (
	"context"
	"os"
	"testing"

	"rollcall/internal/store"
)

func TestRepository(t *testing.T) {
	dsn := os.Getenv("ROLLCALL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ROLLCALL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.OpenDB(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()
	if _, err := db.Client.ExecContext(ctx, `TRUNCATE attendance, people`); err != nil {
		t.Fatal(err)
	}

	repo := NewRepository(db.Client)
	saved, err := repo.Upsert(ctx, Person{Name: "Dara", BiometricID: ptr(" 42 ")})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("Upsert did not assign an id")
	}
	if _, err := repo.Upsert(ctx, Person{ID: "fixed", Name: "Sokha"}); err != nil {
		t.Fatal(err)
	}

	p, err := repo.FindByBiometricID(ctx, "42")
	if err != nil || p == nil || p.ID != saved.ID || p.Name != "Dara" {
		t.Fatalf("FindByBiometricID = %+v, %v", p, err)
	}
	if p, err := repo.FindByBiometricID(ctx, "7"); err != nil || p != nil {
		t.Errorf("unknown id = %+v, %v", p, err)
	}

	ids, err := repo.ListIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Errorf("ListIDs = %v, %v", ids, err)
	}
}
