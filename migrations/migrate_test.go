package migrations

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"testing/fstest"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestSplitStatements(t *testing.T) {
	body := `
-- people; with a comment
CREATE TABLE a (id TEXT DEFAULT 'x;y');
CREATE INDEX i ON a (id);

INSERT INTO a VALUES ('it''s');
`
	got := splitStatements(body)
	want := []string{
		"CREATE TABLE a (id TEXT DEFAULT 'x;y')",
		"CREATE INDEX i ON a (id)",
		"INSERT INTO a VALUES ('it''s')",
	}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stmt %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUpReplaysPartiallyAppliedFile(t *testing.T) {
	dsn := os.Getenv("ROLLCALL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ROLLCALL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cleanup := func() {
		_, _ = db.ExecContext(ctx, `DROP TABLE IF EXISTS mig_first, mig_second`)
		_, _ = db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE filename = '9000_replay.sql'`)
	}
	cleanup()
	defer cleanup()

	// The first table exists already, so the file fails on its first statement.
	if _, err := db.ExecContext(ctx, `CREATE TABLE mig_first (id INT)`); err != nil {
		t.Fatal(err)
	}
	fsys := fstest.MapFS{
		"9000_replay.sql": {Data: []byte("CREATE TABLE mig_first (id INT);\nCREATE TABLE mig_second (id INT);\n")},
	}
	if err := up(ctx, db, fsys); err != nil {
		t.Fatalf("up: %v", err)
	}

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT to_regclass('mig_second') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("statement after the duplicate was skipped")
	}
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = '9000_replay.sql')`,
	).Scan(&exists); err != nil || !exists {
		t.Errorf("file not recorded: %v, %v", exists, err)
	}
}
