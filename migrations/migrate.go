package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed *.sql
var files embed.FS

// Up applies every embedded migration not yet recorded in schema_migrations.
func Up(ctx context.Context, db *sql.DB) error {
	return up(ctx, db, files)
}

func up(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if db == nil {
		return errors.New("db is required")
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list embedded migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := apply(ctx, db, fsys, name); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, fsys fs.FS, name string) error {
	var applied bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name,
	).Scan(&applied); err != nil {
		return fmt.Errorf("check migration %s: %w", name, err)
	}
	if applied {
		return nil
	}

	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		if !isIgnorable(err) {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		// Some objects already exist: replay the file one statement at a
		// time so the statements after the failing one still run.
		if err := applyEach(ctx, db, name, string(body)); err != nil {
			return err
		}
		return markApplied(ctx, db, name)
	}
	if err := markApplied(ctx, tx, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func applyEach(ctx context.Context, db *sql.DB, name, body string) error {
	for i, stmt := range splitStatements(body) {
		if _, err := db.ExecContext(ctx, stmt); err != nil && !isIgnorable(err) {
			return fmt.Errorf("apply migration %s statement %d: %w", name, i+1, err)
		}
	}
	return nil
}

// splitStatements cuts a migration at top-level semicolons, ignoring those
// inside quotes and line comments.
func splitStatements(body string) []string {
	var out []string
	var cur strings.Builder
	inQuote, inComment := false, false
	for i := 0; i < len(body); i++ {
		ch := body[i]
		switch {
		case inComment:
			if ch == '\n' {
				inComment = false
			}
			continue
		case inQuote:
			if ch == '\'' {
				inQuote = false
			}
		case ch == '-' && i+1 < len(body) && body[i+1] == '-':
			inComment = true
			continue
		case ch == '\'':
			inQuote = true
		case ch == ';':
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func markApplied(ctx context.Context, ex execer, name string) error {
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO schema_migrations (filename) VALUES ($1) ON CONFLICT (filename) DO NOTHING`, name,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}

// isIgnorable reports errors raised when an object already exists.
func isIgnorable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42P07", // duplicate_table
		"42710", // duplicate_object
		"42701": // duplicate_column
		return true
	}
	return false
}
