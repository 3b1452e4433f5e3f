package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresRepository persists attendance records in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the record of personID on day, or nil.
func (r *PostgresRepository) Get(ctx context.Context, personID string, day time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT person_id, day, status, note, updated_at
		FROM attendance
		WHERE person_id = $1 AND day = $2
	`, personID, day)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Create inserts rec, returning ErrDuplicate when the day is already recorded.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (person_id, day, status, note, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.PersonID, rec.Day, string(rec.Status), rec.Note, rec.UpdatedAt)
	if err != nil {
		switch pgCode(err) {
		case uniqueViolation:
			return Record{}, ErrDuplicate
		case foreignKeyViolation:
			return Record{}, ErrUnknownPerson
		}
		return Record{}, err
	}
	return rec, nil
}

// UpdateStatus applies c only if the stored status still equals c.From.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, c StatusChange) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET status = $4, updated_at = $5
		WHERE person_id = $1 AND day = $2 AND status = $3
	`, c.PersonID, c.Day, string(c.From), string(c.To), c.At)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateIfAbsent inserts recs in one transaction, skipping keys that already exist.
func (r *PostgresRepository) CreateIfAbsent(ctx context.Context, recs []Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, rec := range recs {
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (person_id, day, status, note, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (person_id, day) DO NOTHING
		`, rec.PersonID, rec.Day, string(rec.Status), rec.Note, rec.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", rec.PersonID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// PersonIDsOn lists the people holding any record on day.
func (r *PostgresRepository) PersonIDsOn(ctx context.Context, day time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT person_id FROM attendance WHERE day = $1 ORDER BY person_id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upsert writes rec unconditionally, replacing status and note.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) (Record, error) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (person_id, day, status, note, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (person_id, day) DO UPDATE SET
			status = EXCLUDED.status,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at
	`, rec.PersonID, rec.Day, string(rec.Status), rec.Note, rec.UpdatedAt)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return Record{}, ErrUnknownPerson
		}
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the record of personID on day.
func (r *PostgresRepository) Delete(ctx context.Context, personID string, day time.Time) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE person_id = $1 AND day = $2`, personID, day)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus groups records in [from, to) by person and status.
func (r *PostgresRepository) CountByStatus(ctx context.Context, from, to time.Time) ([]StatusCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT person_id, status, COUNT(*)
		FROM attendance
		WHERE day >= $1 AND day < $2
		GROUP BY person_id, status
		ORDER BY person_id, status
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		var status string
		if err := rows.Scan(&c.PersonID, &status, &c.Count); err != nil {
			return nil, err
		}
		c.Status = Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRange returns the records of [from, to) ordered by day, then person.
func (r *PostgresRepository) ListRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT person_id, day, status, note, updated_at
		FROM attendance
		WHERE day >= $1 AND day < $2
		ORDER BY day, person_id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var status string
	var note sql.NullString
	if err := row.Scan(&rec.PersonID, &rec.Day, &status, &note, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.Day = rec.Day.UTC()
	if note.Valid {
		v := note.String
		rec.Note = &v
	}
	return rec, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
