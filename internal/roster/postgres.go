package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Repository reads the roster from the people table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a roster repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByBiometricID returns the person enrolled under id, or nil.
func (r *Repository) FindByBiometricID(ctx context.Context, id string) (*Person, error) {
	id = NormalizeBiometricID(id)
	if id == "" {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, biometric_id, name FROM people WHERE biometric_id = $1
	`, id)
	var p Person
	var bio sql.NullString
	if err := row.Scan(&p.ID, &bio, &p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if bio.Valid {
		v := bio.String
		p.BiometricID = &v
	}
	return &p, nil
}

// ListIDs returns every person id.
func (r *Repository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM people ORDER BY id`)
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

// Upsert creates or updates a person, assigning an id when missing.
func (r *Repository) Upsert(ctx context.Context, p Person) (Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.BiometricID != nil {
		v := NormalizeBiometricID(*p.BiometricID)
		p.BiometricID = &v
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO people (id, biometric_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			biometric_id = EXCLUDED.biometric_id,
			name = EXCLUDED.name
	`, p.ID, p.BiometricID, p.Name)
	return p, err
}
