package schedule

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresSource reads schedule rules from the schedule_rules table.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a rule source backed by db.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// ActiveRules returns the active rules of weekday ordered by start time.
func (s *PostgresSource) ActiveRules(ctx context.Context, weekday time.Weekday) ([]Rule, error) {
	return s.query(ctx, `
		SELECT id, day_of_week, start_minutes, end_minutes, active, label
		FROM schedule_rules
		WHERE active AND day_of_week = $1
		ORDER BY start_minutes, id
	`, int(weekday))
}

// AllActive returns every active rule.
func (s *PostgresSource) AllActive(ctx context.Context) ([]Rule, error) {
	return s.query(ctx, `
		SELECT id, day_of_week, start_minutes, end_minutes, active, label
		FROM schedule_rules
		WHERE active
		ORDER BY day_of_week, start_minutes, id
	`)
}

func (s *PostgresSource) query(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		var label sql.NullString
		if err := rows.Scan(&r.ID, &r.DayOfWeek, &r.StartMinutes, &r.EndMinutes, &r.Active, &label); err != nil {
			return nil, err
		}
		if label.Valid {
			v := label.String
			r.Label = &v
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ReplaceAll swaps the whole rule table for rules inside one transaction.
// Every rule is validated before anything is written.
func (s *PostgresSource) ReplaceAll(ctx context.Context, rules []Rule) error {
	for i, r := range rules {
		if err := Validate(r); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for i, r := range rules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_rules (day_of_week, start_minutes, end_minutes, active, label)
			VALUES ($1, $2, $3, $4, $5)
		`, r.DayOfWeek, r.StartMinutes, r.EndMinutes, r.Active, r.Label); err != nil {
			return fmt.Errorf("insert rule %d: %w", i, err)
		}
	}
	return tx.Commit()
}
