package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parsascontentcorner/streambot/internal/models"
)

const reminderColumns = `id, owner, target, text, due_at, created_at`

// CreateReminder inserts a reminder and fills in its ID and CreatedAt.
func (db *DB) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	query := db.rebind(`
		INSERT INTO reminders (owner, target, text, due_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := db.QueryRowContext(ctx, query,
		r.Owner,
		r.Target,
		r.Text,
		unixCeil(r.DueAt),
		r.CreatedAt.Unix(),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// unixCeil rounds t up to whole seconds so a stored due time is never
// earlier than the requested one.
func unixCeil(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}

// ListRemindersByOwner returns the pending reminders created by owner, soonest first.
func (db *DB) ListRemindersByOwner(ctx context.Context, owner string) ([]*models.Reminder, error) {
	query := db.rebind(`SELECT ` + reminderColumns + ` FROM reminders WHERE owner = ? ORDER BY due_at, id`)
	return db.queryReminders(ctx, query, owner)
}

// DueReminders returns every reminder whose due time is at or before now.
func (db *DB) DueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	query := db.rebind(`SELECT ` + reminderColumns + ` FROM reminders WHERE due_at <= ? ORDER BY due_at, id`)
	return db.queryReminders(ctx, query, now.Unix())
}

// NextReminderDue returns the earliest due time among pending reminders.
// ok is false when nothing is pending.
func (db *DB) NextReminderDue(ctx context.Context) (next time.Time, ok bool, err error) {
	var due sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MIN(due_at) FROM reminders`).Scan(&due); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get next reminder: %w", err)
	}
	if !due.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(due.Int64, 0), true, nil
}

// DeleteReminder deletes a reminder owned by owner.
func (db *DB) DeleteReminder(ctx context.Context, id int64, owner string) error {
	query := db.rebind(`DELETE FROM reminders WHERE id = ? AND owner = ?`)
	return db.execOne(ctx, "reminder", query, id, owner)
}

// RemoveReminder deletes a reminder regardless of owner, once it has fired.
func (db *DB) RemoveReminder(ctx context.Context, id int64) error {
	query := db.rebind(`DELETE FROM reminders WHERE id = ?`)
	return db.execOne(ctx, "reminder", query, id)
}

func (db *DB) queryReminders(ctx context.Context, query string, args ...any) ([]*models.Reminder, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Reminder
	for rows.Next() {
		var (
			r              models.Reminder
			due, createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.Owner, &r.Target, &r.Text, &due, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.DueAt = time.Unix(due, 0)
		r.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return out, nil
}

// execOne runs a statement expected to touch exactly one row.
func (db *DB) execOne(ctx context.Context, entity, query string, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s %w", entity, ErrNotFound)
	}

	return nil
}

// IsNotFound reports whether err wraps ErrNotFound or sql.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
