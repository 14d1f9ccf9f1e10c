package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parsascontentcorner/streambot/internal/models"
)

// GetSetting returns the value stored for user/key.
func (db *DB) GetSetting(ctx context.Context, user, key string) (string, error) {
	query := db.rebind(`SELECT value FROM settings WHERE user_nick = ? AND name = ?`)

	var value string
	err := db.QueryRowContext(ctx, query, user, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting: %w", err)
	}

	return value, nil
}

// UpsertSetting creates or replaces a setting.
func (db *DB) UpsertSetting(ctx context.Context, s *models.Setting) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}

	query := db.rebind(`
		INSERT INTO settings (user_nick, name, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_nick, name)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)

	if _, err := db.ExecContext(ctx, query, s.User, s.Key, s.Value, s.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}

	return nil
}

// DeleteSetting removes a setting; ErrNotFound if it was not set.
func (db *DB) DeleteSetting(ctx context.Context, user, key string) error {
	query := db.rebind(`DELETE FROM settings WHERE user_nick = ? AND name = ?`)
	return db.execOne(ctx, "setting", query, user, key)
}

// ListSettings returns every stored setting.
func (db *DB) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_nick, name, value, updated_at FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Setting
	for rows.Next() {
		var (
			s         models.Setting
			updatedAt int64
		)
		if err := rows.Scan(&s.User, &s.Key, &s.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		s.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}

	return out, nil
}
