package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
)

func TestNewDB_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "bot.db")}

	db, err := NewDB(cfg, zap.NewNop())

	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Health(context.Background()))
}

func TestNewDB_InvalidPostgres(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: DriverPostgres, Host: "127.0.0.1", Port: "1", User: "u",
		Password: "p", Name: "n", SSLMode: "disable", MaxOpenConns: 1, MaxIdleConns: 1,
	}

	db, err := NewDB(cfg, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestRunMigrations_Idempotent(t *testing.T) {
	eachDriver(t, func(t *testing.T, db *DB) {
		// setup already migrated once
		require.NoError(t, db.RunMigrations())

		var count int
		err := db.QueryRow(`SELECT COUNT(*) FROM reminders`).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	lite := &DB{driver: DriverSQLite}
	q := `SELECT a FROM t WHERE b = ? AND c = ?`

	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}
