package database

import (
	"context"
	"testing"

	"github.com/breviobot/breviobot-service/config"

	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, config.DriverSQLite))

	version, err := Version(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	require.Equal(t, int64(2), version)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count))
	require.Zero(t, count)

	require.NoError(t, Rollback(ctx, db, config.DriverSQLite))
	version, err = Version(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestOpenRejectsMalformedMySQLDSN(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: config.DriverMySQL, DSN: "not a dsn"})
	require.Error(t, err)
}
