package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/breviobot/breviobot-service/config"
	"github.com/breviobot/breviobot-service/migrations"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

// Open connects to the configured relational store and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return openMySQL(ctx, cfg)
	case config.DriverSQLite:
		return openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openMySQL(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	mysqlCfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	// Timestamps are scanned into time.Time; RowsAffected counts matched rows.
	mysqlCfg.ParseTime = true
	mysqlCfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(mysqlCfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection keeps :memory: databases shared too.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range sqlitePragmas {
		if _, err = db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return db, nil
}

func dialect(driver string) (goose.Dialect, string, error) {
	switch driver {
	case config.DriverMySQL:
		return goose.DialectMySQL, "mysql", nil
	case config.DriverSQLite:
		return goose.DialectSQLite3, "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func prepareGoose(driver string) (string, error) {
	d, dir, err := dialect(driver)
	if err != nil {
		return "", err
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(logrus.StandardLogger())
	if err = goose.SetDialect(string(d)); err != nil {
		return "", err
	}
	return dir, nil
}

// Migrate applies every pending migration for the driver's dialect.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := prepareGoose(driver)
	if err != nil {
		return err
	}
	if err = goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func Rollback(ctx context.Context, db *sql.DB, driver string) error {
	dir, err := prepareGoose(driver)
	if err != nil {
		return err
	}
	if err = goose.DownContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose down failed: %w", err)
	}
	return nil
}

// Version reports the current schema version.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if _, err := prepareGoose(driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
