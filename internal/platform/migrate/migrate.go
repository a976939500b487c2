// Package migrate applies the embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/odyssey-erp/distro/migrations"
)

// Up applies every pending migration. It is a no-op when the schema is current.
func Up(dsn string, logger *slog.Logger) error {
	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer closeQuietly(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/migrate: up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("platform/migrate: version: %w", err)
	}
	if logger != nil {
		logger.Info("schema migrated", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
	return nil
}

// Down rolls back the given number of steps.
func Down(dsn string, steps int, logger *slog.Logger) error {
	if steps <= 0 {
		return errors.New("platform/migrate: steps must be positive")
	}
	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer closeQuietly(m, logger)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("platform/migrate: down %d: %w", steps, err)
	}
	return nil
}

func open(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/migrate: source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DatabaseURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("platform/migrate: open: %w", err)
	}
	return m, nil
}

func closeQuietly(m *migrate.Migrate, logger *slog.Logger) {
	srcErr, dbErr := m.Close()
	if logger == nil {
		return
	}
	if srcErr != nil {
		logger.Warn("close migration source", slog.Any("error", srcErr))
	}
	if dbErr != nil {
		logger.Warn("close migration database", slog.Any("error", dbErr))
	}
}

// DatabaseURL rewrites a libpq style URL into the pgx5:// scheme golang-migrate expects.
func DatabaseURL(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
