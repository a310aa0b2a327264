package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// DefaultMigrationsPath is the source URL used when none is configured.
const DefaultMigrationsPath = "file://migrations"

func newMigrate(source, dbURL string) (*migrate.Migrate, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database url not set")
	}
	if source == "" {
		source = DefaultMigrationsPath
	}
	m, err := migrate.New(source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations from source against dbURL.
func RunMigrations(source, dbURL string) error {
	log.Info().Str("source", source).Msg("initializing database migrations")

	m, err := newMigrate(source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Warn().Err(err).Msg("could not get migration version")
	}

	if dirty {
		log.Warn().Uint("version", version).Msg("database in dirty state, forcing clean")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			version, _, _ := m.Version()
			log.Info().Uint("version", version).Msg("database is up to date")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ = m.Version()
	log.Info().Uint("version", version).Msg("migrations complete")
	return nil
}

// GetMigrationVersion returns the current migration version
func GetMigrationVersion(source, dbURL string) (uint, bool, error) {
	m, err := newMigrate(source, dbURL)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	return m.Version()
}

// RollbackMigration rolls back the last migration
func RollbackMigration(source, dbURL string) error {
	m, err := newMigrate(source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("rolled back")
	return nil
}
