package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rpupo63/post-studio-backend/errs"
)

// Each migration adds one schema generation: 1 plain posts, 2 pending-update
// fields, 3 version lineage with live fields, 4 search columns.
//
//go:embed files/*.sql
var migrationFiles embed.FS

// Status describes where a database stands relative to the embedded files.
type Status struct {
	Version uint
	Latest  uint
	Dirty   bool
	Empty   bool
}

// Check reports a dirty migration or a database migrated past the embedded
// files. A database behind the latest version is fine: the store adapts to
// older generations.
func (s Status) Check() error {
	switch {
	case s.Empty:
		return nil
	case s.Dirty:
		return errs.NewMigrationMismatchError(
			fmt.Sprintf("clean version %d", s.Version),
			fmt.Sprintf("dirty version %d", s.Version))
	case s.Version > s.Latest:
		return errs.NewMigrationMismatchError(
			fmt.Sprintf("at most version %d", s.Latest),
			fmt.Sprintf("version %d", s.Version))
	}
	return nil
}

// CurrentStatus reads the schema_migrations bookkeeping.
func CurrentStatus(db *sql.DB) (Status, error) {
	latest, err := LatestVersion()
	if err != nil {
		return Status{}, err
	}

	m, err := newMigrate(db)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m is not closed: closing it would close the caller's *sql.DB.

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return Status{Latest: latest, Empty: true}, nil
		}
		return Status{}, fmt.Errorf("failed to get database version: %w", err)
	}
	return Status{Version: version, Latest: latest, Dirty: dirty}, nil
}

// Up applies every pending migration.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Goto migrates up or down to an exact version, which pins the deployment to
// one schema generation.
func Goto(db *sql.DB, version uint) error {
	latest, err := LatestVersion()
	if err != nil {
		return err
	}
	if version == 0 || version > latest {
		return fmt.Errorf("version %d is outside 1..%d", version, latest)
	}

	m, err := newMigrate(db)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	dbDriver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// LatestVersion returns the highest version among the embedded files.
func LatestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration files: %w", err)
	}
	defer src.Close()
	return latestVersion(src)
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Next fails once there are no more migrations.
			break
		}
		version = next
	}
	return version, nil
}
