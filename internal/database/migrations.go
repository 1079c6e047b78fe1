package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// ErrDirtySchema means a previous migration stopped halfway and needs a
// manual `migrate force` before the service can start.
var ErrDirtySchema = errors.New("database schema is dirty")

// RunMigrations brings the briefing and event tables up to the embedded
// schema version.
func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	src, err := iofs.New(migrationsFS, migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Schema up to date", "version", from)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	to, _, _ := m.Version()
	logger.Info("Schema migrated", "from", from, "to", to)
	return nil
}

// LatestMigrationVersion returns the highest version among the embedded
// migration files.
func LatestMigrationVersion() (uint, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return 0, err
	}
	var latest uint
	for _, e := range entries {
		mig, err := source.DefaultParse(e.Name())
		if err != nil {
			return 0, fmt.Errorf("bad migration file %q: %w", e.Name(), err)
		}
		if mig.Version > latest {
			latest = mig.Version
		}
	}
	return latest, nil
}

// SchemaCheck reports an error while the schema_migrations row is dirty or
// behind the embedded migrations, for the readiness endpoint.
func SchemaCheck(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		latest, err := LatestMigrationVersion()
		if err != nil {
			return err
		}
		var row struct {
			Version uint
			Dirty   bool
		}
		err = db.WithContext(ctx).
			Raw("SELECT version, dirty FROM schema_migrations LIMIT 1").
			Scan(&row).Error
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		return checkSchema(row.Version, row.Dirty, latest)
	}
}

func checkSchema(version uint, dirty bool, latest uint) error {
	switch {
	case dirty:
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	case version < latest:
		return fmt.Errorf("schema at version %d, want %d", version, latest)
	}
	return nil
}
