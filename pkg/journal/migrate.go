package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/pkg/journal/migrations"
)

// runMigrations executes database migrations using golang-migrate.
// Uses advisory locks to ensure only one instance runs migrations at a time.
func runMigrations(ctx context.Context, cfg PostgresConfig) error {
	logger.Debug("Running journal migrations", "database", cfg.Database)

	// Open database connection using database/sql (required by golang-migrate)
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Create postgres driver instance for migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	// Create source driver from embedded filesystem
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create source driver: %w", err)
	}

	// Create migrate instance
	m, err := migrate.NewWithInstance(
		"iofs",
		sourceDriver,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// golang-migrate uses PostgreSQL advisory locks automatically to prevent
	// concurrent migrations from multiple instances
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err == migrate.ErrNoChange {
		logger.Debug("No journal migrations to apply (database is up to date)")
	} else {
		logger.Info("Journal migrations completed")
	}

	// Get current version
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err != migrate.ErrNilVersion {
		logger.Debug("Journal schema version",
			"version", version,
			"dirty", dirty,
		)

		if dirty {
			logger.Warn("Journal schema is in dirty state - manual intervention may be required")
		}
	}

	return nil
}

// RunMigrations is a public wrapper for manual migration execution (e.g., from CLI).
func RunMigrations(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}

	// Apply defaults and validate
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Type != DatabaseTypePostgres {
		return fmt.Errorf("managed migrations require postgres, not %s", cfg.Type)
	}

	return runMigrations(ctx, cfg.Postgres)
}
