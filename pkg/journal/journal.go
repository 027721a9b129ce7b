// Package journal persists one row per completed management operation.
//
// The store implements zfs.Recorder, so wiring it into the client via
// zfs.WithRecorder gives an audit trail of every boundary call: which
// operation ran, which names it addressed, how it came out, and how long
// it took. It supports SQLite for single-node deployments and PostgreSQL
// for shared ones via the same GORM codebase.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/marmos91/zcore/internal/telemetry"
	"github.com/marmos91/zcore/pkg/zfs"
)

// Store records and queries journal entries using GORM.
// It supports both SQLite and PostgreSQL backends via the same codebase.
type Store struct {
	db     *gorm.DB
	config *Config
}

// New opens the journal database described by the configuration.
//
// SQLite databases are created on demand and migrated via GORM AutoMigrate.
// PostgreSQL schemas are managed by embedded SQL migrations instead, so
// concurrent instances can share one database safely.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}

	// Apply defaults if not set
	config.ApplyDefaults()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal configuration: %w", err)
	}

	// Create the appropriate database connection
	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		// Ensure parent directory exists for SQLite
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// SQLite pragmas for better concurrent access:
		// - journal_mode(WAL): Write-Ahead Logging for concurrent readers/single writer
		// - busy_timeout(5000): Wait up to 5 seconds when database is locked
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		// Run embedded migrations before GORM touches the schema.
		// golang-migrate takes a PostgreSQL advisory lock, so only one
		// instance migrates at a time.
		if err := runMigrations(context.Background(), config.Postgres); err != nil {
			return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
		}
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// Configure GORM
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Suppress GORM logs by default
	}

	// Open database connection
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch config.Type {
	case DatabaseTypeSQLite:
		// Auto-migration covers the single-writer SQLite case
		if err := db.AutoMigrate(AllModels()...); err != nil {
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}

	case DatabaseTypePostgres:
		// Configure connection pool for PostgreSQL
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	return &Store{
		db:     db,
		config: config,
	}, nil
}

// Record inserts one entry for a completed operation.
func (s *Store) Record(ctx context.Context, rec zfs.Record) error {
	ctx, span := telemetry.StartJournalSpan(ctx, "record",
		telemetry.StoreType(string(s.config.Type)),
		telemetry.Operation(rec.Op))
	defer span.End()

	entry := &Entry{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Op:        rec.Op,
		Outcome:   rec.Outcome,
		FaultKind: rec.FaultKind,
		Errno:     rec.Errno,
		Duration:  rec.Duration,
	}
	if err := entry.SetTargets(rec.Targets); err != nil {
		return fmt.Errorf("failed to encode targets: %w", err)
	}
	if err := entry.SetSoftMisses(rec.SoftMisses); err != nil {
		return fmt.Errorf("failed to encode soft misses: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// Filter narrows a List query. Zero values mean "no constraint".
type Filter struct {
	// Op keeps only entries for one operation name.
	Op string

	// Outcome keeps only entries with one outcome label.
	Outcome string

	// Target keeps only entries whose target list mentions the name.
	Target string

	// Since keeps only entries created at or after the given time.
	Since time.Time

	// Limit caps the number of returned entries. Zero returns all.
	Limit int
}

// List returns entries newest first, narrowed by the filter.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	q := s.db.WithContext(ctx).Model(&Entry{}).Order("created_at DESC")

	if filter.Op != "" {
		q = q.Where("op = ?", filter.Op)
	}
	if filter.Outcome != "" {
		q = q.Where("outcome = ?", filter.Outcome)
	}
	if filter.Target != "" {
		// Targets is a JSON array of strings, so match the quoted name.
		q = q.Where("targets LIKE ?", "%"+quoteJSONString(filter.Target)+"%")
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var entries []*Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}

	for _, e := range entries {
		if err := e.decode(); err != nil {
			return nil, fmt.Errorf("failed to decode journal entry %s: %w", e.ID, err)
		}
	}
	return entries, nil
}

// Get returns one entry by id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, convertNotFoundError(err, ErrEntryNotFound)
	}
	if err := entry.decode(); err != nil {
		return nil, fmt.Errorf("failed to decode journal entry %s: %w", entry.ID, err)
	}
	return &entry, nil
}

// Prune deletes entries created before the cutoff and reports how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&Entry{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Healthcheck pings the underlying database.
func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM database connection.
// This is useful for advanced queries or testing.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// quoteJSONString renders a name the way it appears inside the stored
// Targets blob, so a LIKE match cannot hit across element borders.
func quoteJSONString(name string) string {
	data, _ := json.Marshal(name)
	return string(data)
}

// convertNotFoundError converts gorm.ErrRecordNotFound to the appropriate domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// Compile-time interface check
var _ zfs.Recorder = (*Store)(nil)
