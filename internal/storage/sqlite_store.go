package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/live"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/migrations"
	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Option configures a SQLiteStore
type Option func(*SQLiteStore)

// WithClock replaces the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// WithIDGenerator replaces the identifier source for new records
func WithIDGenerator(newID func() string) Option {
	return func(s *SQLiteStore) {
		s.newID = newID
	}
}

// WithRegistry replaces the embedded migration registry
func WithRegistry(registry *migration.Registry) Option {
	return func(s *SQLiteStore) {
		s.registry = registry
	}
}

// WithMigrationLog receives migration progress messages
func WithMigrationLog(logFn func(string)) Option {
	return func(s *SQLiteStore) {
		s.migrationLog = logFn
	}
}

// SQLiteStore is the embedded store. One instance owns the database file for
// the life of the process: construct it once, Init or Load it, and pass it to
// every consumer.
type SQLiteStore struct {
	path         string
	db           *sql.DB
	registry     *migration.Registry
	hub          *live.Hub
	now          func() time.Time
	newID        func() string
	migrationLog func(string)
	lastResult   *migration.Result
}

func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		path:  path,
		hub:   live.NewHub(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		migrationLog: func(msg string) {
			logger.Info(msg)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the database file if needed and opens it
func (s *SQLiteStore) Init(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return s.open(ctx)
}

// Load opens an existing database, applying any pending migrations
func (s *SQLiteStore) Load(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
	}
	return s.open(ctx)
}

// Close ends every live subscription and closes the database. A closed
// store can be opened again with Init or Load.
func (s *SQLiteStore) Close() error {
	s.hub.Close()
	s.hub = live.NewHub()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// GetPath returns the database file path
func (s *SQLiteStore) GetPath() string {
	return s.path
}

// Hub exposes the change feed backing the Watch methods
func (s *SQLiteStore) Hub() *live.Hub {
	return s.hub
}

// Registry returns the schema registry the store migrates against
func (s *SQLiteStore) Registry() *migration.Registry {
	return s.registry
}

// LastMigration reports what the most recent open did to the schema
func (s *SQLiteStore) LastMigration() *migration.Result {
	return s.lastResult
}

// SchemaVersion returns the version recorded in the database
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (s *SQLiteStore) open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if s.registry == nil {
		registry, err := migrations.Registry()
		if err != nil {
			return fmt.Errorf("failed to load migration registry: %w", err)
		}
		s.registry = registry
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer, and pragmas are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	runner := migration.NewRunner(db, s.registry)
	result, err := runner.ApplyMigrations(ctx, s.seedFixedCategories, s.migrationLog)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	s.lastResult = result
	if len(result.Tables) > 0 {
		s.hub.Publish(live.ChangeSet{Tables: result.Tables})
	}
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// fixedCategories returns the two reserved categories as seeded on first open
func fixedCategories(now time.Time) []models.Category {
	return []models.Category{
		{
			ID:        constants.FixedPositiveCategoryID,
			Name:      constants.FixedPositiveCategoryName,
			Color:     "green",
			Icon:      "sprout",
			Order:     0,
			IsFixed:   true,
			Group:     models.GroupPositive,
			CreatedAt: now,
		},
		{
			ID:        constants.FixedNegativeCategoryID,
			Name:      constants.FixedNegativeCategoryName,
			Color:     "red",
			Icon:      "ban",
			Order:     1,
			IsFixed:   true,
			Group:     models.GroupNegative,
			CreatedAt: now,
		},
	}
}

// seedFixedCategories inserts whichever fixed category is missing. It runs
// inside the migration transaction and again on snapshot import.
func (s *SQLiteStore) seedFixedCategories(ctx context.Context, tx *sql.Tx) error {
	for _, c := range fixedCategories(s.now()) {
		data, err := encodeDoc(c)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO categories (id, data) VALUES (?, ?)", c.ID, data); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.ID, err)
		}
	}
	return nil
}

// withTx runs fn in a transaction and, once it commits, notifies every
// subscriber depending on tables.
func (s *SQLiteStore) withTx(ctx context.Context, tables []string, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.hub.Publish(live.ChangeSet{Tables: tables})
	return nil
}

func (s *SQLiteStore) reader() (querier, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}
	return s.db, nil
}

// readTx runs fn against one consistent view of committed state
func (s *SQLiteStore) readTx(ctx context.Context, fn func(q querier) error) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(tx)
}
