package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/julianstephens/tally/internal/errors"
)

// Hook runs inside the transaction that commits the final schema version.
// The store uses it to seed fixed records.
type Hook func(ctx context.Context, tx *sql.Tx) error

// Result summarizes a call to ApplyMigrations
type Result struct {
	From    int
	To      int
	Applied int
	Fresh   bool
	// Tables lists every table whose records or layout changed
	Tables []string
}

// Runner manages database schema migrations
type Runner struct {
	db       *sql.DB
	registry *Registry
}

// NewRunner creates a new migration runner
func NewRunner(db *sql.DB, registry *Registry) *Runner {
	return &Runner{
		db:       db,
		registry: registry,
	}
}

// Registry returns the registry the runner applies
func (r *Runner) Registry() *Registry {
	return r.registry
}

// EnsureSchemaVersionTable creates the schema_version table if it doesn't exist
func (r *Runner) EnsureSchemaVersionTable() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`)
	return err
}

// GetCurrentVersion returns the current schema version from the database
// Returns 0 if no version is set (fresh database)
func (r *Runner) GetCurrentVersion() (int, error) {
	if err := r.EnsureSchemaVersionTable(); err != nil {
		return 0, fmt.Errorf("failed to ensure schema_version table: %w", err)
	}

	var version int
	err := r.db.QueryRow("SELECT version FROM schema_version").Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion sets the current schema version in the database
func (r *Runner) SetVersion(version int) error {
	if err := r.EnsureSchemaVersionTable(); err != nil {
		return fmt.Errorf("failed to ensure schema_version table: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := setVersionTx(context.Background(), tx, version); err != nil {
		return err
	}
	return tx.Commit()
}

func setVersionTx(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("failed to clear version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}

// GetLatestVersion returns the highest migration version available
func (r *Runner) GetLatestVersion() int {
	return r.registry.Latest()
}

// ValidateVersion checks if the database version is compatible with the application
func (r *Runner) ValidateVersion() error {
	currentVersion, err := r.GetCurrentVersion()
	if err != nil {
		return err
	}

	latestVersion := r.registry.Latest()
	if currentVersion > latestVersion {
		return fmt.Errorf("%w: database schema version (%d) is newer than supported version (%d) - please upgrade the application",
			apperrors.ErrSchemaTooNew, currentVersion, latestVersion)
	}

	return nil
}

// ApplyMigrations brings the database to the latest version.
//
// A fresh database (no recorded version) gets every schema step and the
// latest version in a single transaction, with no record upgrades. An older
// database gets each pending step in its own transaction, strictly in
// ascending order; a failing step rolls back and leaves the database at the
// last committed version. hook runs inside the last transaction so the final
// version is never visible without it.
func (r *Runner) ApplyMigrations(ctx context.Context, hook Hook, logFn func(string)) (*Result, error) {
	if logFn == nil {
		logFn = func(s string) {} // no-op logger
	}

	currentVersion, err := r.GetCurrentVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	latestVersion := r.registry.Latest()
	result := &Result{From: currentVersion, To: currentVersion}

	if currentVersion > latestVersion {
		return nil, fmt.Errorf("%w: database schema version (%d) is newer than supported version (%d) - please upgrade the application",
			apperrors.ErrSchemaTooNew, currentVersion, latestVersion)
	}

	if latestVersion == 0 {
		logFn("No migration files found")
		return result, r.runHook(ctx, hook)
	}

	if currentVersion == 0 {
		logFn(fmt.Sprintf("Initializing schema at version %d", latestVersion))
		if err := r.initialize(ctx, hook); err != nil {
			return nil, err
		}
		result.To = latestVersion
		result.Fresh = true
		result.Tables = append([]string(nil), AllTables...)
		return result, nil
	}

	pending := r.registry.Pending(currentVersion)
	if len(pending) == 0 {
		logFn(fmt.Sprintf("Database schema is up to date (version %d)", currentVersion))
		return result, r.runHook(ctx, hook)
	}

	logFn(fmt.Sprintf("Current schema version: %d", currentVersion))
	logFn(fmt.Sprintf("Target schema version: %d", latestVersion))
	logFn(fmt.Sprintf("Applying %d migration(s)...", len(pending)))

	startTime := time.Now()
	touched := map[string]bool{}

	for i, m := range pending {
		logFn(fmt.Sprintf("  Applying migration %d: %s", m.Version, m.Name))

		var stepHook Hook
		if i == len(pending)-1 {
			stepHook = hook
		}

		tables, err := r.applyStep(ctx, m, stepHook, logFn)
		if err != nil {
			return result, &apperrors.MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}

		for _, t := range tables {
			touched[t] = true
		}
		result.To = m.Version
		result.Applied++
		logFn(fmt.Sprintf("  ✓ Migration %d applied successfully", m.Version))
	}

	for _, t := range AllTables {
		if touched[t] {
			result.Tables = append(result.Tables, t)
		}
	}

	logFn(fmt.Sprintf("Applied %d migration(s) in %v", result.Applied, time.Since(startTime)))
	return result, nil
}

// initialize creates the latest schema on an empty database
func (r *Runner) initialize(ctx context.Context, hook Hook) error {
	latest := r.registry.Latest()
	last := r.registry.migrations[len(r.registry.migrations)-1]

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema initialization: %w", err)
	}
	defer tx.Rollback()

	for _, m := range r.registry.migrations {
		if err := execSchema(ctx, tx, m.SQL); err != nil {
			return &apperrors.MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
	}
	if err := setVersionTx(ctx, tx, latest); err != nil {
		return &apperrors.MigrationError{Version: latest, Name: last.Name, Err: err}
	}
	if hook != nil {
		if err := hook(ctx, tx); err != nil {
			return &apperrors.MigrationError{Version: latest, Name: last.Name, Err: fmt.Errorf("seeding failed: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &apperrors.MigrationError{Version: latest, Name: last.Name, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// applyStep runs one version's schema change and record upgrades in a single transaction
func (r *Runner) applyStep(ctx context.Context, m Migration, hook Hook, logFn func(string)) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execSchema(ctx, tx, m.SQL); err != nil {
		return nil, err
	}

	tables := m.Tables()
	for _, table := range tables {
		rows, err := readRecords(ctx, tx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", table, err)
		}

		changed := 0
		for _, row := range rows {
			upgraded, err := m.upgradeRecord(table, row.rec)
			if err != nil {
				return nil, err
			}

			before, err := encodeRecord(table, row.rec)
			if err != nil {
				return nil, err
			}
			after, err := encodeRecord(table, upgraded)
			if err != nil {
				return nil, err
			}
			if before == after {
				continue
			}

			if err := writeRecord(ctx, tx, table, row.key, upgraded); err != nil {
				return nil, fmt.Errorf("failed to write %s record %q: %w", table, row.key, err)
			}
			changed++
		}
		logFn(fmt.Sprintf("    %s: %d of %d record(s) upgraded", table, changed, len(rows)))
	}

	if err := setVersionTx(ctx, tx, m.Version); err != nil {
		return nil, err
	}

	if hook != nil {
		if err := hook(ctx, tx); err != nil {
			return nil, fmt.Errorf("seeding failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return tables, nil
}

func (r *Runner) runHook(ctx context.Context, hook Hook) error {
	if hook == nil {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := hook(ctx, tx); err != nil {
		return fmt.Errorf("%w: seeding failed: %v", apperrors.ErrSchemaMigrationFailed, err)
	}
	return tx.Commit()
}

// execSchema runs a step's DDL. Steps that only upgrade records may ship a
// file holding nothing but comments.
func execSchema(ctx context.Context, tx *sql.Tx, script string) error {
	if !hasStatements(script) {
		return nil
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute schema change: %w", err)
	}
	return nil
}

func hasStatements(script string) bool {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return true
	}
	return false
}
