package storage

import (
	"context"
	"fmt"

	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

// CheckReport is the outcome of a consistency check over the whole store
type CheckReport struct {
	SchemaVersion int
	LatestVersion int
	// Integrity holds the lines reported by SQLite's integrity check; "ok" when sound
	Integrity []string
	Conflicts []validation.Conflict
	Counts    map[string]int
}

// Healthy reports whether the check found nothing to fix. Kept log entries of
// deleted habits are reported but do not count.
func (r *CheckReport) Healthy() bool {
	if r.SchemaVersion != r.LatestVersion || len(r.Integrity) != 1 || r.Integrity[0] != "ok" {
		return false
	}
	for _, c := range r.Conflicts {
		if c.Blocking() {
			return false
		}
	}
	return true
}

// Check verifies the database file and the cross-table invariants
func (s *SQLiteStore) Check(ctx context.Context) (*CheckReport, error) {
	if s.db == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	report := &CheckReport{
		LatestVersion: s.registry.Latest(),
		Counts:        map[string]int{},
	}

	err := s.readTx(ctx, func(q querier) error {
		if err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&report.SchemaVersion); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		rows, err := q.QueryContext(ctx, "PRAGMA integrity_check")
		if err != nil {
			return fmt.Errorf("failed to run integrity check: %w", err)
		}
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				rows.Close()
				return err
			}
			report.Integrity = append(report.Integrity, line)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		categories, err := getCategoriesOrdered(ctx, q)
		if err != nil {
			return err
		}
		habits, err := queryDocs[models.Habit](ctx, q, "SELECT data FROM habits ORDER BY id")
		if err != nil {
			return fmt.Errorf("failed to query habits: %w", err)
		}
		entries, err := queryDocs[models.LogEntry](ctx, q, "SELECT data FROM log_entries ORDER BY log_date, habit_id")
		if err != nil {
			return fmt.Errorf("failed to query log entries: %w", err)
		}
		settings, err := getSettings(ctx, q)
		if err != nil {
			return err
		}

		report.Counts[migration.TableCategories] = len(categories)
		report.Counts[migration.TableHabits] = len(habits)
		report.Counts[migration.TableLogEntries] = len(entries)
		report.Counts[migration.TableSettings] = len(settings)
		report.Conflicts = validation.ValidateDataset(categories, habits, entries).Conflicts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
