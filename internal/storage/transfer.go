package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/snapshot"
	"github.com/julianstephens/tally/internal/validation"
)

// ExportSnapshot copies every record of every table, read from one
// consistent view, along with the current schema version.
func (s *SQLiteStore) ExportSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{
		FormatVersion: constants.SnapshotFormatVersion,
		ExportedAt:    s.now(),
	}

	err := s.readTx(ctx, func(q querier) error {
		var err error
		if err = q.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&snap.SchemaVersion); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		if snap.Categories, err = getCategoriesOrdered(ctx, q); err != nil {
			return err
		}
		if snap.Habits, err = queryDocs[models.Habit](ctx, q, "SELECT data FROM habits ORDER BY category_id, sort_order, id"); err != nil {
			return fmt.Errorf("failed to query habits: %w", err)
		}
		if snap.LogEntries, err = queryDocs[models.LogEntry](ctx, q, "SELECT data FROM log_entries ORDER BY log_date, habit_id"); err != nil {
			return fmt.Errorf("failed to query log entries: %w", err)
		}
		if snap.Settings, err = getSettings(ctx, q); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ImportSnapshot replaces the store's contents with doc. Records from an
// older schema are upgraded first; the data is validated before anything is
// cleared, and the replacement commits as one transaction.
func (s *SQLiteStore) ImportSnapshot(ctx context.Context, doc *snapshot.Document) error {
	if s.db == nil {
		return fmt.Errorf("storage not loaded")
	}

	if err := doc.Upgrade(s.registry); err != nil {
		return err
	}
	snap, err := doc.Snapshot()
	if err != nil {
		return err
	}
	if err := validateImport(snap, s.now); err != nil {
		return err
	}

	return s.withTx(ctx, migration.AllTables, func(tx *sql.Tx) error {
		for _, table := range []string{migration.TableLogEntries, migration.TableHabits, migration.TableCategories, migration.TableSettings} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, c := range snap.Categories {
			if err := putDoc(ctx, tx, migration.TableCategories, c.ID, c); err != nil {
				return err
			}
		}
		for _, h := range snap.Habits {
			if err := putDoc(ctx, tx, migration.TableHabits, h.ID, h); err != nil {
				return err
			}
		}
		for _, e := range snap.LogEntries {
			if err := putDoc(ctx, tx, migration.TableLogEntries, e.ID, e); err != nil {
				return err
			}
		}
		for _, st := range snap.Settings {
			if err := putSetting(ctx, tx, st.Key, st.Value); err != nil {
				return err
			}
		}

		return s.seedFixedCategories(ctx, tx)
	})
}

// validateImport checks a snapshot as it will look after seeding
func validateImport(snap *snapshot.Snapshot, now func() time.Time) error {
	for _, c := range snap.Categories {
		if err := validation.ValidateCategory(c); err != nil {
			return apperrors.TransferFormat("category %q: %v", c.ID, err)
		}
	}
	for _, e := range snap.LogEntries {
		if err := validation.ValidateDate(e.Date); err != nil {
			return apperrors.TransferFormat("log entry %q: %v", e.ID, err)
		}
	}

	categories := append([]models.Category(nil), snap.Categories...)
	present := make(map[string]bool, len(categories))
	for _, c := range categories {
		present[c.ID] = true
	}
	for _, c := range fixedCategories(now()) {
		if !present[c.ID] {
			categories = append(categories, c)
		}
	}

	// entries of deleted habits are exported as-is and accepted back
	blocking := validation.ValidateDataset(categories, snap.Habits, snap.LogEntries).BlockingConflicts()
	if len(blocking) > 0 {
		msgs := make([]string, 0, len(blocking))
		for _, c := range blocking {
			msgs = append(msgs, c.Description)
		}
		return apperrors.TransferFormat("snapshot is inconsistent: %s", strings.Join(msgs, "; "))
	}

	return nil
}
