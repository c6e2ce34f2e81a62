package storage

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

const entityLogEntry = "log entry"

// GetLogEntry returns the entry for (habitID, date), or nil when the day has none
func (s *SQLiteStore) GetLogEntry(ctx context.Context, habitID, date string) (*models.LogEntry, error) {
	if err := validation.ValidateDate(date); err != nil {
		return nil, err
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	return getLogEntry(ctx, q, habitID, date)
}

func getLogEntry(ctx context.Context, q querier, habitID, date string) (*models.LogEntry, error) {
	entries, err := queryDocs[models.LogEntry](ctx, q,
		"SELECT data FROM log_entries WHERE habit_id = ? AND log_date = ?", habitID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get log entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// GetLogEntriesForDate returns every entry recorded on date
func (s *SQLiteStore) GetLogEntriesForDate(ctx context.Context, date string) ([]models.LogEntry, error) {
	if err := validation.ValidateDate(date); err != nil {
		return nil, err
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	return getLogEntriesForDate(ctx, q, date)
}

func getLogEntriesForDate(ctx context.Context, q querier, date string) ([]models.LogEntry, error) {
	entries, err := queryDocs[models.LogEntry](ctx, q,
		"SELECT data FROM log_entries WHERE log_date = ? ORDER BY habit_id", date)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	return entries, nil
}

// GetLogEntriesInRange returns entries dated within [startDate, endDate],
// ordered by date. The scan walks the date index only over the range.
func (s *SQLiteStore) GetLogEntriesInRange(ctx context.Context, startDate, endDate string) ([]models.LogEntry, error) {
	if err := validation.ValidateDate(startDate); err != nil {
		return nil, err
	}
	if err := validation.ValidateDate(endDate); err != nil {
		return nil, err
	}
	if startDate > endDate {
		return nil, apperrors.Invalid("range", "start date %s is after end date %s", startDate, endDate)
	}

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	entries, err := queryDocs[models.LogEntry](ctx, q,
		"SELECT data FROM log_entries WHERE log_date BETWEEN ? AND ? ORDER BY log_date, habit_id",
		startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	return entries, nil
}

// LogHabit records value for habitID on date. An existing entry for the day
// is updated in place: it keeps its id and createdAt, its skip reason is
// cleared, and its note is replaced only when note is non-nil.
func (s *SQLiteStore) LogHabit(ctx context.Context, habitID, date string, value models.Value, note *string) (string, error) {
	if err := validation.ValidateDate(date); err != nil {
		return "", err
	}

	q, err := s.reader()
	if err != nil {
		return "", err
	}
	checked, err := getHabit(ctx, q, habitID)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateLogValue(checked, value); err != nil {
		return "", err
	}

	var id string
	err = s.withTx(ctx, []string{migration.TableLogEntries}, func(tx *sql.Tx) error {
		h, err := getHabit(ctx, tx, habitID)
		if err != nil {
			return err
		}
		// the habit was edited between the check and the write
		if h.Kind != checked.Kind || !slices.Equal(h.Options, checked.Options) {
			if err := validation.ValidateLogValue(h, value); err != nil {
				return err
			}
		}

		entry, err := s.upsertLogEntry(ctx, tx, habitID, date, func(e *models.LogEntry) {
			e.Value = value
			e.SkippedReason = ""
			if note != nil {
				e.Note = *note
			}
		})
		if err != nil {
			return err
		}
		id = entry.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SkipHabit marks date as deliberately skipped. Yes/no habits store false;
// other kinds store no value.
func (s *SQLiteStore) SkipHabit(ctx context.Context, habitID, date, reason string) (string, error) {
	if err := validation.ValidateDate(date); err != nil {
		return "", err
	}
	if strings.TrimSpace(reason) == "" {
		return "", apperrors.Invalid("skippedReason", "a skip reason is required")
	}

	var id string
	err := s.withTx(ctx, []string{migration.TableLogEntries}, func(tx *sql.Tx) error {
		h, err := getHabit(ctx, tx, habitID)
		if err != nil {
			return err
		}

		value := models.NoValue()
		if h.Kind == models.KindYesNo {
			value = models.BoolValue(false)
		}

		entry, err := s.upsertLogEntry(ctx, tx, habitID, date, func(e *models.LogEntry) {
			e.Value = value
			e.SkippedReason = reason
		})
		if err != nil {
			return err
		}
		id = entry.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// upsertLogEntry updates the entry for (habitID, date) through mutate, or
// inserts a fresh one when the day has none.
func (s *SQLiteStore) upsertLogEntry(ctx context.Context, tx *sql.Tx, habitID, date string, mutate func(*models.LogEntry)) (models.LogEntry, error) {
	now := s.now()

	existing, err := getLogEntry(ctx, tx, habitID, date)
	if err != nil {
		return models.LogEntry{}, err
	}

	var entry models.LogEntry
	if existing != nil {
		entry = *existing
	} else {
		entry = models.LogEntry{
			ID:        s.newID(),
			HabitID:   habitID,
			Date:      date,
			CreatedAt: now,
		}
	}

	mutate(&entry)
	entry.UpdatedAt = now

	if err := putDoc(ctx, tx, migration.TableLogEntries, entry.ID, entry); err != nil {
		return models.LogEntry{}, err
	}
	return entry, nil
}

// DeleteLogEntry clears the entry for (habitID, date)
func (s *SQLiteStore) DeleteLogEntry(ctx context.Context, habitID, date string) error {
	if err := validation.ValidateDate(date); err != nil {
		return err
	}

	return s.withTx(ctx, []string{migration.TableLogEntries}, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM log_entries WHERE habit_id = ? AND log_date = ?", habitID, date)
		if err != nil {
			return fmt.Errorf("failed to delete log entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.NotFound(entityLogEntry, habitID+"@"+date)
		}
		return nil
	})
}
