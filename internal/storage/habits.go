package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/validation"
)

const entityHabit = "habit"

// GetHabits returns habits matching filter sorted by display order
func (s *SQLiteStore) GetHabits(ctx context.Context, filter models.HabitFilter) ([]models.Habit, error) {
	q, err := s.reader()
	if err != nil {
		return nil, err
	}

	var where []string
	var args []interface{}
	if filter.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := "SELECT data FROM habits"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sort_order, id"

	habits, err := queryDocs[models.Habit](ctx, q, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	return habits, nil
}

func (s *SQLiteStore) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	q, err := s.reader()
	if err != nil {
		return models.Habit{}, err
	}
	return getHabit(ctx, q, id)
}

func getHabit(ctx context.Context, q querier, id string) (models.Habit, error) {
	h, ok, err := getDoc[models.Habit](ctx, q, migration.TableHabits, id)
	if err != nil {
		return models.Habit{}, fmt.Errorf("failed to get habit: %w", err)
	}
	if !ok {
		return models.Habit{}, apperrors.NotFound(entityHabit, id)
	}
	return h, nil
}

// nextHabitOrder is one past the highest order among active habits in the category
func nextHabitOrder(ctx context.Context, q querier, categoryID string) (int, error) {
	var next int
	err := q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sort_order), -1) + 1 FROM habits WHERE category_id = ? AND is_active = 1",
		categoryID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute habit order: %w", err)
	}
	return next, nil
}

// GetHabitsWithLogs pairs every active habit with its entry for date. It
// reads the habits once and the day's entries once, then merges them.
func (s *SQLiteStore) GetHabitsWithLogs(ctx context.Context, date string, group *models.GroupTag) ([]models.HabitWithLog, error) {
	if err := validation.ValidateDate(date); err != nil {
		return nil, err
	}
	if group != nil && !group.Valid() {
		return nil, apperrors.Invalid("group", "unknown group %q", *group)
	}

	var out []models.HabitWithLog
	err := s.readTx(ctx, func(q querier) error {
		query := `SELECT h.data FROM habits h
			LEFT JOIN categories c ON c.id = h.category_id
			WHERE h.is_active = 1`
		var args []interface{}
		if group != nil {
			query += " AND c.group_tag = ?"
			args = append(args, string(*group))
		}
		query += " ORDER BY c.sort_order, h.sort_order, h.id"

		habits, err := queryDocs[models.Habit](ctx, q, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query habits: %w", err)
		}

		entries, err := getLogEntriesForDate(ctx, q, date)
		if err != nil {
			return err
		}
		byHabit := make(map[string]models.LogEntry, len(entries))
		for _, e := range entries {
			byHabit[e.HabitID] = e
		}

		out = make([]models.HabitWithLog, 0, len(habits))
		for _, h := range habits {
			hw := models.HabitWithLog{Habit: h}
			if e, ok := byHabit[h.ID]; ok {
				entry := e
				hw.Log = &entry
			}
			out = append(out, hw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateHabit stores a new active habit after the other active habits of its category
func (s *SQLiteStore) CreateHabit(ctx context.Context, h models.Habit) (models.Habit, error) {
	if h.ID == "" {
		h.ID = s.newID()
	}
	if h.Interval == "" {
		h.Interval = models.IntervalDaily
	}
	h.IsActive = true
	h.CreatedAt = s.now()

	if err := validation.ValidateHabit(h); err != nil {
		return models.Habit{}, err
	}

	err := s.withTx(ctx, []string{migration.TableHabits}, func(tx *sql.Tx) error {
		if _, err := getCategory(ctx, tx, h.CategoryID); err != nil {
			return err
		}
		if _, exists, err := getDoc[models.Habit](ctx, tx, migration.TableHabits, h.ID); err != nil {
			return err
		} else if exists {
			return apperrors.Invalid("id", "habit %q already exists", h.ID)
		}

		order, err := nextHabitOrder(ctx, tx, h.CategoryID)
		if err != nil {
			return err
		}
		h.Order = order

		return putDoc(ctx, tx, migration.TableHabits, h.ID, h)
	})
	if err != nil {
		return models.Habit{}, err
	}
	return h, nil
}

// UpdateHabit applies patch to a habit. Moving a habit to another category
// places it after that category's active habits.
func (s *SQLiteStore) UpdateHabit(ctx context.Context, id string, patch models.HabitPatch) (models.Habit, error) {
	var updated models.Habit
	err := s.withTx(ctx, []string{migration.TableHabits}, func(tx *sql.Tx) error {
		h, err := getHabit(ctx, tx, id)
		if err != nil {
			return err
		}
		previousCategory := h.CategoryID

		patch.Apply(&h)
		if err := validation.ValidateHabit(h); err != nil {
			return err
		}

		if h.CategoryID != previousCategory {
			if _, err := getCategory(ctx, tx, h.CategoryID); err != nil {
				return err
			}
			order, err := nextHabitOrder(ctx, tx, h.CategoryID)
			if err != nil {
				return err
			}
			h.Order = order
		}

		updated = h
		return putDoc(ctx, tx, migration.TableHabits, h.ID, h)
	})
	if err != nil {
		return models.Habit{}, err
	}
	return updated, nil
}

// ArchiveHabit hides a habit from logging views. Its history is kept.
func (s *SQLiteStore) ArchiveHabit(ctx context.Context, id string) error {
	return s.setHabitActive(ctx, id, false)
}

func (s *SQLiteStore) EnableHabit(ctx context.Context, id string) error {
	return s.setHabitActive(ctx, id, true)
}

func (s *SQLiteStore) setHabitActive(ctx context.Context, id string, active bool) error {
	return s.withTx(ctx, []string{migration.TableHabits}, func(tx *sql.Tx) error {
		h, err := getHabit(ctx, tx, id)
		if err != nil {
			return err
		}
		if h.IsActive == active {
			return nil
		}
		h.IsActive = active
		return putDoc(ctx, tx, migration.TableHabits, h.ID, h)
	})
}

// DeleteHabit hard-deletes a habit, first deleting its log entries when cascadeLogs is set
func (s *SQLiteStore) DeleteHabit(ctx context.Context, id string, cascadeLogs bool) error {
	tables := []string{migration.TableHabits}
	if cascadeLogs {
		tables = append(tables, migration.TableLogEntries)
	}

	return s.withTx(ctx, tables, func(tx *sql.Tx) error {
		if _, err := getHabit(ctx, tx, id); err != nil {
			return err
		}

		if cascadeLogs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM log_entries WHERE habit_id = ?", id); err != nil {
				return fmt.Errorf("failed to delete log entries: %w", err)
			}
		}

		_, err := deleteDoc(ctx, tx, migration.TableHabits, id)
		return err
	})
}

// ReorderHabits sets order = index for each listed id
func (s *SQLiteStore) ReorderHabits(ctx context.Context, orderedIDs []string) error {
	return s.withTx(ctx, []string{migration.TableHabits}, func(tx *sql.Tx) error {
		habits := make([]models.Habit, 0, len(orderedIDs))
		seen := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			if seen[id] {
				return apperrors.Invalid("orderedIds", "duplicate id %q", id)
			}
			seen[id] = true

			h, err := getHabit(ctx, tx, id)
			if err != nil {
				return err
			}
			habits = append(habits, h)
		}

		for i, h := range habits {
			h.Order = i
			if err := putDoc(ctx, tx, migration.TableHabits, h.ID, h); err != nil {
				return err
			}
		}
		return nil
	})
}
