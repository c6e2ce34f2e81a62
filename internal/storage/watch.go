package storage

import (
	"context"

	"github.com/julianstephens/tally/internal/live"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/internal/models"
)

// WatchHabitsWithLogs delivers GetHabitsWithLogs now and after every change
// to categories, habits or log entries, until ctx is done.
func (s *SQLiteStore) WatchHabitsWithLogs(ctx context.Context, date string, group *models.GroupTag) <-chan live.Result[[]models.HabitWithLog] {
	deps := []string{migration.TableCategories, migration.TableHabits, migration.TableLogEntries}
	return live.Watch(ctx, s.hub, deps, func(ctx context.Context) ([]models.HabitWithLog, error) {
		return s.GetHabitsWithLogs(ctx, date, group)
	})
}

func (s *SQLiteStore) WatchLogEntriesForDate(ctx context.Context, date string) <-chan live.Result[[]models.LogEntry] {
	return live.Watch(ctx, s.hub, []string{migration.TableLogEntries}, func(ctx context.Context) ([]models.LogEntry, error) {
		return s.GetLogEntriesForDate(ctx, date)
	})
}

func (s *SQLiteStore) WatchCategories(ctx context.Context) <-chan live.Result[[]models.Category] {
	return live.Watch(ctx, s.hub, []string{migration.TableCategories}, s.GetCategoriesOrdered)
}

func (s *SQLiteStore) WatchHabits(ctx context.Context, filter models.HabitFilter) <-chan live.Result[[]models.Habit] {
	return live.Watch(ctx, s.hub, []string{migration.TableHabits}, func(ctx context.Context) ([]models.Habit, error) {
		return s.GetHabits(ctx, filter)
	})
}
