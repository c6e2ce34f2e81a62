package storage

import (
	"context"

	"github.com/julianstephens/tally/internal/live"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/snapshot"
)

type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error
	SchemaVersion(ctx context.Context) (int, error)

	// Categories
	GetCategoriesOrdered(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (models.Category, error)
	UpdateCategory(ctx context.Context, id string, patch models.CategoryPatch) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ReorderCategories(ctx context.Context, orderedIDs []string) error

	// Habits
	GetHabits(ctx context.Context, filter models.HabitFilter) ([]models.Habit, error)
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	GetHabitsWithLogs(ctx context.Context, date string, group *models.GroupTag) ([]models.HabitWithLog, error)
	CreateHabit(ctx context.Context, h models.Habit) (models.Habit, error)
	UpdateHabit(ctx context.Context, id string, patch models.HabitPatch) (models.Habit, error)
	ArchiveHabit(ctx context.Context, id string) error
	EnableHabit(ctx context.Context, id string) error
	DeleteHabit(ctx context.Context, id string, cascadeLogs bool) error
	ReorderHabits(ctx context.Context, orderedIDs []string) error

	// Log entries
	GetLogEntry(ctx context.Context, habitID, date string) (*models.LogEntry, error)
	GetLogEntriesForDate(ctx context.Context, date string) ([]models.LogEntry, error)
	GetLogEntriesInRange(ctx context.Context, startDate, endDate string) ([]models.LogEntry, error)
	LogHabit(ctx context.Context, habitID, date string, value models.Value, note *string) (string, error)
	SkipHabit(ctx context.Context, habitID, date, reason string) (string, error)
	DeleteLogEntry(ctx context.Context, habitID, date string) error

	// Settings
	GetSetting(ctx context.Context, key string, dst interface{}) (bool, error)
	SetSetting(ctx context.Context, key string, value interface{}) error
	DeleteSetting(ctx context.Context, key string) error
	GetSettings(ctx context.Context) ([]models.Setting, error)
	GetBool(ctx context.Context, key string, def bool) (bool, error)
	GetString(ctx context.Context, key string, def string) (string, error)
	GetInt(ctx context.Context, key string, def int) (int, error)

	// Bulk transfer
	ExportSnapshot(ctx context.Context) (*snapshot.Snapshot, error)
	ImportSnapshot(ctx context.Context, doc *snapshot.Document) error

	// Live reads
	WatchHabitsWithLogs(ctx context.Context, date string, group *models.GroupTag) <-chan live.Result[[]models.HabitWithLog]
	WatchLogEntriesForDate(ctx context.Context, date string) <-chan live.Result[[]models.LogEntry]
	WatchCategories(ctx context.Context) <-chan live.Result[[]models.Category]
	WatchHabits(ctx context.Context, filter models.HabitFilter) <-chan live.Result[[]models.Habit]

	// Maintenance
	Check(ctx context.Context) (*CheckReport, error)

	// Utils
	GetPath() string
}

var _ Provider = (*SQLiteStore)(nil)
