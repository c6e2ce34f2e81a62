package storage

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

func TestLogHabitScenario(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	h1 := mustCreateHabit(t, store, models.Habit{
		ID:         "h1",
		Name:       "Walk",
		CategoryID: constants.FixedPositiveCategoryID,
		Kind:       models.KindYesNo,
		Interval:   models.IntervalDaily,
	})

	if _, err := store.LogHabit(ctx, h1.ID, "2026-01-05", models.BoolValue(true), nil); err != nil {
		t.Fatalf("LogHabit failed: %v", err)
	}
	day, err := store.GetHabitsWithLogs(ctx, "2026-01-05", nil)
	if err != nil {
		t.Fatalf("GetHabitsWithLogs failed: %v", err)
	}
	if len(day) != 1 || day[0].Habit.ID != "h1" || day[0].Log == nil {
		t.Fatalf("expected h1 with its entry, got %+v", day)
	}
	if v, ok := day[0].Log.Value.Bool(); !ok || !v {
		t.Errorf("expected value true, got %v", day[0].Log.Value)
	}

	if _, err := store.LogHabit(ctx, h1.ID, "2026-01-05", models.BoolValue(false), nil); err != nil {
		t.Fatalf("LogHabit failed: %v", err)
	}
	day, err = store.GetHabitsWithLogs(ctx, "2026-01-05", nil)
	if err != nil {
		t.Fatalf("GetHabitsWithLogs failed: %v", err)
	}
	if len(day) != 1 || day[0].Log == nil {
		t.Fatalf("expected h1 with its entry, got %+v", day)
	}
	if v, ok := day[0].Log.Value.Bool(); !ok || v {
		t.Errorf("expected value false, got %v", day[0].Log.Value)
	}

	entries, err := store.GetLogEntriesForDate(ctx, "2026-01-05")
	if err != nil {
		t.Fatalf("GetLogEntriesForDate failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected one record total, got %d", len(entries))
	}
}

func TestLogHabitUpsertKeepsIdentity(t *testing.T) {
	store, clock, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	habit := mustCreateHabit(t, store, models.Habit{Name: "Pushups", Kind: models.KindCount, Unit: "reps"})

	note := "morning"
	firstID, err := store.LogHabit(ctx, habit.ID, "2025-03-10", models.NumberValue(10), &note)
	if err != nil {
		t.Fatalf("LogHabit failed: %v", err)
	}
	created := clock.Now()

	for i := 1; i <= 5; i++ {
		clock.Advance(time.Minute)
		id, err := store.LogHabit(ctx, habit.ID, "2025-03-10", models.NumberValue(float64(10+i)), nil)
		if err != nil {
			t.Fatalf("LogHabit failed: %v", err)
		}
		if id != firstID {
			t.Fatalf("upsert changed identity: %s -> %s", firstID, id)
		}
	}

	entry, err := store.GetLogEntry(ctx, habit.ID, "2025-03-10")
	if err != nil || entry == nil {
		t.Fatalf("GetLogEntry failed: %v %v", entry, err)
	}
	if n, _ := entry.Value.Number(); n != 15 {
		t.Errorf("expected the last value 15 to win, got %v", entry.Value)
	}
	if entry.Note != "morning" {
		t.Errorf("a nil note must keep the existing note, got %q", entry.Note)
	}
	if !entry.CreatedAt.Equal(created) {
		t.Errorf("createdAt must be preserved, got %v want %v", entry.CreatedAt, created)
	}
	if !entry.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updatedAt must be refreshed, got %v want %v", entry.UpdatedAt, clock.Now())
	}

	empty := ""
	if _, err := store.LogHabit(ctx, habit.ID, "2025-03-10", models.NumberValue(1), &empty); err != nil {
		t.Fatalf("LogHabit failed: %v", err)
	}
	entry, _ = store.GetLogEntry(ctx, habit.ID, "2025-03-10")
	if entry.Note != "" {
		t.Errorf("an explicit empty note clears the note, got %q", entry.Note)
	}
}

func TestSkipHabit(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	yesNo := mustCreateHabit(t, store, models.Habit{Name: "Walk"})
	count := mustCreateHabit(t, store, models.Habit{Name: "Pages", Kind: models.KindCount})

	skipID, err := store.SkipHabit(ctx, yesNo.ID, "2025-03-10", "sick")
	if err != nil {
		t.Fatalf("SkipHabit failed: %v", err)
	}
	entry, _ := store.GetLogEntry(ctx, yesNo.ID, "2025-03-10")
	if !entry.Skipped() || entry.SkippedReason != "sick" {
		t.Errorf("expected skipped entry, got %+v", entry)
	}
	if v, ok := entry.Value.Bool(); !ok || v {
		t.Errorf("yes/no skip stores false, got %v", entry.Value)
	}

	if _, err := store.SkipHabit(ctx, count.ID, "2025-03-10", "travel"); err != nil {
		t.Fatalf("SkipHabit failed: %v", err)
	}
	entry, _ = store.GetLogEntry(ctx, count.ID, "2025-03-10")
	if !entry.Value.IsNone() {
		t.Errorf("count skip stores no value, got %v", entry.Value)
	}

	// logging the skipped day clears the skip reason on the same record
	logID, err := store.LogHabit(ctx, yesNo.ID, "2025-03-10", models.BoolValue(true), nil)
	if err != nil {
		t.Fatalf("LogHabit failed: %v", err)
	}
	if logID != skipID {
		t.Errorf("expected the skip record to be updated in place, got %s and %s", skipID, logID)
	}
	entry, _ = store.GetLogEntry(ctx, yesNo.ID, "2025-03-10")
	if entry.Skipped() {
		t.Errorf("logging must clear the skip reason, got %q", entry.SkippedReason)
	}

	if _, err := store.SkipHabit(ctx, yesNo.ID, "2025-03-11", "  "); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected ErrValidation for empty reason, got %v", err)
	}
}

func TestLogHabitValidatesValue(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	mood := mustCreateHabit(t, store, models.Habit{Name: "Mood", Kind: models.KindRating, Options: []string{"low", "ok", "high"}})
	walk := mustCreateHabit(t, store, models.Habit{Name: "Walk"})
	read := mustCreateHabit(t, store, models.Habit{Name: "Read", Kind: models.KindCount})

	tests := []struct {
		name    string
		habitID string
		date    string
		value   models.Value
		want    error
	}{
		{"rating outside options", mood.ID, "2025-03-10", models.StringValue("great"), apperrors.ErrValidation},
		{"number for yes/no", walk.ID, "2025-03-10", models.NumberValue(1), apperrors.ErrValidation},
		{"NaN count", read.ID, "2025-03-10", models.NumberValue(math.NaN()), apperrors.ErrValidation},
		{"infinite count", read.ID, "2025-03-10", models.NumberValue(math.Inf(1)), apperrors.ErrValidation},
		{"negative infinite count", read.ID, "2025-03-10", models.NumberValue(math.Inf(-1)), apperrors.ErrValidation},
		{"no value", walk.ID, "2025-03-10", models.NoValue(), apperrors.ErrValidation},
		{"bad date", walk.ID, "2025-3-10", models.BoolValue(true), apperrors.ErrValidation},
		{"unknown habit", "missing", "2025-03-10", models.BoolValue(true), apperrors.ErrEntityNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.LogHabit(ctx, tt.habitID, tt.date, tt.value, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := store.LogHabit(ctx, mood.ID, "2025-03-10", models.StringValue("ok"), nil); err != nil {
		t.Errorf("valid rating rejected: %v", err)
	}

	entries, err := store.GetLogEntriesForDate(ctx, "2025-03-10")
	if err != nil {
		t.Fatalf("GetLogEntriesForDate failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("rejected writes must not be stored, got %d entries", len(entries))
	}
}

func TestLogHabitRejectedValueLeavesNoTrace(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	read := mustCreateHabit(t, store, models.Habit{Name: "Read", Kind: models.KindCount})

	notify, cancel := store.Hub().Subscribe("log_entries")
	defer cancel()

	if _, err := store.LogHabit(ctx, read.ID, "2025-03-10", models.NumberValue(math.NaN()), nil); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	select {
	case <-notify:
		t.Error("a rejected value must not publish a change")
	default:
	}

	entry, err := store.GetLogEntry(ctx, read.ID, "2025-03-10")
	if err != nil {
		t.Fatalf("GetLogEntry failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected no entry, got %+v", entry)
	}
}

func TestGetLogEntriesInRange(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	habit := mustCreateHabit(t, store, models.Habit{Name: "Walk"})

	start := time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC)
	var dates []string
	for i := 0; i < 20; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(constants.DateFormat))
	}

	// insertion order must not matter
	shuffled := append([]string(nil), dates...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for _, d := range shuffled {
		if _, err := store.LogHabit(ctx, habit.ID, d, models.BoolValue(true), nil); err != nil {
			t.Fatalf("LogHabit failed: %v", err)
		}
	}

	ranges := [][2]string{
		{"2025-02-25", "2025-03-03"},
		{"2025-01-01", "2025-02-20"},
		{"2025-03-11", "2025-12-31"},
		{"2025-03-01", "2025-03-01"},
		{"2025-01-01", "2025-01-31"},
	}
	for _, r := range ranges {
		got, err := store.GetLogEntriesInRange(ctx, r[0], r[1])
		if err != nil {
			t.Fatalf("GetLogEntriesInRange(%s, %s) failed: %v", r[0], r[1], err)
		}

		var want []string
		for _, d := range dates {
			if d >= r[0] && d <= r[1] {
				want = append(want, d)
			}
		}
		if len(got) != len(want) {
			t.Fatalf("range %v: expected %d entries, got %d", r, len(want), len(got))
		}
		for i, e := range got {
			if e.Date != want[i] {
				t.Errorf("range %v position %d: expected %s, got %s", r, i, want[i], e.Date)
			}
		}
	}

	if _, err := store.GetLogEntriesInRange(ctx, "2025-03-02", "2025-03-01"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected ErrValidation for reversed range, got %v", err)
	}
}

func TestDeleteLogEntry(t *testing.T) {
	store, _, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	habit := mustCreateHabit(t, store, models.Habit{Name: "Walk"})
	if _, err := store.LogHabit(ctx, habit.ID, "2025-03-10", models.BoolValue(true), nil); err != nil {
		t.Fatalf("LogHabit failed: %v", err)
	}

	if err := store.DeleteLogEntry(ctx, habit.ID, "2025-03-10"); err != nil {
		t.Fatalf("DeleteLogEntry failed: %v", err)
	}
	entry, err := store.GetLogEntry(ctx, habit.ID, "2025-03-10")
	if err != nil {
		t.Fatalf("GetLogEntry failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected no entry after delete, got %+v", entry)
	}

	if err := store.DeleteLogEntry(ctx, habit.ID, "2025-03-10"); !errors.Is(err, apperrors.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}
