package habits

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
)

func setupTestContext(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()

	store := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), storage.WithMigrationLog(func(string) {}))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	out := &bytes.Buffer{}
	ctx := cli.NewContext(context.Background(), store, nil, nil)
	ctx.Out = out
	ctx.Now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local) }
	return ctx, out
}

func TestHabitAddCmd(t *testing.T) {
	ctx, _ := setupTestContext(t)

	day := 1
	cmd := &HabitAddCmd{
		Name:     "Mood",
		Category: "Build",
		Kind:     "rating",
		Options:  []string{"low", "ok", "high"},
		Interval: "weekly",
		Day:      &day,
		Reminder: "20:30",
	}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("habit add failed: %v", err)
	}

	h, err := ctx.FindHabit("Mood")
	if err != nil {
		t.Fatalf("habit not found: %v", err)
	}
	if h.Kind != models.KindRating || len(h.Options) != 3 {
		t.Errorf("unexpected habit: %+v", h)
	}
	if h.Interval != models.IntervalWeekly || h.TrackingDay == nil || *h.TrackingDay != 1 {
		t.Errorf("expected weekly on Monday, got %s %v", h.Interval, h.TrackingDay)
	}
	if h.Reminder == nil || !h.Reminder.Enabled || h.Reminder.Time != "20:30" {
		t.Errorf("unexpected reminder: %+v", h.Reminder)
	}
	if !h.IsActive {
		t.Error("new habits are active")
	}
}

func TestHabitAddCmdValidation(t *testing.T) {
	ctx, _ := setupTestContext(t)

	cmd := &HabitAddCmd{Name: "Mood", Category: "positive", Kind: "rating", Options: []string{"only"}, Interval: "daily"}
	err := cmd.Run(ctx)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	habits, err := ctx.Store.GetHabits(ctx.Ctx, models.HabitFilter{})
	if err != nil {
		t.Fatalf("failed to list habits: %v", err)
	}
	if len(habits) != 0 {
		t.Errorf("rejected habit must not be stored, found %d", len(habits))
	}
}

func TestHabitListCmd(t *testing.T) {
	ctx, out := setupTestContext(t)

	for _, name := range []string{"Walk", "Read"} {
		if err := (&HabitAddCmd{Name: name, Category: "positive", Kind: "yes_no", Interval: "daily"}).Run(ctx); err != nil {
			t.Fatalf("habit add failed: %v", err)
		}
	}
	if err := (&HabitArchiveCmd{Habit: "Read"}).Run(ctx); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	out.Reset()
	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if strings.Contains(out.String(), "Read") {
		t.Errorf("archived habit listed without --archived:\n%s", out.String())
	}

	out.Reset()
	if err := (&HabitListCmd{Archived: true}).Run(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out.String(), "[ARCHIVED]") {
		t.Errorf("expected archived marker:\n%s", out.String())
	}

	if err := (&HabitEnableCmd{Habit: "Read"}).Run(ctx); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	h, err := ctx.FindHabit("Read")
	if err != nil || !h.IsActive {
		t.Errorf("expected Read to be active again, got %v, %v", h.IsActive, err)
	}
}

func TestHabitEditCmd(t *testing.T) {
	ctx, _ := setupTestContext(t)
	if err := (&HabitAddCmd{Name: "Walk", Category: "positive", Kind: "yes_no", Interval: "daily"}).Run(ctx); err != nil {
		t.Fatalf("habit add failed: %v", err)
	}

	name := "Long walk"
	category := "negative"
	off := "off"
	cmd := &HabitEditCmd{Habit: "Walk", Name: &name, Category: &category, Reminder: &off}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	h, err := ctx.FindHabit("Long walk")
	if err != nil {
		t.Fatalf("renamed habit not found: %v", err)
	}
	if h.CategoryID != "negative" {
		t.Errorf("expected category negative, got %s", h.CategoryID)
	}
}

func TestHabitDeleteCmd(t *testing.T) {
	ctx, out := setupTestContext(t)
	if err := (&HabitAddCmd{Name: "Walk", Category: "positive", Kind: "yes_no", Interval: "daily"}).Run(ctx); err != nil {
		t.Fatalf("habit add failed: %v", err)
	}
	h, _ := ctx.FindHabit("Walk")
	if _, err := ctx.Store.LogHabit(ctx.Ctx, h.ID, "2026-03-10", models.BoolValue(true), nil); err != nil {
		t.Fatalf("failed to log: %v", err)
	}

	ctx.Confirm = func(string, string) (bool, error) { return false, nil }
	if err := (&HabitDeleteCmd{Habit: "Walk"}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !strings.Contains(out.String(), "cancelled") {
		t.Errorf("expected cancellation, got %q", out.String())
	}
	if _, err := ctx.Store.GetHabit(ctx.Ctx, h.ID); err != nil {
		t.Fatalf("declined delete removed the habit: %v", err)
	}

	if err := (&HabitDeleteCmd{Habit: "Walk", Yes: true}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := ctx.Store.GetHabit(ctx.Ctx, h.ID); !errors.Is(err, apperrors.ErrEntityNotFound) {
		t.Errorf("expected habit gone, got %v", err)
	}
	entries, err := ctx.Store.GetLogEntriesForDate(ctx.Ctx, "2026-03-10")
	if err != nil {
		t.Fatalf("failed to read entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected logs deleted with the habit, found %d", len(entries))
	}
}

func TestHabitReorderCmd(t *testing.T) {
	ctx, _ := setupTestContext(t)
	for _, name := range []string{"A", "B", "C"} {
		if err := (&HabitAddCmd{Name: name, Category: "positive", Kind: "yes_no", Interval: "daily"}).Run(ctx); err != nil {
			t.Fatalf("habit add failed: %v", err)
		}
	}

	if err := (&HabitReorderCmd{Habits: []string{"C", "A", "B"}}).Run(ctx); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}

	habits, err := ctx.Store.GetHabits(ctx.Ctx, models.HabitFilter{CategoryID: "positive"})
	if err != nil {
		t.Fatalf("failed to list habits: %v", err)
	}
	var names []string
	for _, h := range habits {
		names = append(names, h.Name)
	}
	if strings.Join(names, ",") != "C,A,B" {
		t.Errorf("expected C,A,B, got %v", names)
	}
}

func TestFormatInterval(t *testing.T) {
	day, date := 3, 15
	tests := []struct {
		habit models.Habit
		want  string
	}{
		{models.Habit{Interval: models.IntervalDaily}, "daily"},
		{models.Habit{Interval: models.IntervalWeekly, TrackingDay: &day}, "weekly on Wed"},
		{models.Habit{Interval: models.IntervalMonthly, TrackingDate: &date}, "monthly on day 15"},
		{models.Habit{Interval: models.IntervalWeekly}, "weekly"},
	}
	for _, tt := range tests {
		if got := FormatInterval(tt.habit); got != tt.want {
			t.Errorf("FormatInterval(%+v) = %q, want %q", tt.habit, got, tt.want)
		}
	}
}
