package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/snapshot"
	"github.com/julianstephens/tally/internal/storage"
)

func setupTestStore(t *testing.T) (*storage.SQLiteStore, func()) {
	t.Helper()

	tempDir := t.TempDir()
	store := storage.NewSQLiteStore(filepath.Join(tempDir, "test.db"), storage.WithMigrationLog(func(string) {}))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize test store: %v", err)
	}

	cleanup := func() {
		store.Close()
	}
	return store, cleanup
}

func addHabit(t *testing.T, store *storage.SQLiteStore, name string) models.Habit {
	t.Helper()
	h, err := store.CreateHabit(context.Background(), models.Habit{
		Name:       name,
		CategoryID: constants.FixedPositiveCategoryID,
		Kind:       models.KindYesNo,
	})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	return h
}

// steppingClock returns a clock that advances by step on every call
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func TestCreateBackup(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	addHabit(t, store, "Walk")

	mgr := NewManager(store, DefaultDir(store.GetPath()), 0)
	backupPath, err := mgr.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	if filepath.Dir(backupPath) != mgr.GetBackupDir() {
		t.Errorf("backup written outside %s: %s", mgr.GetBackupDir(), backupPath)
	}

	doc, err := snapshot.Read(backupPath)
	if err != nil {
		t.Fatalf("backup is not a readable snapshot: %v", err)
	}
	snap, err := doc.Snapshot()
	if err != nil {
		t.Fatalf("failed to decode backup: %v", err)
	}
	if len(snap.Habits) != 1 || snap.Habits[0].Name != "Walk" {
		t.Errorf("expected the habit in the backup, got %+v", snap.Habits)
	}
}

func TestBackupRotation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	const keep = 5
	mgr := NewManager(store, t.TempDir(), keep)
	mgr.now = steppingClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local), time.Hour)

	var created []string
	for i := 0; i < keep+3; i++ {
		path, err := mgr.CreateBackup(context.Background())
		if err != nil {
			t.Fatalf("CreateBackup #%d failed: %v", i, err)
		}
		created = append(created, path)
	}

	backups, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}
	if len(backups) != keep {
		t.Fatalf("expected %d backups after rotation, got %d", keep, len(backups))
	}

	// newest first, and the newest ones were kept
	for i, b := range backups {
		want := created[len(created)-1-i]
		if b.Path != want {
			t.Errorf("position %d: expected %s, got %s", i, want, b.Path)
		}
	}
}

func TestUniqueBackupFilenames(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	mgr := NewManager(store, t.TempDir(), 50)
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	mgr.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 12; i++ {
		path, err := mgr.CreateBackup(context.Background())
		if err != nil {
			t.Fatalf("CreateBackup #%d failed: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("duplicate backup path %s", path)
		}
		seen[path] = true
	}

	backups, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}
	if len(backups) != 12 {
		t.Errorf("expected 12 backups, got %d", len(backups))
	}
}

func TestListBackupsIgnoresOtherFiles(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	dir := filepath.Join(t.TempDir(), "missing")
	mgr := NewManager(store, dir, 0)

	backups, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected no backups for a missing directory, got %d", len(backups))
	}

	if _, err := mgr.CreateBackup(context.Background()); err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}
	for _, name := range []string{"notes.txt", "tally-garbage.json", "tally-20250310-0900.db"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	backups, err = mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups failed: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("expected only the real backup, got %+v", backups)
	}
}

func TestRestoreBackup(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	walk := addHabit(t, store, "Walk")
	mgr := NewManager(store, t.TempDir(), 0)
	mgr.now = steppingClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local), time.Minute)

	backupPath, err := mgr.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	if err := store.DeleteHabit(ctx, walk.ID, true); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}
	addHabit(t, store, "Read")

	previous, err := mgr.RestoreBackup(ctx, backupPath)
	if err != nil {
		t.Fatalf("RestoreBackup failed: %v", err)
	}

	habits, err := store.GetHabits(ctx, models.HabitFilter{})
	if err != nil {
		t.Fatalf("GetHabits failed: %v", err)
	}
	if len(habits) != 1 || habits[0].ID != walk.ID {
		t.Errorf("expected only the backed up habit, got %+v", habits)
	}

	// the pre-restore state was saved
	doc, err := snapshot.Read(previous)
	if err != nil {
		t.Fatalf("pre-restore backup unreadable: %v", err)
	}
	snap, err := doc.Snapshot()
	if err != nil {
		t.Fatalf("failed to decode pre-restore backup: %v", err)
	}
	if len(snap.Habits) != 1 || snap.Habits[0].Name != "Read" {
		t.Errorf("expected pre-restore backup to hold the replaced data, got %+v", snap.Habits)
	}
}

func TestRestoreWithCorruptedBackup(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	addHabit(t, store, "Walk")

	dir := t.TempDir()
	mgr := NewManager(store, dir, 0)

	corrupt := filepath.Join(dir, "tally-20250310-0900.json")
	if err := os.WriteFile(corrupt, []byte(`{"formatVersion": 1}`), 0600); err != nil {
		t.Fatalf("failed to write corrupt backup: %v", err)
	}

	_, err := mgr.RestoreBackup(ctx, corrupt)
	if !errors.Is(err, apperrors.ErrTransferFormatInvalid) {
		t.Fatalf("expected ErrTransferFormatInvalid, got %v", err)
	}

	habits, err := store.GetHabits(ctx, models.HabitFilter{})
	if err != nil {
		t.Fatalf("GetHabits failed: %v", err)
	}
	if len(habits) != 1 {
		t.Errorf("a failed restore must leave data untouched, got %d habits", len(habits))
	}

	if _, err := mgr.RestoreBackup(ctx, filepath.Join(dir, "nope.json")); err == nil {
		t.Error("expected an error for a missing backup file")
	}
}

func TestAutoBackupFailureIsSwallowable(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	// a file where the directory should be makes the backup fail
	blocker := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write blocker: %v", err)
	}

	mgr := NewManager(store, blocker, 0)
	_, err := mgr.Auto(context.Background())
	if !errors.Is(err, apperrors.ErrSinkUnavailable) {
		t.Errorf("expected ErrSinkUnavailable, got %v", err)
	}
}
