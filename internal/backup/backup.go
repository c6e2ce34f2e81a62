package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/constants"
	apperrors "github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/snapshot"
)

var backupLog = logger.Component("backup")

const (
	minuteLayout = "20060102-1504"
	secondLayout = "20060102-150405"
)

// Source is the store being backed up
type Source interface {
	ExportSnapshot(ctx context.Context) (*snapshot.Snapshot, error)
	ImportSnapshot(ctx context.Context, doc *snapshot.Document) error
}

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path      string
	Timestamp time.Time
	Size      int64

	counter int
}

// Manager writes snapshot backups to a directory and keeps the newest few
type Manager struct {
	store      Source
	backupDir  string
	maxBackups int
	now        func() time.Time
}

// NewManager creates a backup manager. A maxBackups below 1 uses the default.
func NewManager(store Source, backupDir string, maxBackups int) *Manager {
	if maxBackups < 1 {
		maxBackups = constants.MaxBackups
	}
	return &Manager{
		store:      store,
		backupDir:  backupDir,
		maxBackups: maxBackups,
		now:        time.Now,
	}
}

// DefaultDir is the backup directory next to the database
func DefaultDir(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), constants.BackupDirName)
}

// GetBackupDir returns the backup directory path
func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

// CreateBackup exports the store to a new timestamped snapshot file
func (m *Manager) CreateBackup(ctx context.Context) (string, error) {
	return m.createBackup(ctx, false)
}

// Auto takes a backup on behalf of another operation. Failure is logged and
// reported as ErrSinkUnavailable so the caller can carry on.
func (m *Manager) Auto(ctx context.Context) (string, error) {
	path, err := m.CreateBackup(ctx)
	if err != nil {
		backupLog.Warn("automatic backup failed", "dir", m.backupDir, "error", err)
		return "", fmt.Errorf("%w: %v", apperrors.ErrSinkUnavailable, err)
	}
	return path, nil
}

// createBackup skips rotation when saving the pre-restore state so a restore
// never deletes the backup it is restoring from
func (m *Manager) createBackup(ctx context.Context, skipRotation bool) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath, err := m.nextBackupPath()
	if err != nil {
		return "", err
	}

	snap, err := m.store.ExportSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export snapshot: %w", err)
	}
	if err := snapshot.Write(backupPath, snap); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if !skipRotation {
		if err := m.rotateBackups(); err != nil {
			backupLog.Warn("failed to rotate old backups", "error", err)
		}
	}

	backupLog.Info("backup created", "path", backupPath)
	return backupPath, nil
}

// nextBackupPath names the backup after the current minute, adding seconds
// and then a counter when that name is taken
func (m *Manager) nextBackupPath() (string, error) {
	now := m.now()
	name := func(stamp string) string {
		return filepath.Join(m.backupDir, constants.BackupFilePrefix+stamp+constants.BackupFileSuffix)
	}

	path := name(now.Format(minuteLayout))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	stamp := now.Format(secondLayout)
	path = name(stamp)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if counter > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = name(fmt.Sprintf("%s-%d", stamp, counter))
	}
}

// parseBackupName extracts the timestamp and collision counter from a backup file name
func parseBackupName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, constants.BackupFilePrefix) || !strings.HasSuffix(name, constants.BackupFileSuffix) {
		return time.Time{}, 0, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), constants.BackupFileSuffix)

	// YYYYMMDD-HHMMSS-N carries a counter
	counter := 0
	if parts := strings.Split(stamp, "-"); len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, 0, false
		}
		stamp = parts[0] + "-" + parts[1]
		counter = n
	}

	for _, layout := range []string{minuteLayout, secondLayout} {
		if ts, err := time.ParseInLocation(layout, stamp, time.Local); err == nil {
			return ts, counter, true
		}
	}
	return time.Time{}, 0, false
}

// ListBackups returns all available backups, newest first
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	if _, err := os.Stat(m.backupDir); os.IsNotExist(err) {
		return []BackupInfo{}, nil
	}

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		timestamp, counter, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(m.backupDir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			Path:      path,
			Timestamp: timestamp,
			Size:      info.Size(),
			counter:   counter,
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].counter > backups[j].counter
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// rotateBackups removes old backups beyond the retention limit
func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}

	for i := m.maxBackups; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// RestoreBackup replaces the store's contents with a backup. The current
// state is saved first; nothing is changed if the backup is unreadable.
func (m *Manager) RestoreBackup(ctx context.Context, backupPath string) (string, error) {
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return "", fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	doc, err := snapshot.Read(backupPath)
	if err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	current, err := m.createBackup(ctx, true)
	if err != nil {
		return "", fmt.Errorf("failed to backup current data before restore: %w", err)
	}

	if err := m.store.ImportSnapshot(ctx, doc); err != nil {
		return current, fmt.Errorf("failed to restore backup: %w", err)
	}

	backupLog.Info("backup restored", "path", backupPath, "previous", current)
	return current, nil
}
