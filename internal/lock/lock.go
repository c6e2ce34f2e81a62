// Package lock keeps a second tally process from writing to the same
// database. The lockfile holds "pid|executable" of the owning process.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

var lockLog = logger.Component("lock")

var (
	findProcessFunc = ps.FindProcess
	currentPID      = os.Getpid
	executableName  = func() string { return filepath.Base(os.Args[0]) }
)

// ErrLocked is returned when another live process owns the lockfile
var ErrLocked = errors.New("database is in use by another tally process")

type Lock struct {
	path string
}

// Path returns the lockfile location for a database directory
func Path(dir string) string {
	return filepath.Join(dir, constants.LockfileName)
}

// Acquire takes the lock in dir. A lockfile left behind by a dead process,
// or by a process running some other program, is treated as stale and replaced.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := Path(dir)
	if owner, err := readOwner(path); err == nil {
		if owner.pid != currentPID() && alive(owner) {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, owner.pid)
		}
		lockLog.Debug("Replacing stale lockfile", "path", path, "pid", owner.pid)
	} else if !os.IsNotExist(err) {
		lockLog.Warn("Ignoring unreadable lockfile", "path", path, "error", err)
	}

	content := fmt.Sprintf("%d|%s", currentPID(), executableName())
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lockfile if this process still owns it
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	owner, err := readOwner(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if owner.pid != currentPID() {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

type owner struct {
	pid        int
	executable string
}

func readOwner(path string) (owner, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return owner{}, err
	}

	parts := strings.SplitN(strings.TrimSpace(string(content)), "|", 2)
	if len(parts) != 2 {
		return owner{}, errors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return owner{}, errors.New("invalid process ID in lockfile")
	}
	return owner{pid: pid, executable: parts[1]}, nil
}

func alive(o owner) bool {
	process, err := findProcessFunc(o.pid)
	if err != nil || process == nil {
		return false
	}
	// pid reuse by an unrelated program does not hold the lock
	return process.Executable() == o.executable
}
