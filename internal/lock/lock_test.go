package lock

import (
	"errors"
	"os"
	"testing"

	ps "github.com/mitchellh/go-ps"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func stubProcesses(t *testing.T, self int, running map[int]string) {
	t.Helper()
	oldFind, oldPID, oldExe := findProcessFunc, currentPID, executableName
	t.Cleanup(func() {
		findProcessFunc, currentPID, executableName = oldFind, oldPID, oldExe
	})

	currentPID = func() int { return self }
	executableName = func() string { return "tally" }
	findProcessFunc = func(pid int) (ps.Process, error) {
		exe, ok := running[pid]
		if !ok {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: exe}, nil
	}
}

func TestAcquireAndRelease(t *testing.T) {
	stubProcesses(t, 100, map[int]string{100: "tally"})
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	content, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("lockfile not written: %v", err)
	}
	if string(content) != "100|tally" {
		t.Errorf("unexpected lockfile content %q", content)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(Path(dir)); !os.IsNotExist(err) {
		t.Errorf("expected lockfile to be removed, stat err = %v", err)
	}
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	stubProcesses(t, 100, map[int]string{100: "tally", 200: "tally"})
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("200|tally"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Acquire(dir)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestAcquireReplacesStaleLock(t *testing.T) {
	tests := []struct {
		name    string
		content string
		running map[int]string
	}{
		{"dead process", "200|tally", map[int]string{}},
		{"pid reused by other program", "200|tally", map[int]string{200: "bash"}},
		{"malformed", "garbage", map[int]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubProcesses(t, 100, tt.running)
			dir := t.TempDir()
			if err := os.WriteFile(Path(dir), []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			l, err := Acquire(dir)
			if err != nil {
				t.Fatalf("expected stale lock to be replaced, got %v", err)
			}
			defer l.Release()

			content, _ := os.ReadFile(Path(dir))
			if string(content) != "100|tally" {
				t.Errorf("unexpected lockfile content %q", content)
			}
		})
	}
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	stubProcesses(t, 100, map[int]string{})
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := os.WriteFile(Path(dir), []byte("300|tally"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Errorf("lockfile owned by another process should survive: %v", err)
	}
}
