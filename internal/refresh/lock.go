package refresh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFile is the PID lock name under the cache directory.
const LockFile = "refresh.lock"

// ErrLocked reports that another live process holds the refresh lock.
// Callers treat this as a clean no-op, not a failure.
var ErrLocked = errors.New("refresh: already running")

// Lock is a PID-based file lock serializing refresh runs.
type Lock struct {
	path string
}

// Acquire takes the refresh lock for the current process. A lock file whose
// PID no longer maps to a live process is stale (crashed holder) and gets
// reclaimed.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	path := filepath.Join(dir, LockFile)

	if pid, ok := readLockPID(path); ok {
		if pidAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}
		// Stale lock from a crashed run.
		_ = os.Remove(path)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return os.Remove(l.path)
}

func readLockPID(path string) (int, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path from local config
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// pidAlive probes a process with signal 0. EPERM means the process exists
// but belongs to someone else, which still counts as alive.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
