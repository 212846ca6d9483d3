// Package refresh decides how each cache refresh runs and serializes
// concurrent runs with a PID lock file.
package refresh

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halcyondev/notchstat/internal/model"
)

// StateFile records refresh history under the cache directory.
const StateFile = "refresh-state.json"

// forceIntervalDays is how often a full recompute replaces the incremental
// path, bounding drift from retroactively edited or deleted log files.
const forceIntervalDays = 7

// State tracks when the two refresh flavors last completed.
type State struct {
	LastIncremental string `json:"lastIncremental,omitempty"`
	LastForce       string `json:"lastForce,omitempty"`
}

// LoadState reads refresh history. Missing or corrupt state reads as empty,
// which Decide treats as "never ran": the worst case is an extra full
// recompute.
func LoadState(dir string) State {
	data, err := os.ReadFile(filepath.Join(dir, StateFile)) //nolint:gosec // path from local config
	if err != nil {
		return State{}
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}
	}
	return s
}

// SaveState persists refresh history atomically.
func SaveState(dir string, s State) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding refresh state: %w", err)
	}

	path := filepath.Join(dir, StateFile)
	tmp, err := os.CreateTemp(dir, StateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing refresh state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming state into place: %w", err)
	}
	return nil
}

// Decide reports whether this run should force a full recompute: yes when a
// forced run has never happened or the last one is at least a week old.
func Decide(s State, now time.Time) bool {
	if s.LastForce == "" {
		return true
	}
	return model.DaysBetween(s.LastForce, model.DateKey(now)) >= forceIntervalDays
}

// MarkRun updates state after a successful refresh.
func MarkRun(s State, forced bool, now time.Time) State {
	today := model.DateKey(now)
	s.LastIncremental = today
	if forced {
		s.LastForce = today
	}
	return s
}
