package source

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"type":"user","timestamp":"2025-06-01T10:00:00Z"}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_ProjectLayout(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "proj-a", "sess-1.jsonl"))
	touch(t, filepath.Join(root, "proj-a", "sess-2.jsonl"))
	touch(t, filepath.Join(root, "proj-b", "sess-3.jsonl"))
	// Subagent log under the fixed layout.
	touch(t, filepath.Join(root, "proj-a", "sess-1", "subagents", "agent-x.jsonl"))
	// Off-layout files must be ignored.
	touch(t, filepath.Join(root, "stray.jsonl"))
	touch(t, filepath.Join(root, "proj-a", "sess-1", "notes.jsonl"))
	touch(t, filepath.Join(root, "proj-a", "sess-1", "subagents", "other.jsonl"))

	files := Discover(Roots{ProjectsDir: root})

	if len(files) != 4 {
		t.Fatalf("discovered %d files, want 4", len(files))
	}

	var subagents int
	ids := make(map[string]bool)
	for _, f := range files {
		ids[f.SessionID] = true
		if f.IsSubagent {
			subagents++
			if f.ParentSession != "sess-1" {
				t.Errorf("ParentSession = %q, want sess-1", f.ParentSession)
			}
		}
	}
	if subagents != 1 {
		t.Errorf("subagent count = %d, want 1", subagents)
	}
	if !ids["sess-1/agent-x"] {
		t.Errorf("subagent session ID missing parent scope: %v", ids)
	}
}

func TestDiscover_ExtraDirAnyDepth(t *testing.T) {
	extra := t.TempDir()
	touch(t, filepath.Join(extra, "a.jsonl"))
	touch(t, filepath.Join(extra, "deep", "nested", "b.jsonl"))
	touch(t, filepath.Join(extra, "deep", "c.txt"))

	files := Discover(Roots{ExtraDirs: []string{extra}})
	if len(files) != 2 {
		t.Fatalf("discovered %d files, want 2", len(files))
	}
}

func TestDiscover_MissingRoots(t *testing.T) {
	files := Discover(Roots{
		ProjectsDir: filepath.Join(t.TempDir(), "does-not-exist"),
		ExtraDirs:   []string{filepath.Join(t.TempDir(), "also-missing")},
	})
	if len(files) != 0 {
		t.Fatalf("discovered %d files from missing roots, want 0", len(files))
	}
}
