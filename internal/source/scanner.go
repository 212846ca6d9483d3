package source

import (
	"io/fs"
	"path/filepath"
	"strings"
)

const (
	subagentDirName = "subagents"
	subagentPrefix  = "agent-"
	logExt          = ".jsonl"
)

// Roots names the directory trees that hold session logs.
type Roots struct {
	// ProjectsDir is the primary per-project session tree:
	// <ProjectsDir>/<project>/<session>.jsonl plus
	// <ProjectsDir>/<project>/<session>/subagents/agent-*.jsonl.
	ProjectsDir string

	// ExtraDirs are alternate trees scanned recursively for .jsonl files
	// at arbitrary depth.
	ExtraDirs []string
}

// Discover walks all roots and returns every qualifying session file.
// Unlistable directories and malformed layouts are skipped silently; logs
// are written concurrently by the agent tool and absence is routine.
func Discover(roots Roots) []DiscoveredFile {
	var files []DiscoveredFile

	if roots.ProjectsDir != "" {
		files = append(files, discoverProjects(roots.ProjectsDir)...)
	}
	for _, dir := range roots.ExtraDirs {
		files = append(files, discoverTree(dir)...)
	}
	return files
}

// discoverProjects walks the primary tree, accepting only the two known
// layouts: a session file directly under a project directory, or a subagent
// log in the fixed subagents subdirectory with the agent- prefix.
func discoverProjects(root string) []DiscoveredFile {
	var files []DiscoveredFile

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.IsDir() || filepath.Ext(path) != logExt {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		name := d.Name()

		switch {
		case len(parts) == 2:
			files = append(files, DiscoveredFile{
				Path:      path,
				SessionID: strings.TrimSuffix(name, logExt),
			})
		case len(parts) == 4 && parts[2] == subagentDirName && strings.HasPrefix(name, subagentPrefix):
			// Key subagents by parent+agent to avoid collisions across sessions.
			files = append(files, DiscoveredFile{
				Path:          path,
				SessionID:     parts[1] + "/" + strings.TrimSuffix(name, logExt),
				IsSubagent:    true,
				ParentSession: parts[1],
			})
		}
		return nil
	})

	return files
}

// discoverTree walks an alternate root, taking any .jsonl file at any depth.
func discoverTree(root string) []DiscoveredFile {
	var files []DiscoveredFile

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.IsDir() || filepath.Ext(path) != logExt {
			return nil
		}
		files = append(files, DiscoveredFile{
			Path:      path,
			SessionID: strings.TrimSuffix(d.Name(), logExt),
		})
		return nil
	})

	return files
}
