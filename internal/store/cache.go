// Package store provides a SQLite-backed cache of per-file parse reductions.
//
// The cache is purely an accelerator: a lookup miss or any storage error
// degrades to reparsing the file, never to a failed scan.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halcyondev/notchstat/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS parsed_files (
    file_path   TEXT PRIMARY KEY,
    mtime_ns    INTEGER NOT NULL,
    size_bytes  INTEGER NOT NULL,
    stats_json  TEXT NOT NULL,
    parsed_at   TEXT NOT NULL
);
`

// ParseCache stores FileStats keyed by file path with an mtime+size
// fingerprint, so unchanged files are never reparsed.
type ParseCache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*ParseCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &ParseCache{db: db}, nil
}

// Close closes the cache database.
func (c *ParseCache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached reduction for a file if its fingerprint still
// matches. Any error is treated as a miss.
func (c *ParseCache) Lookup(path string, mtimeNs, sizeBytes int64) (model.FileStats, bool) {
	var blob string
	err := c.db.QueryRow(
		"SELECT stats_json FROM parsed_files WHERE file_path = ? AND mtime_ns = ? AND size_bytes = ?",
		path, mtimeNs, sizeBytes,
	).Scan(&blob)
	if err != nil {
		return model.FileStats{}, false
	}

	var stats model.FileStats
	if err := json.Unmarshal([]byte(blob), &stats); err != nil {
		return model.FileStats{}, false
	}
	return stats, true
}

// Store saves a file reduction with its fingerprint, replacing any prior row.
func (c *ParseCache) Store(stats model.FileStats, mtimeNs, sizeBytes int64) error {
	blob, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO parsed_files (file_path, mtime_ns, size_bytes, stats_json, parsed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		stats.Path, mtimeNs, sizeBytes, string(blob), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Prune removes rows for files no longer present on disk.
func (c *ParseCache) Prune(live map[string]struct{}) error {
	rows, err := c.db.Query("SELECT file_path FROM parsed_files")
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return err
		}
		if _, ok := live[path]; !ok {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, path := range stale {
		if _, err := c.db.Exec("DELETE FROM parsed_files WHERE file_path = ?", path); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of cached file reductions.
func (c *ParseCache) Count() (int, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM parsed_files").Scan(&n)
	return n, err
}
