package cmd

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/halcyondev/notchstat/internal/config"
	"github.com/halcyondev/notchstat/internal/logger"
	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/pipeline"
	"github.com/halcyondev/notchstat/internal/refresh"
	"github.com/halcyondev/notchstat/internal/snapshot"
	"github.com/halcyondev/notchstat/internal/source"
	"github.com/halcyondev/notchstat/internal/stats"
	"github.com/halcyondev/notchstat/internal/store"
)

// parseCacheFile is the SQLite parse cache name under the cache directory.
const parseCacheFile = "parse-cache.db"

// newScanner builds the scan pipeline for the resolved config. The returned
// func releases the parse cache and must always be called.
func newScanner(cfg config.Config) (pipeline.Scanner, func()) {
	sc := pipeline.Scanner{
		Roots: source.Roots{
			ProjectsDir: cfg.ProjectsDir(),
			ExtraDirs:   cfg.Paths.DesktopDirs,
		},
	}

	closer := func() {}
	if !flagNoCache {
		cache, err := store.Open(filepath.Join(cfg.CacheDir(), parseCacheFile))
		if err != nil {
			logger.Warn("parse cache unavailable, reparsing everything", "error", err)
		} else {
			sc.Cache = cache
			closer = func() { _ = cache.Close() }
		}
	}
	return sc, closer
}

func newManager(cfg config.Config, sc pipeline.Scanner) *snapshot.Manager {
	return &snapshot.Manager{Dir: cfg.CacheDir(), Scan: sc.Scan}
}

// refreshOnce acquires the refresh lock, applies the weekly-force policy,
// runs the cache manager, and records the run. The bool reports whether a
// refresh actually ran: lock contention is a clean skip, not an error.
func refreshOnce(cfg config.Config, forceFlag bool) (snapshot.RunSummary, bool, error) {
	dir := cfg.CacheDir()

	lock, err := refresh.Acquire(dir)
	if errors.Is(err, refresh.ErrLocked) {
		logger.Info("refresh already running, skipping")
		return snapshot.RunSummary{}, false, nil
	}
	if err != nil {
		return snapshot.RunSummary{}, false, err
	}
	defer func() { _ = lock.Release() }()

	sc, done := newScanner(cfg)
	defer done()

	state := refresh.LoadState(dir)
	force := forceFlag || refresh.Decide(state, time.Now())

	summary, err := newManager(cfg, sc).Run(force)
	if err != nil {
		return summary, true, err
	}

	if err := refresh.SaveState(dir, refresh.MarkRun(state, force, time.Now())); err != nil {
		logger.Warn("saving refresh state failed", "error", err)
	}
	return summary, true, nil
}

// readStats derives display stats from the live snapshot. Returns nil stats
// when no cache exists yet.
func readStats(cfg config.Config) (*model.DerivedStats, error) {
	sc, done := newScanner(cfg)
	defer done()

	r := stats.Reader{
		LivePath: filepath.Join(cfg.CacheDir(), snapshot.LiveFile),
		Scan:     sc.Scan,
	}
	return r.Read()
}
