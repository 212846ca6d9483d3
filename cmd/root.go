package cmd

import (
	"os"

	"github.com/halcyondev/notchstat/internal/config"
	"github.com/halcyondev/notchstat/internal/logger"

	"github.com/spf13/cobra"
)

var (
	flagDataDir  string
	flagDesktop  []string
	flagCacheDir string
	flagNoCache  bool
	flagQuiet    bool
)

var rootCmd = &cobra.Command{
	Use:   "notchstat",
	Short: "Session stats backend for the notch display",
	Long:  "Scan agent session logs, maintain the stats cache, and serve the figures the notch display shows.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagQuiet {
			logger.SetQuiet()
		}
	},
	RunE: runStats,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Agent data directory (default ~/.claude)")
	rootCmd.PersistentFlags().StringArrayVar(&flagDesktop, "desktop-dir", nil, "Extra log tree to scan (repeatable)")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "Cache directory (default XDG cache)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite parse cache, reparse everything")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress log output")
}

// loadConfig resolves configuration with flags overriding the config file.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("config unreadable, using defaults", "error", err)
	}

	if flagDataDir != "" {
		cfg.Paths.AgentDir = flagDataDir
	}
	if len(flagDesktop) > 0 {
		cfg.Paths.DesktopDirs = append(cfg.Paths.DesktopDirs, flagDesktop...)
	}
	if flagCacheDir != "" {
		cfg.Paths.CacheDir = flagCacheDir
	}

	return cfg
}
