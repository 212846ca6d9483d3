package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/halcyondev/notchstat/internal/config"
	"github.com/halcyondev/notchstat/internal/model"
	"github.com/halcyondev/notchstat/internal/quota"
	"github.com/halcyondev/notchstat/internal/snapshot"
	"github.com/halcyondev/notchstat/internal/tui"
	"github.com/halcyondev/notchstat/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view of the notch figures",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()
	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes.
	// Without this, lipgloss may default to Ascii profile (no colors).
	lipgloss.SetColorProfile(termenv.TrueColor)

	var quotaFn func(ctx context.Context) *quota.Status
	if client := quota.NewClient(config.GetSessionKey(cfg), cfg.Quota.BaseURL); client != nil {
		quotaFn = client.Fetch
	}

	app := tui.NewApp(tui.Config{
		Read: func() (*model.DerivedStats, error) { return readStats(cfg) },
		Refresh: func() error {
			_, _, err := refreshOnce(cfg, false)
			return err
		},
		Quota:    quotaFn,
		LivePath: filepath.Join(cfg.CacheDir(), snapshot.LiveFile),
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch error: %w", err)
	}
	return nil
}
