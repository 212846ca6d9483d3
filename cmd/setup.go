package cmd

import (
	"fmt"
	"strings"

	"github.com/halcyondev/notchstat/internal/config"
	"github.com/halcyondev/notchstat/internal/source"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg := loadConfig()

	files := source.Discover(source.Roots{
		ProjectsDir: cfg.ProjectsDir(),
		ExtraDirs:   cfg.Paths.DesktopDirs,
	})

	fmt.Println()
	fmt.Println("  Welcome to notchstat!")
	if len(files) > 0 {
		fmt.Printf("  Found %d session files under %s\n", len(files), cfg.ProjectsDir())
	}
	fmt.Println()

	agentDir := cfg.Paths.AgentDir
	desktopDirs := strings.Join(cfg.Paths.DesktopDirs, ", ")
	sessionKey := cfg.Quota.SessionKey
	themeName := cfg.Appearance.Theme

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Agent data directory").
				Description("Where the CLI agent keeps its session logs. Leave empty for ~/.claude.").
				Placeholder("~/.claude").
				Value(&agentDir),
			huh.NewInput().
				Title("Extra log directories").
				Description("Comma-separated list of desktop-app log trees, scanned recursively.").
				Value(&desktopDirs),
			huh.NewInput().
				Title("claude.ai session key").
				Description("Optional, enables rate-limit display. Starts with sk-ant-sid.").
				EchoMode(huh.EchoModePassword).
				Value(&sessionKey),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(
					huh.NewOption("Flexoki Dark", "flexoki-dark"),
					huh.NewOption("Catppuccin Mocha", "catppuccin-mocha"),
					huh.NewOption("Tokyo Night", "tokyo-night"),
					huh.NewOption("Terminal (ANSI 16)", "terminal"),
				).
				Value(&themeName),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}

	cfg.Paths.AgentDir = strings.TrimSpace(agentDir)
	cfg.Paths.DesktopDirs = splitDirs(desktopDirs)
	cfg.Quota.SessionKey = strings.TrimSpace(sessionKey)
	cfg.Appearance.Theme = themeName

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `notchstat setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}

func splitDirs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
