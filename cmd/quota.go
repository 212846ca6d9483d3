package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/halcyondev/notchstat/internal/cli"
	"github.com/halcyondev/notchstat/internal/config"
	"github.com/halcyondev/notchstat/internal/quota"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show claude.ai rate-limit utilization",
	RunE:  runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}

func runQuota(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()

	client := quota.NewClient(config.GetSessionKey(cfg), cfg.Quota.BaseURL)
	if client == nil {
		fmt.Println("  No session key configured. Run `notchstat setup` or set CLAUDE_SESSION_KEY.")
		return nil
	}

	status := client.Fetch(cmd.Context())
	if status.Error != nil {
		if errors.Is(status.Error, quota.ErrUnauthorized) {
			fmt.Println("  Session key expired or invalid. Run `notchstat setup` to update it.")
			return nil
		}
		return status.Error
	}

	fmt.Println()
	fmt.Println(cli.RenderKeyValue("Organization", status.Org.Name))
	fmt.Println()

	t := cli.Table{
		Title:   "Rate limits",
		Headers: []string{"Window", "Used", "Resets"},
	}
	addRow := func(label string, w *quota.Window) {
		if w == nil {
			return
		}
		resets := "-"
		if !w.ResetsAt.IsZero() {
			resets = w.ResetsAt.Local().Format(time.RFC822)
		}
		t.Rows = append(t.Rows, []string{label, cli.FormatPercent(w.Pct), resets})
	}
	if status.Usage != nil {
		addRow("5 hour", status.Usage.FiveHour)
		addRow("7 day", status.Usage.SevenDay)
		addRow("7 day (Opus)", status.Usage.SevenDayOpus)
		addRow("7 day (Sonnet)", status.Usage.SevenDaySonnet)
	}
	fmt.Println(cli.RenderTable(t))

	return nil
}
