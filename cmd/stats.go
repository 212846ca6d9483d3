package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/halcyondev/notchstat/internal/cli"

	"github.com/spf13/cobra"
)

var flagStatsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show derived stats from the cache",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "Emit raw JSON for the display layer")
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	derived, err := readStats(cfg)
	if err != nil {
		return err
	}
	if derived == nil {
		fmt.Println("  No stats cache yet. Run `notchstat refresh` first.")
		return nil
	}

	if flagStatsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(derived)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("notchstat " + derived.Date))
	fmt.Println()
	fmt.Println(cli.RenderKeyValue("Today", fmt.Sprintf("%s tokens, %d messages, %d sessions, %d tool calls",
		cli.FormatTokens(derived.TodayTokens), derived.MessageCount, derived.SessionCount, derived.ToolCallCount)))
	fmt.Println(cli.RenderKeyValue("All time", fmt.Sprintf("%s tokens, %s messages, %s sessions",
		cli.FormatTokens(derived.AllTimeTokens),
		cli.FormatNumber(int64(derived.AllTimeMessages)),
		cli.FormatNumber(int64(derived.AllTimeSessions)))))
	fmt.Println(cli.RenderKeyValue("Record day", fmt.Sprintf("%s (%s tokens)",
		derived.Record.Date, cli.FormatTokens(derived.Record.Tokens))))
	if derived.FirstSessionDate != "" {
		fmt.Println(cli.RenderKeyValue("First session", derived.FirstSessionDate))
	}
	if derived.LongestSession != nil {
		fmt.Println(cli.RenderKeyValue("Longest session", cli.FormatDurationMs(derived.LongestSession.DurationMs)))
	}
	if derived.SpeculationSavedMs > 0 {
		fmt.Println(cli.RenderKeyValue("Time saved", cli.FormatDurationMs(derived.SpeculationSavedMs)))
	}
	fmt.Println()

	if len(derived.RecentDays) > 0 {
		t := cli.Table{
			Title:   "Recent days",
			Headers: []string{"Date", "Tokens", "Messages"},
		}
		for _, d := range derived.RecentDays {
			t.Rows = append(t.Rows, []string{
				d.Date,
				cli.FormatTokens(d.Tokens),
				cli.FormatNumber(int64(d.Messages)),
			})
		}
		fmt.Println(cli.RenderTable(t))
	}

	if len(derived.Heatmap) > 0 {
		fmt.Println("  Activity")
		fmt.Println(cli.RenderHeatmap(derived.Heatmap))
	}

	fmt.Println("  Hour of day")
	fmt.Println(cli.RenderHourBars(derived.HourCounts))
	fmt.Println()
	fmt.Printf("  Generated %s\n", derived.GeneratedAt.Format(time.RFC3339))
	fmt.Println()

	return nil
}
