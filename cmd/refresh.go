package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagForce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Update the stats cache from session logs",
	Long:  "Run one cache refresh: seal history through yesterday, then rebuild the live overlay with today's sessions.",
	RunE:  runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&flagForce, "force", false, "Discard the base snapshot and recompute all history")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	summary, ran, err := refreshOnce(cfg, flagForce)
	if err != nil {
		return err
	}
	if !ran {
		fmt.Println("  refresh skipped: another run is in progress")
		return nil
	}

	fmt.Printf("  refresh %s: %d parsed, %d cached, %d sessions today, %d total (sealed through %s)\n",
		summary.Mode,
		summary.FilesParsed,
		summary.CacheHits,
		summary.TodaySessions,
		summary.TotalSessions,
		summary.LastComputedDate,
	)
	return nil
}
