package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/config"
	"github.com/unitscope/unitscope/pkg/harvest"
)

// deltaCmd represents the delta command
var deltaCmd = &cobra.Command{
	Use:   "delta",
	Short: "Recompute the added/removed lists between two stored snapshots",
	Long: `Recompute the added/removed lists between two stored snapshots without
touching the API. Dates use the snapshot file form (2025_03_09) or ISO
(2025-03-09) and default to yesterday and today.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'unitscope delta --help' for available flags", args[0])
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		collection, _ := cmd.Flags().GetString("collection")
		previous, _ := cmd.Flags().GetString("previous")
		current, _ := cmd.Flags().GetString("current")
		write, _ := cmd.Flags().GetBool("write")
		quiet, _ := cmd.Flags().GetBool("quiet")

		if collection == "" {
			return fmt.Errorf("pick a collection with -c. Configured: %s", strings.Join(cfg.Keys(), ", "))
		}

		curDay := time.Now()
		if current != "" {
			if curDay, err = utils.ParseDateKey(current); err != nil {
				return fmt.Errorf("bad --current date %q: %w", current, err)
			}
		}
		prevDay := curDay.AddDate(0, 0, -1)
		if previous != "" {
			if prevDay, err = utils.ParseDateKey(previous); err != nil {
				return fmt.Errorf("bad --previous date %q: %w", previous, err)
			}
		}

		pipeline := &harvest.Pipeline{Config: cfg}
		report, err := pipeline.DiffDates(collection, prevDay, curDay, write)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s -> %s\n", collection, utils.DateKey(prevDay), utils.DateKey(curDay))
		printReport(report, quiet)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deltaCmd)
	deltaCmd.Flags().StringP("collection", "c", "", "Collection key to diff")
	deltaCmd.Flags().String("previous", "", "Older snapshot date (default: the day before --current)")
	deltaCmd.Flags().String("current", "", "Newer snapshot date (default: today)")
	deltaCmd.Flags().Bool("write", false, "Also write the four daily delta files for the newer date")
	deltaCmd.Flags().BoolP("quiet", "q", false, "Only print totals, not the individual added/removed units")
}
