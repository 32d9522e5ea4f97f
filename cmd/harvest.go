package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/config"
	"github.com/unitscope/unitscope/pkg/diff"
	"github.com/unitscope/unitscope/pkg/harvest"
	"github.com/unitscope/unitscope/pkg/journal"
	"github.com/unitscope/unitscope/pkg/locator"
	"github.com/unitscope/unitscope/pkg/units"
)

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Sweep the locator API and write today's snapshot, daily deltas and journal entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'unitscope harvest --help' for available flags", args[0])
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		collection, _ := cmd.Flags().GetString("collection")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		quiet, _ := cmd.Flags().GetBool("quiet")
		local, _ := cmd.Flags().GetBool("local")

		if concurrency > 0 {
			cfg.Concurrency = concurrency
		}

		keys := cfg.Keys()
		if collection != "" && collection != "all" {
			if _, err := cfg.Collection(collection); err != nil {
				return err
			}
			keys = []string{collection}
		}

		// One harvest at a time per data dir. A cron slot that overruns must
		// not interleave snapshot writes with the next run.
		lock, err := utils.NewRunLock(cfg.DataDir)
		if err != nil {
			return err
		}
		if err := lock.Lock(); err != nil {
			return err
		}
		defer lock.Unlock()

		// Local mode replays stored snapshots through the differ, no API
		// calls and no journal entries.
		if local {
			pipeline := &harvest.Pipeline{Config: cfg}
			today := time.Now()
			for _, key := range keys {
				report, err := pipeline.DiffDates(key, today.AddDate(0, 0, -1), today, true)
				if err != nil {
					return err
				}
				fmt.Printf("%s (local replay):\n", key)
				printReport(report, quiet)
			}
			return nil
		}

		db, err := journal.Open(filepath.Join(cfg.DataDir, "unitscope.db"))
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer db.Close()

		client := locator.NewClient(cfg.Endpoint, cfg.Referer)
		if len(cfg.LoginMarkers) > 0 {
			client.LoginMarkers = cfg.LoginMarkers
		}

		pipeline := &harvest.Pipeline{
			Config:  cfg,
			Fetcher: client,
			Journal: db,
		}

		ctx := context.Background()
		if collection != "" && collection != "all" {
			summary, err := pipeline.HarvestCollection(ctx, collection)
			if err != nil {
				return err
			}
			printSummary(summary, quiet)
			return nil
		}

		summaries, err := pipeline.HarvestAll(ctx)
		for _, summary := range summaries {
			printSummary(summary, quiet)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	harvestCmd.Flags().StringP("collection", "c", "all", "Collection key to harvest, or \"all\"")
	harvestCmd.Flags().Int("concurrency", 0, "Override the configured worker count per region")
	harvestCmd.Flags().Bool("local", false, "Diff yesterday's and today's stored snapshots instead of querying the API")
	harvestCmd.Flags().BoolP("quiet", "q", false, "Only print totals, not the individual added/removed units")
}

func printSummary(s *harvest.RunSummary, quiet bool) {
	fmt.Printf("%s: %d units (%d fetched, %d duplicates, %d requests, %d failed cells)\n",
		s.Collection, s.Result.Set.Len(), s.Result.Fetched, s.Result.Duplicates,
		s.Result.APIRequests, len(s.Result.Failed))

	if s.FirstRun {
		fmt.Printf("%s: first harvest, nothing to diff against yet\n", s.Collection)
		return
	}
	printReport(s.Report, quiet)
}

func printReport(r diff.Report, quiet bool) {
	if !quiet {
		printUnits("🆕", r.PrimaryAdded)
		printUnits("🆕", r.SecondaryAdded)
		printUnits("❌", r.PrimaryRemoved)
		printUnits("❌", r.SecondaryRemoved)
	}
	fmt.Printf("added: %d, removed: %d\n", len(r.Added), len(r.Removed))
}

func printUnits(marker string, list []units.Unit) {
	for _, u := range list {
		fmt.Printf("%s %s  %-12s %s\n", marker, u.ID, u.TypeDisplay, u.Name)
	}
}
