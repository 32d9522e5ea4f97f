package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unitscope/unitscope/pkg/journal"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent harvest runs from the journal (default 30)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		limit, _ := cmd.Flags().GetInt("limit")

		dbPath := filepath.Join(viper.GetString("data_dir"), "unitscope.db")
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("journal not found: %s. Run 'unitscope harvest' first", dbPath)
		}
		db, err := journal.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), collection, limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs in the journal yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DATE\tCOLLECTION\tUNITS\tADDED\tREMOVED\tFAILED\tREQUESTS\tTOOK\t")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t\n",
				r.Date.Format("2006-01-02"), r.Collection, r.TotalUnits, r.Added, r.Removed,
				r.FailedCells, r.APIRequests, r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
		}
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().StringP("collection", "c", "all", "Only show runs for this collection")
	runsCmd.Flags().Int("limit", 30, "Number of recent runs to show")
}
