package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unitscope/unitscope/pkg/journal"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints per-collection statistics from the run journal.",
	Long:  "Prints per-collection statistics from the run journal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := filepath.Join(viper.GetString("data_dir"), "unitscope.db")
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("journal not found: %s. Run 'unitscope harvest' first", dbPath)
		}

		db, err := journal.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No runs in the journal to generate stats.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "COLLECTION\tRUNS\tLAST RUN\tUNITS\tADDED\tREMOVED\t")

		var totalRuns, totalUnits, totalAdded, totalRemoved int
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%d\t\n",
				s.Collection, s.Runs, s.LastRun.Format("2006-01-02"), s.LastTotal, s.TotalAdded, s.TotalRemoved)
			totalRuns += s.Runs
			totalUnits += s.LastTotal
			totalAdded += s.TotalAdded
			totalRemoved += s.TotalRemoved
		}

		fmt.Fprintln(w, " \t \t \t \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t \t%d\t%d\t%d\t\n", totalRuns, totalUnits, totalAdded, totalRemoved)

		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
