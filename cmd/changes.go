package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unitscope/unitscope/pkg/journal"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent unit changes recorded by harvest (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		changeType, _ := cmd.Flags().GetString("type")
		days, _ := cmd.Flags().GetInt("days")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOut, _ := cmd.Flags().GetBool("json")

		if changeType == "all" {
			changeType = ""
		}
		if changeType != "" && changeType != "added" && changeType != "removed" {
			return fmt.Errorf("bad --type %q: must be added, removed or all", changeType)
		}

		dbPath := filepath.Join(viper.GetString("data_dir"), "unitscope.db")
		if _, err := os.Stat(dbPath); err != nil {
			return fmt.Errorf("journal not found: %s. Run 'unitscope harvest' first", dbPath)
		}
		db, err := journal.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		opts := journal.ChangeOptions{
			Collection: collection,
			Type:       changeType,
			Limit:      limit,
		}
		if days > 0 {
			opts.Since = time.Now().AddDate(0, 0, -days)
		}

		changes, err := db.ListChanges(context.Background(), opts)
		if err != nil {
			return err
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(changes)
		}

		for _, c := range changes {
			ts := c.OccurredAt.Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %-7s  %-8s  %-10s  %-9s  %s\n", ts, c.ChangeType, c.Collection, c.Category, c.UnitID, c.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().StringP("collection", "c", "all", "Only show changes for this collection")
	changesCmd.Flags().StringP("type", "t", "all", "Only show one change type: added, removed or all")
	changesCmd.Flags().Int("days", 0, "Only show changes from the last N days")
	changesCmd.Flags().Int("limit", 50, "Number of recent changes to show")
	changesCmd.Flags().Bool("json", false, "Print changes as JSON instead of rows")
}
