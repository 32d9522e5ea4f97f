package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/unitscope/unitscope/pkg/config"
	"github.com/unitscope/unitscope/pkg/grid"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the coverage plan a harvest would sweep, without querying anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		collection, _ := cmd.Flags().GetString("collection")
		showCells, _ := cmd.Flags().GetBool("cells")

		keys := cfg.Keys()
		if collection != "" && collection != "all" {
			if _, err := cfg.Collection(collection); err != nil {
				return err
			}
			keys = []string{collection}
		}

		for _, key := range keys {
			col, err := cfg.Collection(key)
			if err != nil {
				return err
			}

			fmt.Printf("%s (layers: %s)\n", key, col.Layer)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "REGION\tGRID\tPINNED\tCELLS\tCAP\t")
			for _, r := range col.Regions {
				fmt.Fprintf(w, "%s\t%dx%d\t%d\t%d\t%d\t\n",
					r.Name, r.Rows, r.Columns, len(r.Pinned), grid.GridCellCount(r)+len(r.Pinned), r.Cap)
			}
			if len(col.GlobalLayers) > 0 {
				fmt.Fprintf(w, "%s\t \t \t%d\t%d\t\n", grid.GlobalRegionName, len(col.GlobalLayers), col.GlobalCap)
			}
			w.Flush()

			cells := col.Cells()
			fmt.Printf("total: %d queries\n\n", len(cells))

			if showCells {
				for _, c := range cells {
					layer := c.Layer
					if layer == "" {
						layer = col.Layer
					}
					fmt.Printf("  %-24s %12v,%-12v nearest=%-5d %s\n", c.RegionName, c.Lon, c.Lat, c.Cap, layer)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringP("collection", "c", "all", "Collection key to plan, or \"all\"")
	planCmd.Flags().Bool("cells", false, "Also print every query coordinate")
}
