package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/erptools/nsauto/internal/navigate"
)

var purgeMode string

var purgeCmd = &cobra.Command{
	Use:   "purge <input.xlsx>",
	Short: "Delete stale order-processing middle-table rows",
	Long: `Reads a workbook of custom-record internal IDs and deletes each row
from the order-processing middle table.

Two modes:
  direct  jump to each record's edit screen and delete from the action
          menu (default, fastest)
  list    drive the paginated list screen, selecting and deleting rows
          page by page

Expected column: 内部ID. Records already gone count as done.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var build func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow
		switch purgeMode {
		case "direct":
			build = navigate.Purge
		case "list":
			build = navigate.PurgeList
		default:
			return fmt.Errorf("unknown purge mode %q (want direct or list)", purgeMode)
		}
		return runWorkflow(args[0], build)
	},
}

func init() {
	purgeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Audit workbook path (default <workflow>_result_<timestamp>.xlsx)")
	purgeCmd.Flags().StringVar(&purgeMode, "mode", "direct", "Deletion mode: direct or list")
	rootCmd.AddCommand(purgeCmd)
}
