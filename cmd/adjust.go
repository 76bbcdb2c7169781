package cmd

import (
	"github.com/spf13/cobra"

	"github.com/erptools/nsauto/internal/navigate"
)

var (
	adjustMemo     string
	adjustLocation string
	adjustBin      string
	adjustStatus   string
)

var adjustCmd = &cobra.Command{
	Use:   "adjust <input.xlsx>",
	Short: "Route returned inventory on existing credit memos to the rework bin",
	Long: `Reads a workbook of credit memo internal IDs and, for each one,
opens the memo in edit mode, stamps the processing memo, moves the
location and pushes every tracked line item's inventory detail into the
rework bin with the damaged status.

Expected column: 内部ID. Memos already carrying the stamp are counted as
done, so a run can be safely resumed after an interruption.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := navigate.DefaultAdjustParams()
		if adjustMemo != "" {
			params.Memo = adjustMemo
		}
		if adjustLocation != "" {
			params.Location = adjustLocation
		}
		if adjustBin != "" {
			params.Bin = adjustBin
		}
		if adjustStatus != "" {
			params.InvStatus = adjustStatus
		}

		return runWorkflow(args[0], func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow {
			return navigate.Adjust(sel, ep, opts, params)
		})
	},
}

func init() {
	adjustCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Audit workbook path (default <workflow>_result_<timestamp>.xlsx)")
	adjustCmd.Flags().StringVar(&adjustMemo, "memo", "", "Processing memo text (default from standing values)")
	adjustCmd.Flags().StringVar(&adjustLocation, "location", "", "Destination location")
	adjustCmd.Flags().StringVar(&adjustBin, "bin", "", "Destination bin")
	adjustCmd.Flags().StringVar(&adjustStatus, "inv-status", "", "Inventory status to assign")
	rootCmd.AddCommand(adjustCmd)
}
