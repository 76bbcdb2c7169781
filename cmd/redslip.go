package cmd

import (
	"github.com/spf13/cobra"

	"github.com/erptools/nsauto/internal/navigate"
)

var redslipCmd = &cobra.Command{
	Use:   "redslip <input.xlsx>",
	Short: "Create corrective credit memos (red slips) from return authorizations",
	Long: `Reads a workbook of approved returns and, for each row, opens the
return authorization, presses refund, sets the memo date, applies the
original invoice (unless the amount is zero) and saves the credit memo.

Expected columns: 返品内部ID, 日付, 請求書番号, 金額.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(args[0], func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow {
			return navigate.Redslip(sel, ep, opts)
		})
	},
}

func init() {
	redslipCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Audit workbook path (default <workflow>_result_<timestamp>.xlsx)")
	rootCmd.AddCommand(redslipCmd)
}
