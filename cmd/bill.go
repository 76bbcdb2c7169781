package cmd

import (
	"github.com/spf13/cobra"

	"github.com/erptools/nsauto/internal/navigate"
)

var billCmd = &cobra.Command{
	Use:   "bill <input.xlsx>",
	Short: "Invoice held sales orders, routing them by customer department",
	Long: `Reads a workbook of sales order internal IDs and converts each
order into an invoice, dating it and booking it under the customer's
department. Orders already marked as billed are rejected rather than
invoiced twice.

Expected columns: 内部ID, 日期, 顾客.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := navigate.DefaultBillParams()
		return runWorkflow(args[0], func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow {
			return navigate.Bill(sel, ep, opts, params)
		})
	},
}

func init() {
	billCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Audit workbook path (default <workflow>_result_<timestamp>.xlsx)")
	rootCmd.AddCommand(billCmd)
}
