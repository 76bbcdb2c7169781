package cmd

import (
	"github.com/spf13/cobra"

	"github.com/erptools/nsauto/internal/navigate"
)

var applyPaymentID string

var applyCmd = &cobra.Command{
	Use:   "apply <input.xlsx>",
	Short: "Apply invoices to an open customer payment",
	Long: `Reads a workbook of invoice numbers and expected amounts and applies
each invoice to the given customer payment through its quick-apply box,
verifying after every application that the payment total moved by the
invoice's amount.

Expected columns: 請求書番号, 請求書金額. The payment form is left open
and unsaved; review the applications and save it by hand when the batch
is done.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := navigate.DefaultApplyParams()
		params.PaymentID = applyPaymentID

		return runWorkflow(args[0], func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow {
			return navigate.Apply(sel, ep, opts, params)
		})
	},
}

func init() {
	applyCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Audit workbook path (default <workflow>_result_<timestamp>.xlsx)")
	applyCmd.Flags().StringVar(&applyPaymentID, "payment", "", "Internal ID of the customer payment to apply against")
	_ = applyCmd.MarkFlagRequired("payment")
	rootCmd.AddCommand(applyCmd)
}
