package navigate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/records"
	"github.com/erptools/nsauto/internal/retry"
)

// ApplyParams identify the open customer payment the invoices are applied
// against. Tolerance is in cents; amounts within it count as matching.
type ApplyParams struct {
	PaymentID string
	Tolerance int64
}

// DefaultApplyParams allows a one-cent rounding difference.
func DefaultApplyParams() ApplyParams {
	return ApplyParams{Tolerance: 1}
}

// ApplySchema is the input contract for invoice application: one invoice
// number per row with the amount expected to land on the payment.
func ApplySchema() records.Schema {
	return records.Schema{
		IDColumn: "invoice_no",
		Columns: []records.Column{
			{Name: "invoice_no", Header: "請求書番号", Required: true, Kind: records.KindText},
			{Name: "amount", Header: "請求書金額", Required: true, Kind: records.KindAmount},
		},
	}
}

// Apply books invoices onto an open customer payment: type the invoice
// number into the quick-apply box and verify the payment total moved by the
// invoice's amount. The payment form stays open across records; the operator
// reviews and saves it once the batch is done.
func Apply(sel Selectors, ep Endpoints, opts Options, params ApplyParams) Flow {
	w := newWaiter(opts)
	if params.Tolerance < 0 {
		params.Tolerance = 0
	}

	return Flow{
		Name:   "apply",
		Schema: ApplySchema(),

		Steps: func(rec models.InputRecord) []Step {
			return []Step{
				{
					Name:       "open-payment",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						// The form carries every application made so far, so
						// it is only opened once per batch.
						if open, _ := d.Visible(ctx, sel.Entry.ItemSelect); open {
							return ErrSkipStep
						}
						return d.Navigate(ctx, ep.paymentURL(params.PaymentID))
					},
					Await: Signal{Visible: sel.Entry.ItemSelect},
				},
				{
					Name:       "apply",
					State:      models.NavEntryForm,
					Idempotent: false,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return applyInvoice(ctx, d, sel, w, rec, params)
					},
				},
			}
		},
	}
}

// applyInvoice performs one application and verifies the payment total moved
// by exactly the expected amount.
func applyInvoice(ctx context.Context, d browser.Driver, sel Selectors, w waiter, rec models.InputRecord, params ApplyParams) error {
	expected, err := moneyCents(rec.Field("amount"))
	if err != nil {
		return &models.StepError{
			Kind:  models.KindMalformedInput,
			State: models.NavEntryForm,
			Step:  "apply",
			Msg:   fmt.Sprintf("invoice amount %q: %v", rec.Field("amount"), err),
		}
	}

	beforeText, err := d.Text(ctx, sel.Apply.PaymentField)
	if err != nil {
		return fmt.Errorf("payment total: %w", err)
	}
	before, err := moneyCents(beforeText)
	if err != nil {
		return fmt.Errorf("payment total %q: %w", beforeText, err)
	}

	if err := d.Fill(ctx, sel.Entry.ItemSelect, rec.ID); err != nil {
		return err
	}
	if err := d.Press(ctx, sel.Entry.ItemSelect, browser.KeyEnter); err != nil {
		return err
	}

	// The form recalculates asynchronously and may first raise a dialog
	// (unknown invoice, already applied). Wait for the total to move.
	var alerts []string
	after := before
	_ = retry.Poll(ctx, w.timeout, w.poll, func(ctx context.Context) (bool, error) {
		if text, ok := d.AcceptAlert(ctx); ok {
			alerts = append(alerts, text)
		}
		text, err := d.Text(ctx, sel.Apply.PaymentField)
		if err != nil {
			return false, err
		}
		cur, err := moneyCents(text)
		if err != nil {
			return false, nil
		}
		after = cur
		return cur != before, nil
	})

	diff := after - before
	if delta := diff - expected; delta > params.Tolerance || delta < -params.Tolerance {
		msg := fmt.Sprintf("payment moved by %s, expected %s", formatCents(diff), formatCents(expected))
		if len(alerts) > 0 {
			msg = fmt.Sprintf("%s; dialogs: %s", msg, strings.Join(alerts, " | "))
		}
		return &models.StepError{
			Kind:  models.KindUnexpectedContent,
			State: models.NavEntryForm,
			Step:  "apply",
			Msg:   msg,
		}
	}
	return nil
}

// moneyCents parses a displayed or normalized amount into cents, ignoring
// currency symbols and thousands separators.
func moneyCents(s string) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return 0, fmt.Errorf("no digits in %q", s)
	}

	neg := strings.HasPrefix(clean, "-")
	clean = strings.TrimPrefix(clean, "-")

	whole, frac, _ := strings.Cut(clean, ".")
	if whole == "" {
		whole = "0"
	}
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	cents := n * 100

	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount %q: %w", s, err)
		}
		cents += f
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
