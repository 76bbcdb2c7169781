package navigate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/records"
	"github.com/erptools/nsauto/internal/retry"
)

// Endpoints builds record URLs under the ERP base URL. The flows jump
// straight to a record's screen by internal ID instead of driving the
// global search, which is both faster and immune to search-layout changes.
type Endpoints struct {
	Base         string
	PurgeRecType int // custom record type of the order-processing middle table
}

func (e Endpoints) base() string {
	return strings.TrimRight(e.Base, "/")
}

func (e Endpoints) returnURL(id string) string {
	return fmt.Sprintf("%s/app/accounting/transactions/rtnauth.nl?id=%s", e.base(), id)
}

func (e Endpoints) creditMemoURL(id string) string {
	return fmt.Sprintf("%s/app/accounting/transactions/custcred.nl?id=%s", e.base(), id)
}

func (e Endpoints) salesOrderURL(id string) string {
	return fmt.Sprintf("%s/app/accounting/transactions/salesord.nl?id=%s", e.base(), id)
}

func (e Endpoints) purgeEditURL(id string) string {
	return fmt.Sprintf("%s/app/common/custom/custrecordentry.nl?rectype=%d&id=%s&e=T", e.base(), e.PurgeRecType, id)
}

func (e Endpoints) paymentURL(id string) string {
	return fmt.Sprintf("%s/app/accounting/transactions/custpymt.nl?id=%s&e=T", e.base(), id)
}

func (e Endpoints) purgeListURL() string {
	return fmt.Sprintf("%s/app/common/custom/custrecordentrylist.nl?rectype=%d", e.base(), e.PurgeRecType)
}

// waiter gives composite step actions the same bounded waits the machine
// uses between steps.
type waiter struct {
	timeout time.Duration
	poll    time.Duration
}

func newWaiter(opts Options) waiter {
	opts.fill()
	return waiter{timeout: opts.Timeout, poll: opts.Poll}
}

func (w waiter) visible(ctx context.Context, d browser.Driver, sel string) error {
	return retry.Poll(ctx, w.timeout, w.poll, func(ctx context.Context) (bool, error) {
		return d.Visible(ctx, sel)
	})
}

// seen reports visibility with a short grace period, for optional elements.
func (w waiter) seen(ctx context.Context, d browser.Driver, sel string, grace time.Duration) bool {
	err := retry.Poll(ctx, grace, w.poll, func(ctx context.Context) (bool, error) {
		return d.Visible(ctx, sel)
	})
	return err == nil
}

// RedslipSchema is the input contract for red-slip creation.
func RedslipSchema() records.Schema {
	return records.Schema{
		IDColumn: "return_id",
		Columns: []records.Column{
			{Name: "return_id", Header: "返品内部ID", Required: true, Kind: records.KindText},
			{Name: "date", Header: "日付", Required: false, Kind: records.KindDate},
			{Name: "invoice_no", Header: "請求書番号", Required: false, Kind: records.KindText},
			{Name: "amount", Header: "金額", Required: true, Kind: records.KindAmount},
		},
	}
}

// Redslip creates a corrective credit memo from a return authorization:
// open the return, press refund, adjust the memo's date, apply the invoice
// (unless the amount is zero), save.
func Redslip(sel Selectors, ep Endpoints, opts Options) Flow {
	w := newWaiter(opts)

	return Flow{
		Name:         "redslip",
		Schema:       RedslipSchema(),
		ExistsStatus: models.StatusFailed,

		Exists: func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
			if err := d.Navigate(ctx, ep.returnURL(rec.ID)); err != nil {
				return false, err
			}
			if err := w.visible(ctx, d, sel.Return.MainForm); err != nil {
				return false, err
			}
			return d.Visible(ctx, sel.Return.CreditMemoLink)
		},

		Steps: func(rec models.InputRecord) []Step {
			return []Step{
				{
					Name:       "open-return",
					State:      models.NavResultsList,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Navigate(ctx, ep.returnURL(rec.ID))
					},
					Await: Signal{Visible: sel.Return.RefundButton},
				},
				{
					Name:       "refund",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, sel.Return.RefundButton)
					},
					Await: Signal{Visible: sel.Entry.Save},
				},
				{
					Name:       "set-date",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						if rec.Field("date") == "" {
							return ErrSkipStep
						}
						if err := d.Fill(ctx, sel.Entry.Date, rec.Field("date")); err != nil {
							return err
						}
						return d.Press(ctx, sel.Entry.Date, browser.KeyEnter)
					},
				},
				{
					Name:       "apply-invoice",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						// Zero-amount memos are saved without applying an invoice.
						if rec.Field("amount") == "0" || rec.Field("invoice_no") == "" {
							return ErrSkipStep
						}
						// The apply tab may already be open; a failed click is fine.
						_ = d.Click(ctx, sel.Entry.ApplyTab)
						if err := w.visible(ctx, d, sel.Entry.ItemSelect); err != nil {
							return fmt.Errorf("item select box: %w", err)
						}
						if err := d.Fill(ctx, sel.Entry.ItemSelect, rec.Field("invoice_no")); err != nil {
							return err
						}
						return d.Press(ctx, sel.Entry.ItemSelect, browser.KeyEnter)
					},
				},
				{
					Name:       "save",
					State:      models.NavConfirmDialog,
					Idempotent: false,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, sel.Entry.Save)
					},
					Await: Signal{TextSel: sel.SavedMessage, Text: sel.SavedText},
				},
			}
		},
	}
}

// AdjustParams are the fixed values the adjustment pass writes into every
// credit memo.
type AdjustParams struct {
	Memo      string
	Location  string
	Bin       string
	InvStatus string
	MaxRows   int
}

// DefaultAdjustParams mirrors the warehouse's standing FF-3 rework values.
func DefaultAdjustParams() AdjustParams {
	return AdjustParams{
		Memo:      "FF-3処理済み",
		Location:  "弁天倉庫",
		Bin:       "FF-3",
		InvStatus: "不良品",
		MaxRows:   30,
	}
}

// AdjustSchema is the input contract for the adjustment pass.
func AdjustSchema() records.Schema {
	return records.Schema{
		IDColumn: "internal_id",
		Columns: []records.Column{
			{Name: "internal_id", Header: "内部ID", Required: true, Kind: records.KindText},
		},
	}
}

// Adjust edits existing credit memos: stamp the memo text, move the
// location, and route every line item's inventory detail to the rework bin.
func Adjust(sel Selectors, ep Endpoints, opts Options, params AdjustParams) Flow {
	w := newWaiter(opts)
	if params.MaxRows <= 0 {
		params.MaxRows = 30
	}

	return Flow{
		Name:         "adjust",
		Schema:       AdjustSchema(),
		ExistsStatus: models.StatusSuccess,

		Exists: func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
			if err := d.Navigate(ctx, ep.creditMemoURL(rec.ID)); err != nil {
				return false, err
			}
			if err := w.visible(ctx, d, sel.Return.MainForm); err != nil {
				return false, err
			}
			body, err := d.Text(ctx, sel.Return.MainForm)
			if err != nil {
				return false, err
			}
			return params.Memo != "" && strings.Contains(body, params.Memo), nil
		},

		Steps: func(rec models.InputRecord) []Step {
			return []Step{
				{
					Name:       "open-memo",
					State:      models.NavResultsList,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Navigate(ctx, ep.creditMemoURL(rec.ID))
					},
					Await: Signal{Visible: sel.Entry.Edit},
				},
				{
					Name:       "edit",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, sel.Entry.Edit)
					},
					Await: Signal{Visible: sel.Entry.Save},
				},
				{
					Name:       "stamp-memo",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						if err := d.Fill(ctx, sel.Entry.Memo, params.Memo); err != nil {
							return err
						}
						return d.Press(ctx, sel.Entry.Memo, browser.KeyTab)
					},
				},
				{
					Name:       "set-location",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						if params.Location == "" {
							return ErrSkipStep
						}
						if err := d.Fill(ctx, sel.Entry.Location, params.Location); err != nil {
							return err
						}
						return d.Press(ctx, sel.Entry.Location, browser.KeyEnter)
					},
				},
				{
					Name:       "inventory-details",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return adjustRows(ctx, d, sel, w, params)
					},
				},
				{
					Name:       "save",
					State:      models.NavConfirmDialog,
					Idempotent: false,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, sel.Entry.Save)
					},
					Await: Signal{TextSel: sel.SavedMessage, Text: sel.SavedText},
				},
			}
		},
	}
}

// adjustRows walks the item table and pushes each line's inventory detail
// into the rework bin. Lines without a detail icon are untracked items and
// are skipped.
func adjustRows(ctx context.Context, d browser.Driver, sel Selectors, w waiter, params AdjustParams) error {
	for i := 1; i <= params.MaxRows; i++ {
		rowSel := fmt.Sprintf(sel.Inventory.RowFormat, i)
		if ok, err := d.Visible(ctx, rowSel); err != nil {
			return err
		} else if !ok {
			return nil // past the last row
		}

		iconSel := fmt.Sprintf(sel.Inventory.DetailIcon, i)
		if !w.seen(ctx, d, iconSel, w.poll*4) {
			continue
		}

		if err := d.Click(ctx, iconSel); err != nil {
			return fmt.Errorf("row %d detail icon: %w", i, err)
		}
		if err := w.visible(ctx, d, sel.Inventory.DetailLink); err != nil {
			return fmt.Errorf("row %d detail link: %w", i, err)
		}
		if err := d.Click(ctx, sel.Inventory.DetailLink); err != nil {
			return fmt.Errorf("row %d open popup: %w", i, err)
		}
		if err := w.visible(ctx, d, sel.Inventory.Bin); err != nil {
			return fmt.Errorf("row %d popup: %w", i, err)
		}

		if err := d.Fill(ctx, sel.Inventory.Bin, params.Bin); err != nil {
			return fmt.Errorf("row %d bin: %w", i, err)
		}
		if err := d.Press(ctx, sel.Inventory.Bin, browser.KeyTab); err != nil {
			return err
		}
		if err := d.Fill(ctx, sel.Inventory.Status, params.InvStatus); err != nil {
			return fmt.Errorf("row %d status: %w", i, err)
		}
		if err := d.Press(ctx, sel.Inventory.Status, browser.KeyEnter); err != nil {
			return err
		}

		if w.seen(ctx, d, sel.Inventory.RowOK, w.poll*4) {
			if err := d.Click(ctx, sel.Inventory.RowOK); err != nil {
				return fmt.Errorf("row %d line ok: %w", i, err)
			}
		}
		if err := w.visible(ctx, d, sel.Inventory.PopupOK); err != nil {
			return fmt.Errorf("row %d popup ok: %w", i, err)
		}
		if err := d.Click(ctx, sel.Inventory.PopupOK); err != nil {
			return fmt.Errorf("row %d close popup: %w", i, err)
		}
	}
	return nil
}

// BillParams maps customer codes to the department the invoice is booked
// under.
type BillParams struct {
	Departments map[string]string
}

// DefaultBillParams carries the standing customer/department routing.
func DefaultBillParams() BillParams {
	return BillParams{
		Departments: map[string]string{
			"C000222": "EC (BtoC）",
			"C000142": "営業(BtoB）",
		},
	}
}

// BillSchema is the input contract for invoicing held orders.
func BillSchema() records.Schema {
	return records.Schema{
		IDColumn: "internal_id",
		Columns: []records.Column{
			{Name: "internal_id", Header: "内部ID", Required: true, Kind: records.KindText},
			{Name: "date", Header: "日期", Required: true, Kind: records.KindDate},
			{Name: "customer", Header: "顾客", Required: true, Kind: records.KindText},
		},
	}
}

// Bill converts a held sales order into an invoice, dating it and routing it
// to the customer's department.
func Bill(sel Selectors, ep Endpoints, opts Options, params BillParams) Flow {
	w := newWaiter(opts)

	return Flow{
		Name:         "bill",
		Schema:       BillSchema(),
		ExistsStatus: models.StatusFailed,

		Exists: func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
			if err := d.Navigate(ctx, ep.salesOrderURL(rec.ID)); err != nil {
				return false, err
			}
			if err := w.visible(ctx, d, sel.Bill.Status); err != nil {
				return false, err
			}
			status, err := d.Text(ctx, sel.Bill.Status)
			if err != nil {
				return false, err
			}
			return strings.Contains(status, "請求"), nil
		},

		Steps: func(rec models.InputRecord) []Step {
			return []Step{
				{
					Name:       "open-order",
					State:      models.NavResultsList,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Navigate(ctx, ep.salesOrderURL(rec.ID))
					},
					Await: Signal{Visible: sel.Bill.BillButton},
				},
				{
					Name:       "bill",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, sel.Bill.BillButton)
					},
					Await: Signal{Visible: sel.Entry.Save},
				},
				{
					Name:       "set-date",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						if err := d.Fill(ctx, sel.Entry.Date, rec.Field("date")); err != nil {
							return err
						}
						return d.Press(ctx, sel.Entry.Date, browser.KeyEnter)
					},
				},
				{
					Name:       "set-department",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						dept, ok := params.Departments[rec.Field("customer")]
						if !ok {
							// Unknown customers keep the order's default department.
							return ErrSkipStep
						}
						if err := d.Fill(ctx, sel.Bill.Department, dept); err != nil {
							return err
						}
						return d.Press(ctx, sel.Bill.Department, browser.KeyEnter)
					},
				},
				{
					Name:       "save",
					State:      models.NavConfirmDialog,
					Idempotent: false,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, sel.Entry.Save)
					},
					Await: Signal{TextSel: sel.SavedMessage, Text: sel.SavedText},
				},
			}
		},
	}
}
