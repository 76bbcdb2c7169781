package navigate

import (
	"context"
	"fmt"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/records"
)

// PurgeSchema is the input contract for middle-table purging: one internal
// ID per stale staging row.
func PurgeSchema() records.Schema {
	return records.Schema{
		IDColumn: "internal_id",
		Columns: []records.Column{
			{Name: "internal_id", Header: "内部ID", Required: true, Kind: records.KindText},
		},
	}
}

// Purge deletes one stale middle-table row by jumping straight to its edit
// screen and running the action menu's delete. Deleting is non-idempotent;
// on retry the probe treats a vanished record as work already done.
func Purge(sel Selectors, ep Endpoints, opts Options) Flow {
	w := newWaiter(opts)

	return Flow{
		Name:         "purge",
		Schema:       PurgeSchema(),
		ExistsStatus: models.StatusSuccess, // already deleted counts as done

		Exists: func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
			if err := d.Navigate(ctx, ep.purgeEditURL(rec.ID)); err != nil {
				return false, err
			}
			// A deleted record renders an error page instead of the form.
			if err := w.visible(ctx, d, sel.Purge.ActionMenu); err != nil {
				return true, nil
			}
			return false, nil
		},

		Steps: func(rec models.InputRecord) []Step {
			return []Step{
				{
					Name:       "open-edit",
					State:      models.NavEntryForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Navigate(ctx, ep.purgeEditURL(rec.ID))
					},
					Await: Signal{Visible: sel.Purge.ActionMenu},
				},
				{
					Name:       "delete",
					State:      models.NavConfirmDialog,
					Idempotent: false,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						if err := d.Click(ctx, sel.Purge.ActionMenu); err != nil {
							return fmt.Errorf("action menu: %w", err)
						}
						if err := w.visible(ctx, d, sel.Purge.DeleteItem); err != nil {
							return fmt.Errorf("delete entry: %w", err)
						}
						if err := d.Click(ctx, sel.Purge.DeleteItem); err != nil {
							return fmt.Errorf("delete entry: %w", err)
						}
						// The confirmation is either a JS dialog (accepted by
						// the driver) or an inline modal.
						if w.seen(ctx, d, sel.Purge.ConfirmOK, w.poll*8) {
							if err := d.Click(ctx, sel.Purge.ConfirmOK); err != nil {
								return fmt.Errorf("confirm: %w", err)
							}
						}
						return nil
					},
					Await: Signal{TitleHas: sel.Purge.ListTitle},
				},
			}
		},
	}
}

// PurgeList deletes middle-table rows from the paginated list screen: filter
// for the record, page through the results, select the matching row, and
// confirm deletion on that page before advancing, so selection state is
// never lost across page navigation.
func PurgeList(sel Selectors, ep Endpoints, opts Options) Flow {
	w := newWaiter(opts)
	const maxPages = 50

	return Flow{
		Name:         "purge-list",
		Schema:       PurgeSchema(),
		ExistsStatus: models.StatusSuccess,

		Exists: func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
			if err := d.Navigate(ctx, ep.purgeEditURL(rec.ID)); err != nil {
				return false, err
			}
			if err := w.visible(ctx, d, sel.Purge.ActionMenu); err != nil {
				return true, nil
			}
			return false, nil
		},

		Steps: func(rec models.InputRecord) []Step {
			return []Step{
				{
					Name:       "open-list",
					State:      models.NavSearchForm,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Navigate(ctx, ep.purgeListURL())
					},
					Await: Signal{TitleHas: sel.Purge.ListTitle},
				},
				{
					Name:       "filter",
					State:      models.NavResultsList,
					Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						// The quick filter is optional; without it we page
						// through the unfiltered list.
						if !w.seen(ctx, d, sel.Purge.SearchBox, w.poll*4) {
							return ErrSkipStep
						}
						if err := d.Fill(ctx, sel.Purge.SearchBox, rec.ID); err != nil {
							return err
						}
						return d.Press(ctx, sel.Purge.SearchBox, browser.KeyEnter)
					},
				},
				{
					Name:       "select-and-delete",
					State:      models.NavConfirmDialog,
					Idempotent: false,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return purgeFromList(ctx, d, sel, w, rec, maxPages)
					},
					Await: Signal{TitleHas: sel.Purge.ListTitle},
				},
			}
		},
	}
}

// purgeFromList locates the record's row across result pages. The delete is
// confirmed on the page where the row was found; only then may the loop
// advance.
func purgeFromList(ctx context.Context, d browser.Driver, sel Selectors, w waiter, rec models.InputRecord, maxPages int) error {
	rowSel := fmt.Sprintf(sel.Purge.RowFormat, rec.ID)

	for page := 1; page <= maxPages; page++ {
		if ok, err := d.Visible(ctx, rowSel); err != nil {
			return err
		} else if ok {
			if err := d.Click(ctx, rowSel); err != nil {
				return fmt.Errorf("select row: %w", err)
			}
			if err := d.Click(ctx, sel.Purge.DeleteAll); err != nil {
				return fmt.Errorf("delete selection: %w", err)
			}
			if w.seen(ctx, d, sel.Purge.ConfirmOK, w.poll*8) {
				if err := d.Click(ctx, sel.Purge.ConfirmOK); err != nil {
					return fmt.Errorf("confirm: %w", err)
				}
			}
			return nil
		}

		if empty, err := d.Visible(ctx, sel.Purge.EmptyList); err != nil {
			return err
		} else if empty {
			return fmt.Errorf("list is empty; record %s not found", rec.ID)
		}

		next, err := d.Visible(ctx, sel.Purge.NextPage)
		if err != nil {
			return err
		}
		if !next {
			return fmt.Errorf("record %s not found in list after %d page(s)", rec.ID, page)
		}
		if err := d.Click(ctx, sel.Purge.NextPage); err != nil {
			return fmt.Errorf("next page: %w", err)
		}
		if err := w.visible(ctx, d, sel.Purge.MarkAll); err != nil {
			// The list body re-renders between pages; the mark-all header
			// checkbox is the cheapest reload signal.
			return fmt.Errorf("page %d did not load: %w", page+1, err)
		}
	}
	return fmt.Errorf("record %s not found within %d pages", rec.ID, maxPages)
}
