// Package navigate drives one input record through the ERP's screen sequence.
// The state machine is pure logic over the browser.Driver capability set;
// all timing lives here, all page access goes through the interface, and no
// failure ever propagates past the batch runner as a panic or untyped error.
package navigate

import (
	"context"
	"errors"
	"strings"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/records"
)

// ErrSkipStep is returned by a step action that decided it does not apply to
// this record (e.g. empty optional field). The machine moves on.
var ErrSkipStep = errors.New("step not applicable")

// Signal describes the UI evidence that a step's expected next state has
// been reached. Zero-value means the step completes without waiting.
type Signal struct {
	Visible  string // selector that must be visible
	TextSel  string // selector whose text must contain Text
	Text     string
	TitleHas string // page title must contain this fragment
}

func (s Signal) empty() bool {
	return s.Visible == "" && s.TextSel == "" && s.TitleHas == ""
}

// observe reports whether the signal currently holds.
func (s Signal) observe(ctx context.Context, d browser.Driver) (bool, error) {
	if s.Visible != "" {
		ok, err := d.Visible(ctx, s.Visible)
		if err != nil || !ok {
			return false, err
		}
	}
	if s.TextSel != "" {
		text, err := d.Text(ctx, s.TextSel)
		if err != nil {
			return false, err
		}
		if !strings.Contains(text, s.Text) {
			return false, nil
		}
	}
	if s.TitleHas != "" {
		title, err := d.Title(ctx)
		if err != nil {
			return false, err
		}
		if !strings.Contains(title, s.TitleHas) {
			return false, nil
		}
	}
	return true, nil
}

// Step is one UI action plus the bounded wait for its next-state signal.
type Step struct {
	Name  string
	State models.NavState // state the machine is in once Await holds

	// Idempotent actions may be re-run on timeout. Non-idempotent ones
	// (form submissions) are only re-run after the flow's Exists probe
	// confirms the target record was not created by the first attempt.
	Idempotent bool

	Do    func(ctx context.Context, d browser.Driver, rec models.InputRecord) error
	Await Signal
}

// Flow is the screen sequence for one business action.
type Flow struct {
	Name   string
	Schema records.Schema

	// Steps may depend on the record's field values.
	Steps func(rec models.InputRecord) []Step

	// Exists reports whether the flow's target effect is already in place
	// (credit memo created, row deleted). Consulted before re-running a
	// non-idempotent step so the driver never double-submits one record.
	Exists func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error)

	// ExistsStatus is the outcome when Exists reports true: Failed for
	// creation flows (remote already has the record), Success for deletion
	// flows (the work is already done).
	ExistsStatus models.OutcomeStatus
}
