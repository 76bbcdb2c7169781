package navigate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/retry"
)

// Options bound every wait and retry the machine performs.
type Options struct {
	Timeout    time.Duration // per-signal bounded wait
	Poll       time.Duration
	MaxRetries int // per-action attempt budget

	// ErrorBanner is polled during every wait; when it shows, the step
	// fails permanently with the banner text as a RemoteError.
	ErrorBanner string

	// Logf receives progress lines; nil disables logging.
	Logf func(format string, a ...any)
}

func (o *Options) fill() {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.Poll <= 0 {
		o.Poll = 250 * time.Millisecond
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = 1
	}
}

// Machine executes flows against a driver. It never panics past the batch
// runner: per-record failures come back as Failed outcomes, and only
// session-fatal conditions are returned as errors.
type Machine struct {
	driver browser.Driver
	opts   Options
	state  models.NavState
}

// New builds a machine over the given driver, starting from the main menu.
func New(d browser.Driver, opts Options) *Machine {
	opts.fill()
	return &Machine{driver: d, opts: opts, state: models.NavMainMenu}
}

// SetState seeds the machine with the session's current screen state.
func (m *Machine) SetState(s models.NavState) { m.state = s }

// State reports the screen state after the last Run: NavDone when the record
// concluded, NavError when the session died, otherwise the state of the last
// step that completed.
func (m *Machine) State() models.NavState { return m.state }

func (m *Machine) logf(format string, a ...any) {
	if m.opts.Logf != nil {
		m.opts.Logf(format, a...)
	}
}

// remoteStop wraps a permanent remote rejection so retry.Poll unwinds
// without consuming further attempts.
type remoteStop struct {
	msg string
}

func (r *remoteStop) Error() string { return r.msg }

// Run drives one record from the session's current screen to a terminal
// state. The returned error is non-nil only for session-fatal conditions
// (browser gone, operator cancel); everything else is classified into the
// outcome.
func (m *Machine) Run(ctx context.Context, flow Flow, rec models.InputRecord) (models.Outcome, error) {
	state := m.state

	for _, step := range flow.Steps(rec) {
		if err := m.runStep(ctx, flow, rec, step, &state); err != nil {
			if errors.Is(err, errAlreadyDone) {
				m.state = models.NavDone
				return m.existingOutcome(flow, rec), nil
			}

			var stepErr *models.StepError
			if errors.As(err, &stepErr) {
				m.logf("record %s: %s failed: %s", rec.ID, step.Name, stepErr.Msg)
				m.state = state
				return models.Outcome{
					RecordID: rec.ID,
					Row:      rec.Row,
					Status:   models.StatusFailed,
					Kind:     stepErr.Kind,
					Reason:   stepErr.Msg,
					At:       time.Now(),
				}, nil
			}

			// Session-fatal: browser gone or run cancelled.
			m.state = models.NavError
			return models.Outcome{
				RecordID: rec.ID,
				Row:      rec.Row,
				Status:   models.StatusFailed,
				Kind:     models.KindSessionLost,
				Reason:   err.Error(),
				At:       time.Now(),
			}, err
		}
	}

	m.state = models.NavDone
	return models.Outcome{
		RecordID: rec.ID,
		Row:      rec.Row,
		Status:   models.StatusSuccess,
		At:       time.Now(),
	}, nil
}

// errAlreadyDone signals that the Exists probe found the flow's effect in
// place before a re-submission.
var errAlreadyDone = errors.New("target record already exists")

func (m *Machine) existingOutcome(flow Flow, rec models.InputRecord) models.Outcome {
	o := models.Outcome{
		RecordID: rec.ID,
		Row:      rec.Row,
		At:       time.Now(),
	}
	if flow.ExistsStatus == models.StatusSuccess {
		o.Status = models.StatusSuccess
		o.Reason = "already applied"
		return o
	}
	o.Status = models.StatusFailed
	o.Kind = models.KindRemoteError
	o.Reason = "record already exists"
	return o
}

func (m *Machine) runStep(ctx context.Context, flow Flow, rec models.InputRecord, step Step, state *models.NavState) error {
	var last *models.StepError

	for attempt := 0; attempt < m.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Never blind-resubmit: a non-idempotent step is only retried once
		// the probe has shown the first attempt left no trace.
		if attempt > 0 && !step.Idempotent {
			if flow.Exists == nil {
				return last
			}
			exists, err := flow.Exists(ctx, m.driver, rec)
			if err != nil {
				if fatal := m.fatal(err); fatal != nil {
					return fatal
				}
				return last
			}
			if exists {
				return errAlreadyDone
			}
		}

		if attempt > 0 {
			m.logf("record %s: retrying %s (attempt %d/%d)", rec.ID, step.Name, attempt+1, m.opts.MaxRetries)
		}

		err := step.Do(ctx, m.driver, rec)
		if errors.Is(err, ErrSkipStep) {
			return nil
		}
		if err != nil {
			if fatal := m.fatal(err); fatal != nil {
				return fatal
			}
			// Steps that verified something themselves return a typed
			// error carrying the right classification.
			var typed *models.StepError
			if errors.As(err, &typed) {
				last = typed
			} else {
				last = &models.StepError{
					Kind:  models.KindElementNotFound,
					State: *state,
					Step:  step.Name,
					Msg:   err.Error(),
				}
			}
			continue
		}

		*state = step.State

		stepErr := m.await(ctx, step, *state)
		if stepErr == nil {
			return nil
		}
		if fatal := m.fatal(stepErr); fatal != nil {
			return fatal
		}
		last = stepErr
		if stepErr.Kind == models.KindRemoteError {
			// Explicit remote rejection is permanent.
			return stepErr
		}
	}

	if last == nil {
		last = &models.StepError{
			Kind:  models.KindTimeout,
			State: *state,
			Step:  step.Name,
			Msg:   "no attempt completed",
		}
	}
	last.Msg = fmt.Sprintf("%s (after %d attempts)", last.Msg, m.opts.MaxRetries)
	return last
}

// await polls for the step's signal, watching the error banner and draining
// auto-accepted dialogs along the way.
func (m *Machine) await(ctx context.Context, step Step, state models.NavState) *models.StepError {
	if step.Await.empty() {
		return nil
	}

	var alerts []string
	err := retry.Poll(ctx, m.opts.Timeout, m.opts.Poll, func(ctx context.Context) (bool, error) {
		if text, ok := m.driver.AcceptAlert(ctx); ok {
			alerts = append(alerts, text)
		}
		if m.opts.ErrorBanner != "" {
			if shown, _ := m.driver.Visible(ctx, m.opts.ErrorBanner); shown {
				text, _ := m.driver.Text(ctx, m.opts.ErrorBanner)
				text = strings.TrimSpace(text)
				if text == "" {
					text = "remote error"
				}
				return false, &remoteStop{msg: text}
			}
		}
		return step.Await.observe(ctx, m.driver)
	})
	if err == nil {
		return nil
	}

	var remote *remoteStop
	if errors.As(err, &remote) {
		return &models.StepError{
			Kind:  models.KindRemoteError,
			State: state,
			Step:  step.Name,
			Msg:   remote.msg,
		}
	}

	kind := models.KindTimeout
	msg := fmt.Sprintf("signal for %s not observed within %s", step.Name, m.opts.Timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		switch {
		case step.Await.TextSel != "":
			if shown, _ := m.driver.Visible(ctx, step.Await.TextSel); shown {
				kind = models.KindUnexpectedContent
				got, _ := m.driver.Text(ctx, step.Await.TextSel)
				msg = fmt.Sprintf("expected %q in %s, got %q", step.Await.Text, step.Await.TextSel, strings.TrimSpace(got))
			} else {
				kind = models.KindElementNotFound
				msg = fmt.Sprintf("element %s not found", step.Await.TextSel)
			}
		case step.Await.Visible != "":
			kind = models.KindElementNotFound
			msg = fmt.Sprintf("element %s not found", step.Await.Visible)
		case step.Await.TitleHas != "":
			kind = models.KindUnexpectedContent
			title, _ := m.driver.Title(ctx)
			msg = fmt.Sprintf("expected title containing %q, got %q", step.Await.TitleHas, title)
		}
	} else {
		msg = err.Error()
	}

	if len(alerts) > 0 {
		msg = fmt.Sprintf("%s; dialogs: %s", msg, strings.Join(alerts, " | "))
	}

	return &models.StepError{Kind: kind, State: state, Step: step.Name, Msg: msg}
}

// fatal maps driver-level failures to session-fatal errors, or returns nil
// when the condition is a plain per-step failure.
func (m *Machine) fatal(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if !m.driver.Healthy() {
		return &models.SessionLostError{Err: errors.New(err.Error())}
	}
	return nil
}
