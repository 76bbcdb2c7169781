// Package runner iterates input records through the navigation state machine.
// It is the only layer that decides whether the batch continues: per-record
// failures are recorded and the batch moves on; session-fatal failures abort
// the run while preserving the partial summary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/retry"
)

// Navigator is what the runner needs from the navigation layer. The returned
// error is non-nil only for session-fatal conditions.
type Navigator interface {
	Run(ctx context.Context, rec models.InputRecord) (models.Outcome, error)
}

// Reporter receives each outcome as soon as it is final, in input order.
type Reporter interface {
	Record(o models.Outcome)
	Abort(cause string)
}

// Options are the batch-level policies.
type Options struct {
	// RecordRetries re-drives a whole record after a recoverable failure,
	// smoothing over transient rendering/network hiccups. Distinct from the
	// per-action budget inside the state machine.
	RecordRetries int

	RetryDelay time.Duration

	// Logf receives progress lines; nil disables logging.
	Logf func(format string, a ...any)
}

func (o *Options) fill() {
	if o.RecordRetries < 1 {
		o.RecordRetries = 1
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
}

// Run drives every record through the navigator, strictly in input order and
// strictly sequentially — the browser session is a single exclusive resource.
// Pre-validated Skipped outcomes are merged in by row order so every input
// row maps to exactly one outcome. On a session-fatal failure the reporter is
// marked aborted and the error returned; outcomes recorded so far stay put.
func Run(ctx context.Context, recs []models.InputRecord, pre []models.Outcome, nav Navigator, rep Reporter, opts Options) error {
	opts.fill()

	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	// Merge pre-skipped rows and live records back into spreadsheet order.
	queue := merge(recs, pre)

	for i, item := range queue {
		if item.skip != nil {
			rep.Record(*item.skip)
			logf("[%d/%d] %s skipped: %s", i+1, len(queue), item.skip.RecordID, item.skip.Reason)
			continue
		}

		rec := *item.rec
		outcome, fatal := runRecord(ctx, rec, nav, opts)
		rep.Record(outcome)

		switch outcome.Status {
		case models.StatusSuccess:
			logf("[%d/%d] %s ok", i+1, len(queue), rec.ID)
		default:
			logf("[%d/%d] %s %s: %s", i+1, len(queue), rec.ID, outcome.Status, outcome.Reason)
		}

		if fatal != nil {
			rep.Abort(fatal.Error())
			return fmt.Errorf("run aborted at record %s: %w", rec.ID, fatal)
		}
	}

	return nil
}

// errRemoteRejected marks a record the remote system refused; retrying
// cannot help, but the batch continues.
var errRemoteRejected = errors.New("record rejected by the remote system")

// runRecord applies the record-level retry budget. Only recoverable
// classifications are re-driven; remote rejections are permanent and
// session-fatal errors end the batch.
func runRecord(ctx context.Context, rec models.InputRecord, nav Navigator, opts Options) (models.Outcome, error) {
	var (
		outcome models.Outcome
		fatal   error
		attempt int
	)

	err := retry.Do(ctx, opts.RecordRetries, opts.RetryDelay, func(ctx context.Context) error {
		attempt++
		outcome, fatal = nav.Run(ctx, rec)
		outcome.Attempts = attempt
		if fatal != nil {
			// Session lost, cancellation, or anything unclassified:
			// continuing on an unknown failure risks corrupting state.
			return retry.Stop(fatal)
		}
		if outcome.Status == models.StatusSuccess {
			return nil
		}
		if outcome.Kind == models.KindRemoteError {
			return retry.Stop(errRemoteRejected)
		}
		return errors.New(outcome.Reason)
	})

	switch {
	case fatal != nil:
		return outcome, fatal
	case err == nil, errors.Is(err, errRemoteRejected), errors.Is(err, retry.ErrBudgetExhausted):
		// The outcome keeps the navigator's own classification and reason.
		return outcome, nil
	}

	// Cancelled before the first attempt: synthesize the outcome the
	// navigator never got to produce.
	if attempt == 0 {
		outcome = models.Outcome{
			RecordID: rec.ID,
			Row:      rec.Row,
			Status:   models.StatusFailed,
			Kind:     models.KindSessionLost,
			Reason:   err.Error(),
			At:       time.Now(),
		}
	}
	return outcome, err
}

type queued struct {
	rec  *models.InputRecord
	skip *models.Outcome
}

// merge interleaves live records and pre-skipped outcomes by spreadsheet row
// so the summary preserves input order exactly.
func merge(recs []models.InputRecord, pre []models.Outcome) []queued {
	out := make([]queued, 0, len(recs)+len(pre))
	i, j := 0, 0
	for i < len(recs) || j < len(pre) {
		switch {
		case j >= len(pre):
			out = append(out, queued{rec: &recs[i]})
			i++
		case i >= len(recs):
			out = append(out, queued{skip: &pre[j]})
			j++
		case recs[i].Row <= pre[j].Row:
			out = append(out, queued{rec: &recs[i]})
			i++
		default:
			out = append(out, queued{skip: &pre[j]})
			j++
		}
	}
	return out
}
