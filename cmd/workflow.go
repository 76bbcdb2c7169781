package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/config"
	"github.com/erptools/nsauto/internal/history"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/navigate"
	"github.com/erptools/nsauto/internal/records"
	"github.com/erptools/nsauto/internal/report"
	"github.com/erptools/nsauto/internal/runner"
)

// outputPath is the shared --output flag for workflow subcommands.
var outputPath string

// openSession is stubbed in tests; production always talks to a real browser.
var openSession = browser.Open

// flowNavigator binds one flow to the state machine so the batch runner can
// drive records through it.
type flowNavigator struct {
	machine *navigate.Machine
	flow    navigate.Flow
}

func (n flowNavigator) Run(ctx context.Context, rec models.InputRecord) (models.Outcome, error) {
	return n.machine.Run(ctx, n.flow, rec)
}

// runWorkflow is the shared batch pipeline behind every workflow subcommand:
// load and validate the input workbook, open the authenticated browser
// session, drive every record through the flow, then release the browser,
// finalize the audit workbook and record the run in the history database.
func runWorkflow(input string, buildFlow func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow) error {
	cfg := config.FromViper()
	if err := cfg.Validate(); err != nil {
		return err
	}

	sel, err := navigate.LoadSelectors(cfg.SelectorsPath)
	if err != nil {
		return err
	}

	opts := navigate.Options{
		Timeout:     cfg.Timeout,
		Poll:        cfg.PollInterval,
		MaxRetries:  cfg.MaxRetries,
		ErrorBanner: sel.ErrorBanner,
		Logf:        ui.VerboseLog,
	}
	ep := navigate.Endpoints{Base: cfg.Endpoint, PurgeRecType: cfg.PurgeRecType}
	flow := buildFlow(sel, ep, opts)

	recs, skipped, err := records.Load(input, flow.Schema)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}
	ui.Info("loaded %d record(s) from %s (%d skipped by validation)", len(recs), input, len(skipped))

	if dryRun {
		for _, rec := range recs {
			ui.DryRunMsg("would process record %s (row %d)", rec.ID, rec.Row)
		}
		for _, o := range skipped {
			ui.DryRunMsg("would skip row %d: %s", o.Row, o.Reason)
		}
		return nil
	}

	out := outputPath
	if out == "" {
		out = fmt.Sprintf("%s_result_%s.xlsx", flow.Name, time.Now().Format("20060102_150405"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep := report.New(flow.Name)

	// The audit workbook is finalized exactly once, on every exit path,
	// including a session that never opened. Deferred after the session's
	// Close so the browser is released before the summary is written.
	defer func() {
		if err := rep.Finalize(out); err != nil {
			ui.Error("write audit workbook: %v", err)
		} else {
			ui.Info("audit workbook written to %s", out)
		}
		ui.PrintSummary(rep.Summary())
		saveHistory(cfg.DBPath, rep.Summary())
	}()

	session, err := openSession(ctx, browser.Config{
		Endpoint:     cfg.Endpoint,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Headless:     cfg.Headless,
		ManualLogin:  cfg.ManualLogin,
		Timeout:      cfg.Timeout,
		PollInterval: cfg.PollInterval,
		Login:        sel.Login,
	})
	if err != nil {
		rep.Abort(err.Error())
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()
	ui.Success("authenticated against %s", cfg.Endpoint)

	machine := navigate.New(session.Driver, opts)
	machine.SetState(session.State)
	return runner.Run(ctx, recs, skipped, flowNavigator{machine: machine, flow: flow}, rep, runner.Options{
		RecordRetries: cfg.RecordRetries,
		RetryDelay:    cfg.PollInterval,
		Logf:          ui.VerboseLog,
	})
}

// saveHistory records the run in the local history database. Best effort: a
// broken db must not fail a batch whose audit workbook is already on disk.
func saveHistory(dbPath string, sum *models.RunSummary) {
	store, err := history.Open(dbPath)
	if err != nil {
		ui.Warning("history database unavailable: %v", err)
		return
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		ui.Warning("history migration failed: %v", err)
		return
	}
	if err := store.SaveRun(ctx, sum); err != nil {
		ui.Warning("history save failed: %v", err)
		return
	}
	ui.VerboseLog("run %s recorded in history", sum.RunID)
}
