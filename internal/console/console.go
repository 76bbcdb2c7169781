package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/erptools/nsauto/internal/models"
)

// UI provides colored output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// StatusColor returns the string colored by record outcome status.
func StatusColor(status models.OutcomeStatus) string {
	switch status {
	case models.StatusSuccess:
		return green(string(status))
	case models.StatusSkipped:
		return yellow(string(status))
	case models.StatusFailed:
		return red(string(status))
	default:
		return string(status)
	}
}

// RateColor colors a percentage of successful records.
func RateColor(pct int) string {
	s := fmt.Sprintf("%d%%", pct)
	switch {
	case pct >= 95:
		return green(s)
	case pct >= 70:
		return yellow(s)
	default:
		return red(s)
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// PrintSummary renders a finished run: aggregate line, then one row per
// record that needs operator attention (failed or skipped).
func (u *UI) PrintSummary(s *models.RunSummary) {
	state := "completed"
	if s.Aborted {
		state = Red("ABORTED")
	}
	rate := ""
	if s.Total() > 0 {
		rate = fmt.Sprintf(" (%s success)", RateColor(s.Succeeded()*100/s.Total()))
	}
	u.Info("run %s (%s) %s: %d total, %s succeeded, %s failed, %s skipped%s",
		Cyan(s.RunID), s.Workflow, state,
		s.Total(),
		Green(fmt.Sprintf("%d", s.Succeeded())),
		Red(fmt.Sprintf("%d", s.Failed())),
		Yellow(fmt.Sprintf("%d", s.Skipped())),
		rate,
	)
	if s.Aborted {
		u.Error("abort cause: %s", s.AbortCause)
	}

	attention := make([]models.Outcome, 0)
	for _, o := range s.Outcomes {
		if o.Status != models.StatusSuccess {
			attention = append(attention, o)
		}
	}
	if len(attention) == 0 {
		return
	}

	table := u.Table([]string{"Record", "Row", "Status", "Kind", "Reason"})
	for _, o := range attention {
		table.Append([]string{
			o.RecordID,
			fmt.Sprintf("%d", o.Row),
			StatusColor(o.Status),
			string(o.Kind),
			truncate(o.Reason, 70),
		})
	}
	_ = table.Render()
}

// truncate shortens by runes, not bytes, since banner text is often Japanese.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
