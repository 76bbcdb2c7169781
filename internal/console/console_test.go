package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erptools/nsauto/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would delete %s", "record 123")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would delete record 123")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would delete %s", "record 123")
	assert.Empty(t, errOut.String())
}

func TestStatusColor(t *testing.T) {
	assert.NotEmpty(t, StatusColor(models.StatusSuccess))
	assert.NotEmpty(t, StatusColor(models.StatusFailed))
	assert.NotEmpty(t, StatusColor(models.StatusSkipped))
	assert.Equal(t, "odd", StatusColor(models.OutcomeStatus("odd")))
}

func TestRateColor(t *testing.T) {
	assert.NotEmpty(t, RateColor(100))
	assert.NotEmpty(t, RateColor(80))
	assert.NotEmpty(t, RateColor(10))
}

func TestPrintSummary(t *testing.T) {
	u, out, _ := newTestUI()

	s := &models.RunSummary{RunID: "01RUN", Workflow: "redslip", StartedAt: time.Now()}
	s.Append(models.Outcome{RecordID: "A1", Row: 2, Status: models.StatusSuccess})
	s.Append(models.Outcome{RecordID: "A2", Row: 3, Status: models.StatusSkipped, Kind: models.KindMalformedInput, Reason: "missing amount"})
	s.Append(models.Outcome{RecordID: "A3", Row: 4, Status: models.StatusFailed, Kind: models.KindTimeout, Reason: "signal not observed"})

	u.PrintSummary(s)

	result := out.String()
	assert.Contains(t, result, "01RUN")
	assert.Contains(t, result, "3 total")
	assert.Contains(t, result, "33%", "summary line carries the success rate")
	assert.Contains(t, result, "A2", "skipped records appear in the attention table")
	assert.Contains(t, result, "A3")
	assert.NotContains(t, result, "A1", "successful records stay out of the attention table")
}

func TestPrintSummary_Aborted(t *testing.T) {
	u, out, errOut := newTestUI()

	s := &models.RunSummary{RunID: "01RUN", Workflow: "purge", Aborted: true, AbortCause: "browser session lost"}
	s.Append(models.Outcome{RecordID: "A1", Row: 2, Status: models.StatusSuccess})

	u.PrintSummary(s)
	assert.Contains(t, out.String(), "ABORTED")
	assert.Contains(t, errOut.String(), "browser session lost")
}

func TestPrintSummary_EmptyRunHasNoRate(t *testing.T) {
	u, out, _ := newTestUI()
	u.PrintSummary(&models.RunSummary{RunID: "01RUN", Workflow: "redslip"})
	assert.NotContains(t, out.String(), "%")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Record", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"1234", "success"})
	table.Append([]string{"5678", "failed"})
	require.NoError(t, table.Render())

	assert.Contains(t, out.String(), "1234")
	assert.Contains(t, out.String(), "5678")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := "この取引は既に処理されていますこの取引は既に処理されています"
	got := truncate(long, 10)
	assert.Contains(t, got, "...")
	assert.LessOrEqual(t, len([]rune(got)), 10)
}
