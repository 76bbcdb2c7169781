package navigate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
)

func testOptions() Options {
	return Options{
		Timeout:     60 * time.Millisecond,
		Poll:        5 * time.Millisecond,
		MaxRetries:  3,
		ErrorBanner: "#error-banner",
	}
}

func testRecord() models.InputRecord {
	return models.InputRecord{ID: "R-1", Row: 2, Fields: map[string]string{}}
}

// oneStepFlow builds a flow around a single submit-style step.
func oneStepFlow(step Step, exists func(context.Context, browser.Driver, models.InputRecord) (bool, error), existsStatus models.OutcomeStatus) Flow {
	return Flow{
		Name:         "test",
		ExistsStatus: existsStatus,
		Exists:       exists,
		Steps:        func(models.InputRecord) []Step { return []Step{step} },
	}
}

func TestRun_SuccessPath(t *testing.T) {
	d := browser.NewFake()
	d.Show("#form")
	d.OnCall = func(call string) {
		if call == "click #save" {
			d.Show("#saved")
		}
	}

	flow := Flow{
		Name: "test",
		Steps: func(models.InputRecord) []Step {
			return []Step{
				{
					Name: "open", State: models.NavEntryForm, Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Navigate(ctx, "https://erp.example.com/form")
					},
					Await: Signal{Visible: "#form"},
				},
				{
					Name: "save", State: models.NavConfirmDialog,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return d.Click(ctx, "#save")
					},
					Await: Signal{Visible: "#saved"},
				},
			}
		},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), flow, testRecord())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.Equal(t, "R-1", out.RecordID)
	assert.Equal(t, 2, out.Row)
}

func TestRun_RetryBudgetExact(t *testing.T) {
	d := browser.NewFake()

	attempts := 0
	step := Step{
		Name: "open", State: models.NavEntryForm, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			attempts++
			return d.Navigate(ctx, "https://erp.example.com/form")
		},
		Await: Signal{Visible: "#never-appears"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.NoError(t, err, "per-record failures must not escape as errors")

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, models.KindElementNotFound, out.Kind)
	assert.Equal(t, 3, attempts, "exactly max_retries attempts, not more, not fewer")
	assert.Contains(t, out.Reason, "after 3 attempts")
}

func TestRun_NoBlindResubmitWhenRecordExists(t *testing.T) {
	d := browser.NewFake()

	probes := 0
	exists := func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
		probes++
		return true, nil // the first submission did land remotely
	}

	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: false,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#save")
		},
		Await: Signal{Visible: "#saved"}, // confirmation never observed
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, exists, models.StatusFailed), testRecord())
	require.NoError(t, err)

	assert.Equal(t, 1, d.CallCount("click #save"), "must not submit the same record twice")
	assert.Equal(t, 1, probes)
	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, models.KindRemoteError, out.Kind)
	assert.Contains(t, out.Reason, "already exists")
}

func TestRun_ExistingEffectIsSuccessForDeletion(t *testing.T) {
	d := browser.NewFake()

	exists := func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
		return true, nil
	}
	step := Step{
		Name: "delete", State: models.NavConfirmDialog, Idempotent: false,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#delete")
		},
		Await: Signal{TitleHas: "リスト"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, exists, models.StatusSuccess), testRecord())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.Equal(t, "already applied", out.Reason)
	assert.Equal(t, 1, d.CallCount("click #delete"))
}

func TestRun_ResubmitAllowedWhenProbeFindsNothing(t *testing.T) {
	d := browser.NewFake()

	exists := func(ctx context.Context, d browser.Driver, rec models.InputRecord) (bool, error) {
		return false, nil
	}
	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: false,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#save")
		},
		Await: Signal{Visible: "#saved"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, exists, models.StatusFailed), testRecord())
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, 3, d.CallCount("click #save"), "probe cleared each retry")
}

func TestRun_NonIdempotentWithoutProbeNeverRetries(t *testing.T) {
	d := browser.NewFake()

	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: false,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#save")
		},
		Await: Signal{Visible: "#saved"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, 1, d.CallCount("click #save"))
}

func TestRun_RemoteErrorBannerIsPermanent(t *testing.T) {
	d := browser.NewFake()
	d.OnCall = func(call string) {
		if call == "click #save" {
			d.Show("#error-banner")
			d.Texts["#error-banner"] = "この取引は既に処理されています"
		}
	}

	attempts := 0
	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			attempts++
			return d.Click(ctx, "#save")
		},
		Await: Signal{Visible: "#saved"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, models.KindRemoteError, out.Kind)
	assert.Equal(t, "この取引は既に処理されています", out.Reason, "remote message recorded verbatim")
	assert.Equal(t, 1, attempts, "permanent remote rejections are not retried")
}

func TestRun_UnexpectedContentClassification(t *testing.T) {
	d := browser.NewFake()
	d.Show("#status")
	d.Texts["#status"] = "処理中"

	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#save")
		},
		Await: Signal{TextSel: "#status", Text: "保存されました"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.NoError(t, err)

	assert.Equal(t, models.KindUnexpectedContent, out.Kind)
	assert.Contains(t, out.Reason, "保存されました")
}

func TestRun_SessionLostIsFatal(t *testing.T) {
	d := browser.NewFake()
	d.Health = false
	d.Errs["click #save"] = errors.New("websocket: close 1006")

	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#save")
		},
		Await: Signal{Visible: "#saved"},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())

	var lost *models.SessionLostError
	require.ErrorAs(t, err, &lost)
	assert.Equal(t, models.KindSessionLost, out.Kind)
}

func TestRun_SkipStep(t *testing.T) {
	d := browser.NewFake()

	ran := false
	flow := Flow{
		Name: "test",
		Steps: func(models.InputRecord) []Step {
			return []Step{
				{
					Name: "optional", State: models.NavEntryForm, Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return ErrSkipStep
					},
					Await: Signal{Visible: "#never"}, // must not be awaited
				},
				{
					Name: "final", State: models.NavDone, Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						ran = true
						return nil
					},
				},
			}
		},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), flow, testRecord())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, out.Status)
	assert.True(t, ran)
}

func TestRun_CancelPropagates(t *testing.T) {
	d := browser.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step := Step{
		Name: "open", State: models.NavEntryForm, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return nil
		},
	}

	m := New(d, testOptions())
	_, err := m.Run(ctx, oneStepFlow(step, nil, models.StatusFailed), testRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPurgeList_PaginatesAndConfirmsPerPage(t *testing.T) {
	sel := DefaultSelectors()
	ep := Endpoints{Base: "https://erp.example.com", PurgeRecType: 396}
	opts := testOptions()

	d := browser.NewFake()
	d.PageName = "订单后续中间表: リスト"
	d.Show(sel.Purge.NextPage)

	rowSel := "input[type='checkbox'][value='M-77']"

	// The row only appears after one next-page click.
	d.OnCall = func(call string) {
		switch call {
		case "click " + sel.Purge.NextPage:
			d.Show(sel.Purge.MarkAll, rowSel)
		case "click " + sel.Purge.DeleteAll:
			// Deletion reloads the list; row disappears.
			d.Hide(rowSel)
		}
	}

	flow := PurgeList(sel, ep, opts)
	m := New(d, opts)
	rec := models.InputRecord{ID: "M-77", Row: 2, Fields: map[string]string{"internal_id": "M-77"}}

	out, err := m.Run(context.Background(), flow, rec)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, out.Status)

	// Row must be selected and the delete confirmed after paging, in order.
	next := indexOf(t, d.Calls, "click "+sel.Purge.NextPage)
	sell := indexOf(t, d.Calls, "click "+rowSel)
	del := indexOf(t, d.Calls, "click "+sel.Purge.DeleteAll)
	assert.Less(t, next, sell, "row is selected after paging to it")
	assert.Less(t, sell, del, "selection is confirmed on the page where it was made")
}

func TestPurgeList_EmptyListStopsSearch(t *testing.T) {
	sel := DefaultSelectors()
	d := browser.NewFake()
	d.Show(sel.Purge.EmptyList)

	w := newWaiter(testOptions())
	rec := models.InputRecord{ID: "M-99", Row: 2, Fields: map[string]string{"internal_id": "M-99"}}

	err := purgeFromList(context.Background(), d, sel, w, rec, 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list is empty")
	assert.Zero(t, d.CallCount("click "+sel.Purge.NextPage), "an empty list has no further pages")
}

func TestRun_StateTracking(t *testing.T) {
	d := browser.NewFake()

	step := Step{
		Name: "open", State: models.NavEntryForm, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return nil
		},
	}

	m := New(d, testOptions())
	assert.Equal(t, models.NavMainMenu, m.State(), "a fresh machine starts at the main menu")

	_, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.NoError(t, err)
	assert.Equal(t, models.NavDone, m.State())
}

func TestRun_SessionLossSetsErrorState(t *testing.T) {
	d := browser.NewFake()
	d.Health = false
	d.Errs["click #save"] = errors.New("websocket: close 1006")

	step := Step{
		Name: "save", State: models.NavConfirmDialog, Idempotent: true,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return d.Click(ctx, "#save")
		},
	}

	m := New(d, testOptions())
	_, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.Error(t, err)
	assert.Equal(t, models.NavError, m.State())
}

func TestRun_FailureKeepsLastReachedState(t *testing.T) {
	d := browser.NewFake()
	d.Show("#form")

	flow := Flow{
		Name: "test",
		Steps: func(models.InputRecord) []Step {
			return []Step{
				{
					Name: "open", State: models.NavEntryForm, Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return nil
					},
					Await: Signal{Visible: "#form"},
				},
				{
					Name: "save", State: models.NavConfirmDialog, Idempotent: true,
					Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
						return errors.New("save button stale")
					},
				},
			}
		},
	}

	m := New(d, testOptions())
	m.SetState(models.NavSearchForm)
	out, err := m.Run(context.Background(), flow, testRecord())
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, models.NavEntryForm, m.State(), "state stays at the last screen that was reached")
}

func TestRun_TypedStepErrorKeepsClassification(t *testing.T) {
	d := browser.NewFake()

	step := Step{
		Name: "verify", State: models.NavEntryForm, Idempotent: false,
		Do: func(ctx context.Context, d browser.Driver, rec models.InputRecord) error {
			return &models.StepError{
				Kind:  models.KindUnexpectedContent,
				State: models.NavEntryForm,
				Step:  "verify",
				Msg:   "total moved by the wrong amount",
			}
		},
	}

	m := New(d, testOptions())
	out, err := m.Run(context.Background(), oneStepFlow(step, nil, models.StatusFailed), testRecord())
	require.NoError(t, err)
	assert.Equal(t, models.KindUnexpectedContent, out.Kind,
		"a step that classified its own failure is not reclassified")
	assert.Equal(t, "total moved by the wrong amount", out.Reason)
}

func indexOf(t *testing.T, calls []string, want string) int {
	t.Helper()
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	t.Fatalf("call %q not recorded in %v", want, calls)
	return -1
}
