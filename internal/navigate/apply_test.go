package navigate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
)

func applyRecord(invoice, amount string) models.InputRecord {
	return models.InputRecord{ID: invoice, Row: 2, Fields: map[string]string{
		"invoice_no": invoice,
		"amount":     amount,
	}}
}

func TestApply_FullPath(t *testing.T) {
	sel := DefaultSelectors()
	d := browser.NewFake()
	d.OnCall = func(call string) {
		switch {
		case strings.HasPrefix(call, "navigate "):
			d.Show(sel.Entry.ItemSelect)
			d.Texts[sel.Apply.PaymentField] = "¥1,000.00"
		case call == "press enter "+sel.Entry.ItemSelect:
			d.Texts[sel.Apply.PaymentField] = "¥2,500.00"
		}
	}

	m := New(d, testOptions())
	flow := Apply(sel, testEndpoints(), testOptions(), ApplyParams{PaymentID: "777", Tolerance: 1})
	out, err := m.Run(context.Background(), flow, applyRecord("INV-1", "1500"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, out.Status)

	assert.Contains(t, d.Calls, "navigate https://erp.example.com/app/accounting/transactions/custpymt.nl?id=777&e=T")
	assert.Equal(t, 1, d.CallCount("fill "+sel.Entry.ItemSelect+"=INV-1"))
}

func TestApply_SecondRecordReusesOpenForm(t *testing.T) {
	sel := DefaultSelectors()
	d := browser.NewFake()
	d.Show(sel.Entry.ItemSelect)
	d.Texts[sel.Apply.PaymentField] = "2,500.00"
	d.OnCall = func(call string) {
		if call == "press enter "+sel.Entry.ItemSelect {
			d.Texts[sel.Apply.PaymentField] = "2,800.00"
		}
	}

	m := New(d, testOptions())
	flow := Apply(sel, testEndpoints(), testOptions(), ApplyParams{PaymentID: "777", Tolerance: 1})
	out, err := m.Run(context.Background(), flow, applyRecord("INV-2", "300"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, out.Status)

	for _, c := range d.Calls {
		assert.False(t, strings.HasPrefix(c, "navigate "),
			"an already-open payment form must not be reloaded, got %q", c)
	}
}

func TestApply_AmountMismatchFailsWithoutResubmit(t *testing.T) {
	sel := DefaultSelectors()
	d := browser.NewFake()
	d.Show(sel.Entry.ItemSelect)
	d.Texts[sel.Apply.PaymentField] = "1,000.00"
	d.Alerts = []string{"この請求書は既に適用されています"}
	d.OnCall = func(call string) {
		if call == "press enter "+sel.Entry.ItemSelect {
			d.Texts[sel.Apply.PaymentField] = "1,100.00"
		}
	}

	m := New(d, testOptions())
	flow := Apply(sel, testEndpoints(), testOptions(), ApplyParams{PaymentID: "777", Tolerance: 1})
	out, err := m.Run(context.Background(), flow, applyRecord("INV-3", "1500"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Equal(t, models.KindUnexpectedContent, out.Kind)
	assert.Contains(t, out.Reason, "moved by 100.00")
	assert.Contains(t, out.Reason, "expected 1500.00")
	assert.Contains(t, out.Reason, "この請求書は既に適用されています")

	// Applying twice would double-book the invoice.
	assert.Equal(t, 1, d.CallCount("fill "+sel.Entry.ItemSelect+"=INV-3"))
}

func TestApply_ToleratesRoundingDifference(t *testing.T) {
	sel := DefaultSelectors()
	d := browser.NewFake()
	d.Show(sel.Entry.ItemSelect)
	d.Texts[sel.Apply.PaymentField] = "0.00"
	d.OnCall = func(call string) {
		if call == "press enter "+sel.Entry.ItemSelect {
			d.Texts[sel.Apply.PaymentField] = "1,500.01"
		}
	}

	m := New(d, testOptions())
	flow := Apply(sel, testEndpoints(), testOptions(), ApplyParams{PaymentID: "777", Tolerance: 1})
	out, err := m.Run(context.Background(), flow, applyRecord("INV-4", "1500"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, out.Status)
}

func TestMoneyCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1500", 150000},
		{"1,500", 150000},
		{"¥2,500.00", 250000},
		{"1500.5", 150050},
		{"-3.5", -350},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := moneyCents(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := moneyCents("not a number")
	assert.Error(t, err)
}
