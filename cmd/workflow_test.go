package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/erptools/nsauto/internal/browser"
	"github.com/erptools/nsauto/internal/models"
	"github.com/erptools/nsauto/internal/navigate"
	"github.com/erptools/nsauto/internal/report"
)

func writeRedslipWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	rows := [][]any{
		{"返品内部ID", "日付", "請求書番号", "金額"},
		{"R-1001", "2026/04/01", "INV-1", "1500"},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestRunWorkflow_FailedLoginStillWritesAuditWorkbook(t *testing.T) {
	dir := testEnv(t)
	dryRun = false
	viper.Set("endpoint", "https://erp.example.com")
	viper.Set("username", "operator")
	viper.Set("password", "secret")

	origOpen := openSession
	openSession = func(ctx context.Context, cfg browser.Config) (*browser.Session, error) {
		return nil, &models.AuthError{Msg: "invalid credentials"}
	}
	t.Cleanup(func() { openSession = origOpen })

	out := filepath.Join(dir, "audit.xlsx")
	origOut := outputPath
	outputPath = out
	t.Cleanup(func() { outputPath = origOut })

	input := writeRedslipWorkbook(t)
	err := runWorkflow(input, func(sel navigate.Selectors, ep navigate.Endpoints, opts navigate.Options) navigate.Flow {
		return navigate.Redslip(sel, ep, opts)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open session")

	sum, loadErr := report.Load(out)
	require.NoError(t, loadErr, "the audit workbook is written even when no session opened")
	assert.True(t, sum.Aborted)
	assert.Contains(t, sum.AbortCause, "invalid credentials")
}
