package xlsx

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MarcinPiech/DHLAI/core/ingest"
	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/infra/logger"
	"github.com/MarcinPiech/DHLAI/infra/store/sqlite"
)

func writePlan(t *testing.T, sheet string, cells map[string]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
		require.NoError(t, f.DeleteSheet("Sheet1"))
		idx, err := f.GetSheetIndex(sheet)
		require.NoError(t, err)
		f.SetActiveSheet(idx)
	}
	for axis, v := range cells {
		require.NoError(t, f.SetCellValue(sheet, axis, v))
	}
	path := filepath.Join(t.TempDir(), "plan.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSheetNotFound(t *testing.T) {
	path := writePlan(t, "Arkusz1", map[string]any{"A1": "x"})
	wb, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	_, err = wb.Sheet("PLAN")
	assert.True(t, errors.Is(err, ingest.ErrSheetNotFound), "got %v", err)

	r, err := wb.ActiveSheet()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.True(t, r.Next())
	cols, err := r.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, cols)
}

func TestIngestPlanEndToEnd(t *testing.T) {
	path := writePlan(t, "PLAN", map[string]any{
		"C1": "Kod HS", "E1": "Ulica", "F1": "Miasto", "G1": "Kod",
		// no primary code: skipped
		"E2": "Długa 1", "F2": "Katowice", "G2": "40-100",
		"C3": "HS-17", "E3": "Krótka 2", "F3": "Bytom", "O3": "Nowak", "Z3": "HUBTRANS",
		"C4": "poza HS", "E4": "Polna 3", "F4": "Gliwice", "G4": "44-100", "U4": "Lis",
	})
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "dhlai.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	svc, err := ingest.NewService(store, Open, ingest.Config{PlanSheet: "PLAN", Layout: ingest.DefaultLayout()}, logger.NopLogger{})
	require.NoError(t, err)

	ctx := context.Background()
	res, err := svc.IngestPlan(ctx, "T35", 2025, path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, 2, res.Skipped[0].Row)

	recs, err := store.LatestLocations(ctx, res.Period.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "HS-17", recs[0].FullAddress())
	assert.Equal(t, "HUBTRANS", recs[0].AutoCompany)
	assert.Equal(t, "Polna 3, 44-100, Gliwice", recs[1].FullAddress())

	again, err := svc.IngestPlan(ctx, "T35", 2025, path)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, model.PeriodUpdated, again.Period.Status)
	diff, err := svc.Diff(ctx, res.Version.ID, again.Version.ID)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestIngestBagsReadsDateCells(t *testing.T) {
	path := writePlan(t, "Sheet1", map[string]any{
		"I1": "Data załadunku", "J1": "HDS",
		"I2": time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC), "J2": "HDS Katowice",
		"I3": "02.09.2025", "J3": "HDS Katowice",
	})
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "dhlai.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	svc, err := ingest.NewService(store, Open, ingest.Config{PlanSheet: "PLAN", Layout: ingest.DefaultLayout()}, logger.NopLogger{})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := store.FirstOrCreatePeriod(ctx, "T35", 2025)
	require.NoError(t, err)
	res, err := svc.IngestBags(ctx, p.ID, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	bags, err := store.BagsByPeriod(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, bags, 1)
	assert.Equal(t, "2025-08-26", bags[0].LoadDate.Format("2006-01-02"))
}
