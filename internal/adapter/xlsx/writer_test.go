package xlsx

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testAggregation(t *testing.T) domain.Aggregation {
	t.Helper()
	agg, err := domain.Aggregate([]domain.CaseRecord{
		{ReportDate: "2020-04-01", Unit: "UnitA", Geo: domain.Geo{Lat: 20, Lon: 10}},
		{ReportDate: "2020-04-01", Unit: "UnitA", Geo: domain.Geo{Lat: 20, Lon: 10}},
		{ReportDate: "2020-04-01", Unit: "UnitB", Geo: domain.Geo{Lat: 40, Lon: 30}},
		{ReportDate: "2020/04/02", Unit: "UnitB", Geo: domain.Geo{Lat: 40, Lon: 30}},
	})
	require.NoError(t, err)
	return agg
}

func TestWriter_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.xlsx")
	w := NewWriter(path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, w.Export(context.Background(), testAggregation(t)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{TotalsSheet, "2020-04-01", "2020-04-02"}, f.GetSheetList())

	totals, err := f.GetRows(TotalsSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Reporting_PHU", "Latitude", "Longitude", "Count"},
		{"UnitA", "20", "10", "2"},
		{"UnitB", "40", "30", "2"},
	}, totals)

	day, err := f.GetRows("2020-04-02")
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, []string{"UnitB", "40", "30", "1"}, day[1])
}

func TestWriter_Name(t *testing.T) {
	assert.Equal(t, "xlsx", NewWriter("x.xlsx", slog.Default()).Name())
}

func TestWriter_ExportBadPath(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing", "counts.xlsx"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, w.Export(context.Background(), testAggregation(t)))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "2020-04-01", SheetName("2020-04-01"))
	assert.Equal(t, "2020-04-01", SheetName("2020/04/01"))
	assert.Equal(t, "a-b-c", SheetName("a:b*c"))
	assert.Equal(t, "undated", SheetName(""))
	assert.Len(t, SheetName("0123456789012345678901234567890123456789"), 31)
}
