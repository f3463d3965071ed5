// Package xlsx exports aggregated case counts as an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/xuri/excelize/v2"
)

// TotalsSheet holds per-unit counts over the full dataset.
const TotalsSheet = "totals"

var header = []any{"Reporting_PHU", "Latitude", "Longitude", "Count"}

// Writer saves a workbook with a totals sheet followed by one sheet per report
// date. It implements pipeline.Exporter.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter returns a Writer that saves to path, replacing any existing file.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

func (w *Writer) Name() string { return "xlsx" }

func (w *Writer) Export(ctx context.Context, agg domain.Aggregation) error {
	x := excelize.NewFile()
	defer x.Close()

	if err := addSheet(x, TotalsSheet, agg.Totals); err != nil {
		return err
	}
	for _, date := range agg.Dates() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addSheet(x, SheetName(date), agg.Daily[date]); err != nil {
			return err
		}
	}
	if err := x.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	x.SetActiveSheet(0)

	if err := x.SaveAs(w.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	w.logger.Debug("workbook saved", "path", w.path, "sheets", len(agg.Daily)+1)
	return nil
}

func addSheet(x *excelize.File, name string, counts []domain.UnitCount) error {
	if _, err := x.NewSheet(name); err != nil {
		return fmt.Errorf("sheet %q: %w", name, err)
	}
	if err := x.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("sheet %q header: %w", name, err)
	}
	for i, c := range counts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{c.Unit, c.Lat, c.Lon, c.Count}
		if err := x.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("sheet %q row %d: %w", name, i+2, err)
		}
	}
	return nil
}

// SheetName maps a report date to a valid sheet name: characters Excel forbids
// become '-' and the result is cut to 31 characters.
func SheetName(date string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, date)
	if name == "" {
		name = "undated"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
