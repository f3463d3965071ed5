package domain

import (
	"errors"
	"fmt"
)

// Column names of the case-report dataset.
const (
	ColCaseReportedDate = "Case_Reported_Date"
	ColTestReportedDate = "Test_Reported_Date"
	ColReportingPHU     = "Reporting_PHU"
	ColPHULatitude      = "Reporting_PHU_Latitude"
	ColPHULongitude     = "Reporting_PHU_Longitude"
)

// CaseColumns is the allow-list of columns kept by [PruneColumns] before parsing.
var CaseColumns = []string{
	ColCaseReportedDate,
	ColTestReportedDate,
	ColReportingPHU,
	ColPHULatitude,
	ColPHULongitude,
}

var (
	// ErrMissingColumn is returned when a required column is absent from a table.
	ErrMissingColumn = errors.New("missing column")

	// ErrRaggedRow is returned when a row's width differs from the header's.
	ErrRaggedRow = errors.New("row width does not match header")
)

// Table is a header plus string rows, as read from a CSV file.
// Rows[i][j] is the value of column Header[j].
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the named column, or -1 when absent.
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// MustIndex is like Index but returns ErrMissingColumn when the column is absent.
func (t Table) MustIndex(name string) (int, error) {
	i := t.Index(name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return i, nil
}

// Validate checks that every row has exactly one value per header column.
func (t Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%w: row %d has %d values, header has %d", ErrRaggedRow, i+1, len(row), len(t.Header))
		}
	}
	return nil
}

// PruneColumns returns a new table holding only the columns of t that appear in
// allow, in t's column order. Allow-listed columns missing from t are skipped
// silently. The input table is not modified and shares no slices with the result.
func PruneColumns(t Table, allow []string) Table {
	allowed := make(map[string]struct{}, len(allow))
	for _, name := range allow {
		allowed[name] = struct{}{}
	}

	keep := make([]int, 0, len(allow))
	header := make([]string, 0, len(allow))
	seen := make(map[string]struct{}, len(allow))
	for i, h := range t.Header {
		if _, ok := allowed[h]; !ok {
			continue
		}
		// Duplicate header names keep the first occurrence, matching Index.
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		keep = append(keep, i)
		header = append(header, h)
	}

	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			if i < len(row) {
				out[j] = row[i]
			}
		}
		rows[r] = out
	}

	return Table{Header: header, Rows: rows}
}
