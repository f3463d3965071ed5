package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidCoordinate is returned when a latitude or longitude cell is not a number.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether no coordinates are known. Blank CSV cells parse to zero.
func (g Geo) IsZero() bool {
	return g.Lat == 0 && g.Lon == 0
}

// CaseRecord is one case row after pruning and parsing.
type CaseRecord struct {
	ReportDate string `json:"report_date"`
	Unit       string `json:"unit"`
	Geo        Geo    `json:"geo"`
}

// ParseCaseRecords converts a table into case records in file order.
//
// Reporting_PHU and both coordinate columns are required. The report date comes
// from Case_Reported_Date and falls back to Test_Reported_Date when blank; at
// least one of the two columns must exist. Blank coordinate cells yield a zero
// Geo so a geocoder can fill them later; non-numeric cells are an error.
func ParseCaseRecords(t Table) ([]CaseRecord, error) {
	unitIdx, err := t.MustIndex(ColReportingPHU)
	if err != nil {
		return nil, err
	}
	latIdx, err := t.MustIndex(ColPHULatitude)
	if err != nil {
		return nil, err
	}
	lonIdx, err := t.MustIndex(ColPHULongitude)
	if err != nil {
		return nil, err
	}
	caseIdx := t.Index(ColCaseReportedDate)
	testIdx := t.Index(ColTestReportedDate)
	if caseIdx < 0 && testIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColCaseReportedDate)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	records := make([]CaseRecord, 0, len(t.Rows))
	for i, row := range t.Rows {
		lat, err := parseCoordinate(row[latIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, ColPHULatitude, err)
		}
		lon, err := parseCoordinate(row[lonIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d %s: %w", i+1, ColPHULongitude, err)
		}

		records = append(records, CaseRecord{
			ReportDate: reportDate(row, caseIdx, testIdx),
			Unit:       strings.TrimSpace(row[unitIdx]),
			Geo:        Geo{Lat: lat, Lon: lon},
		})
	}
	return records, nil
}

func reportDate(row []string, caseIdx, testIdx int) string {
	if caseIdx >= 0 {
		if d := strings.TrimSpace(row[caseIdx]); d != "" {
			return d
		}
	}
	if testIdx >= 0 {
		return strings.TrimSpace(row[testIdx])
	}
	return ""
}

// parseCoordinate parses a decimal degree value. Blank cells and the pandas
// "NaN" sentinel yield 0.
func parseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	return v, nil
}
