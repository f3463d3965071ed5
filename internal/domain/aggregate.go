package domain

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownUnit is returned when a unit has no entry in the coordinate table.
	ErrUnknownUnit = errors.New("unit has no coordinates")

	// ErrUnknownDate is returned when a requested date has no partition.
	ErrUnknownDate = errors.New("no cases reported on date")

	// ErrNoRecords is returned when there is nothing to aggregate.
	ErrNoRecords = errors.New("no case records")
)

// UnitCount is one row of a per-date table: a unit, its location, and the
// number of case records attributed to it.
type UnitCount struct {
	Unit  string  `json:"unit"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Count int     `json:"count"`
}

// Aggregation holds every table derived from one input file.
type Aggregation struct {
	// Coordinates maps each unit to its fixed location.
	Coordinates map[string]Geo
	// Daily maps a report date to its per-unit counts, sorted by unit.
	Daily map[string][]UnitCount
	// Totals holds per-unit counts over the full dataset, sorted by unit.
	Totals []UnitCount
	// Records is the number of case records aggregated.
	Records int
}

// Dates returns the report dates in ascending order.
func (a Aggregation) Dates() []string {
	dates := make([]string, 0, len(a.Daily))
	for d := range a.Daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Day returns the per-unit counts for a report date.
func (a Aggregation) Day(date string) ([]UnitCount, error) {
	counts, ok := a.Daily[date]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDate, date)
	}
	return counts, nil
}

// ResolveUnitCoordinates maps every unit to the coordinates of the first record
// that carries them. Records with zero coordinates are skipped, so a unit whose
// records all lack coordinates is absent from the result. The scan stops as soon
// as every distinct unit has been resolved.
func ResolveUnitCoordinates(records []CaseRecord) map[string]Geo {
	distinct := make(map[string]struct{})
	for _, r := range records {
		distinct[r.Unit] = struct{}{}
	}

	coords := make(map[string]Geo, len(distinct))
	for _, r := range records {
		if len(coords) == len(distinct) {
			break
		}
		if r.Geo.IsZero() {
			continue
		}
		if _, ok := coords[r.Unit]; !ok {
			coords[r.Unit] = r.Geo
		}
	}
	return coords
}

// PartitionByDate splits records into per-date subsets, preserving file order
// within each subset. Dates are compared as raw strings.
func PartitionByDate(records []CaseRecord) map[string][]CaseRecord {
	partitions := make(map[string][]CaseRecord)
	for _, r := range records {
		partitions[r.ReportDate] = append(partitions[r.ReportDate], r)
	}
	return partitions
}

// CountByUnit counts the records per unit in one partition and attaches each
// unit's coordinates. Only units present in the partition appear in the output,
// sorted by unit name. A unit missing from coords yields ErrUnknownUnit.
func CountByUnit(partition []CaseRecord, coords map[string]Geo) ([]UnitCount, error) {
	counts := make(map[string]int)
	for _, r := range partition {
		counts[r.Unit]++
	}

	out := make([]UnitCount, 0, len(counts))
	for unit, n := range counts {
		geo, ok := coords[unit]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
		}
		out = append(out, UnitCount{Unit: unit, Lat: geo.Lat, Lon: geo.Lon, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out, nil
}

// Aggregate runs coordinate resolution, date partitioning and per-unit counting
// over parsed records.
func Aggregate(records []CaseRecord) (Aggregation, error) {
	if len(records) == 0 {
		return Aggregation{}, ErrNoRecords
	}

	coords := ResolveUnitCoordinates(records)

	partitions := PartitionByDate(records)
	dates := make([]string, 0, len(partitions))
	for d := range partitions {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	daily := make(map[string][]UnitCount, len(partitions))
	for _, date := range dates {
		counts, err := CountByUnit(partitions[date], coords)
		if err != nil {
			return Aggregation{}, fmt.Errorf("date %q: %w", date, err)
		}
		daily[date] = counts
	}

	totals, err := CountByUnit(records, coords)
	if err != nil {
		return Aggregation{}, err
	}

	return Aggregation{
		Coordinates: coords,
		Daily:       daily,
		Totals:      totals,
		Records:     len(records),
	}, nil
}

// SumCounts returns the total count across a per-date table.
func SumCounts(counts []UnitCount) int {
	n := 0
	for _, c := range counts {
		n += c.Count
	}
	return n
}
