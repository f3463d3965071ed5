// Command validate loads a case-report CSV and checks the aggregation
// invariants: every record lands in exactly one date partition, each unit keeps
// one location, per-date tables sum to the partition sizes, and totals match
// the daily tables. With -sqlite it also compares a previous SQLite export
// against a fresh aggregation.
//
// Usage:
//
//	go run ./cmd/validate -csv data/conposcovidloc.csv [-sqlite out/counts.db]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/phu-heatmap/internal/adapter/csvfile"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/sqlite"
	"github.com/couchcryptid/phu-heatmap/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the case-report CSV")
	sqlitePath := flag.String("sqlite", "", "optional SQLite export to compare against")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(context.Background(), *csvPath, *sqlitePath); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, csvPath, sqlitePath string) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Case Count Integrity Validation ===")
	fmt.Println()

	raw, err := csvfile.NewLoader(logger).Load(ctx, csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}

	pruned := domain.PruneColumns(raw, domain.CaseColumns)
	records, err := domain.ParseCaseRecords(pruned)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse records: %v\n", err)
		return 1
	}

	agg, err := domain.Aggregate(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: aggregate: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validatePruning(raw, pruned),
		validateCoordinates(records, agg),
		validatePartitions(records, agg),
		validateTotals(agg),
	}
	if sqlitePath != "" {
		phases = append(phases, validateSQLite(ctx, sqlitePath, agg, logger))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d, dates: %d, units: %d\n", agg.Records, len(agg.Daily), len(agg.Coordinates))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validatePruning(raw, pruned domain.Table) *phase {
	p := &phase{name: "Column pruning"}
	if len(pruned.Rows) != len(raw.Rows) {
		p.errorf("row count changed: %d -> %d", len(raw.Rows), len(pruned.Rows))
	}
	allowed := make(map[string]bool, len(domain.CaseColumns))
	for _, c := range domain.CaseColumns {
		allowed[c] = true
	}
	for _, h := range pruned.Header {
		if !allowed[h] {
			p.errorf("unexpected column %q kept", h)
		}
	}
	for _, c := range domain.CaseColumns {
		if raw.Index(c) >= 0 && pruned.Index(c) < 0 {
			p.errorf("column %q dropped", c)
		}
	}
	return p
}

func validateCoordinates(records []domain.CaseRecord, agg domain.Aggregation) *phase {
	p := &phase{name: "Unit coordinates"}
	seen := make(map[string]domain.Geo)
	for i, r := range records {
		if r.Geo.IsZero() {
			continue
		}
		prev, ok := seen[r.Unit]
		if !ok {
			seen[r.Unit] = r.Geo
			continue
		}
		if prev != r.Geo {
			p.errorf("record %d: %q at %v, first seen at %v", i+1, r.Unit, r.Geo, prev)
		}
	}
	for unit, geo := range seen {
		if agg.Coordinates[unit] != geo {
			p.errorf("%q resolved to %v, first record has %v", unit, agg.Coordinates[unit], geo)
		}
	}
	for _, date := range agg.Dates() {
		for _, c := range agg.Daily[date] {
			if (domain.Geo{Lat: c.Lat, Lon: c.Lon}) != agg.Coordinates[c.Unit] {
				p.errorf("%s/%s: location differs from coordinate table", date, c.Unit)
			}
		}
	}
	return p
}

func validatePartitions(records []domain.CaseRecord, agg domain.Aggregation) *phase {
	p := &phase{name: "Date partitions"}
	want := make(map[string]map[string]int)
	for _, r := range records {
		if want[r.ReportDate] == nil {
			want[r.ReportDate] = make(map[string]int)
		}
		want[r.ReportDate][r.Unit]++
	}
	if len(want) != len(agg.Daily) {
		p.errorf("date count: want %d, got %d", len(want), len(agg.Daily))
	}

	sum := 0
	for date, units := range want {
		counts, err := agg.Day(date)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		if len(counts) != len(units) {
			p.errorf("%s: want %d units, got %d", date, len(units), len(counts))
		}
		for _, c := range counts {
			if c.Count != units[c.Unit] {
				p.errorf("%s/%s: want %d, got %d", date, c.Unit, units[c.Unit], c.Count)
			}
		}
		sum += domain.SumCounts(counts)
	}
	if sum != len(records) {
		p.errorf("daily counts sum to %d, want %d records", sum, len(records))
	}
	return p
}

func validateTotals(agg domain.Aggregation) *phase {
	p := &phase{name: "Totals match daily tables"}
	want := make(map[string]int)
	for _, counts := range agg.Daily {
		for _, c := range counts {
			want[c.Unit] += c.Count
		}
	}
	if len(agg.Totals) != len(want) {
		p.errorf("unit count: want %d, got %d", len(want), len(agg.Totals))
	}
	for _, c := range agg.Totals {
		if c.Count != want[c.Unit] {
			p.errorf("%s: want %d, got %d", c.Unit, want[c.Unit], c.Count)
		}
	}
	if domain.SumCounts(agg.Totals) != agg.Records {
		p.errorf("totals sum to %d, want %d", domain.SumCounts(agg.Totals), agg.Records)
	}
	return p
}

func validateSQLite(ctx context.Context, path string, agg domain.Aggregation, logger *slog.Logger) *phase {
	p := &phase{name: "SQLite export matches CSV"}
	if _, err := os.Stat(path); err != nil {
		p.errorf("%v", err)
		return p
	}
	store, err := sqlite.Open(ctx, path, logger)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	defer store.Close()

	for _, date := range agg.Dates() {
		got, err := store.Day(ctx, date)
		if err != nil {
			p.errorf("%s: %v", date, err)
			continue
		}
		want := agg.Daily[date]
		if len(got) != len(want) {
			p.errorf("%s: want %d rows, got %d", date, len(want), len(got))
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				p.errorf("%s: row %d: want %+v, got %+v", date, i, want[i], got[i])
			}
		}
	}
	return p
}
