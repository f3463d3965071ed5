// Command genmock writes a synthetic Ontario case-report CSV with the same
// columns as the published dataset. It aggregates its own output with the
// domain package and prints per-unit totals so fixtures can be checked by eye.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/conposcovidloc.csv -rows 5000 -days 30 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
)

type unit struct {
	id       int
	name     string
	city     string
	lat, lon float64
}

// Office locations of a subset of Ontario public health units.
var units = []unit{
	{3895, "Toronto Public Health", "Toronto", 43.65659125, -79.37935801},
	{2253, "Peel Public Health", "Mississauga", 43.6474713, -79.7088933},
	{2270, "York Region Public Health Services", "Newmarket", 44.04802199, -79.48018011},
	{2251, "Ottawa Public Health", "Ottawa", 45.34567644, -75.76381569},
	{2236, "Halton Region Health Department", "Oakville", 43.41399692, -79.74479581},
	{2230, "Durham Region Health Department", "Whitby", 43.89812525, -78.94032863},
	{2237, "Hamilton Public Health Services", "Hamilton", 43.25723864, -79.87134498},
	{2260, "Middlesex-London Health Unit", "London", 42.98146842, -81.25401572},
	{2265, "Region of Waterloo, Public Health", "Waterloo", 43.46287573, -80.52091315},
	{2268, "Windsor-Essex County Health Unit", "Windsor", 42.30808164, -83.03376335},
	{2261, "Sudbury & District Health Unit", "Sudbury", 46.46609195, -80.99805912},
	{2246, "Simcoe Muskoka District Health Unit", "Barrie", 44.41071258, -79.68630597},
}

var header = []string{
	"Row_ID", "Accurate_Episode_Date", "Case_Reported_Date", "Test_Reported_Date", "Specimen_Date",
	"Age_Group", "Client_Gender", "Case_AcquisitionInfo", "Outcome1", "Outbreak_Related",
	"Reporting_PHU_ID", "Reporting_PHU", "Reporting_PHU_Address", "Reporting_PHU_City",
	"Reporting_PHU_Postal_Code", "Reporting_PHU_Website",
	"Reporting_PHU_Latitude", "Reporting_PHU_Longitude",
}

var (
	ageGroups    = []string{"<20", "20s", "30s", "40s", "50s", "60s", "70s", "80s", "90+"}
	genders      = []string{"FEMALE", "MALE", "UNSPECIFIED"}
	acquisitions = []string{"CC", "OB", "TRAVEL", "NO KNOWN EPI LINK", "MISSING INFORMATION"}
	outcomes     = []string{"Resolved", "Not Resolved", "Fatal"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output CSV path")
	rows := flag.Int("rows", 1000, "number of case rows")
	days := flag.Int("days", 14, "number of report dates")
	start := flag.String("start", "2020-04-01", "first report date (YYYY-MM-DD)")
	seed := flag.Uint64("seed", 1, "random seed")
	blankCoords := flag.Float64("blank-coords", 0, "fraction of rows with blank coordinates")
	blankCaseDate := flag.Float64("blank-case-date", 0, "fraction of rows with a blank Case_Reported_Date")
	flag.Parse()

	if *out == "" || *rows <= 0 || *days <= 0 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -rows, -days")
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	table := generate(rng, *rows, *days, first, *blankCoords, *blankCaseDate)

	if err := writeCSV(*out, table); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	log.Printf("wrote %d rows to %s", len(table.Rows), *out)

	return printStats(table)
}

func generate(rng *rand.Rand, rows, days int, first time.Time, blankCoords, blankCaseDate float64) domain.Table {
	t := domain.Table{Header: header, Rows: make([][]string, 0, rows)}
	for i := range rows {
		u := units[rng.IntN(len(units))]
		reported := first.AddDate(0, 0, rng.IntN(days))
		episode := reported.AddDate(0, 0, -rng.IntN(7))
		caseDate := reported.Format(time.DateOnly)
		if rng.Float64() < blankCaseDate {
			caseDate = ""
		}
		lat, lon := strconv.FormatFloat(u.lat, 'f', -1, 64), strconv.FormatFloat(u.lon, 'f', -1, 64)
		if rng.Float64() < blankCoords {
			lat, lon = "", ""
		}
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1),
			episode.Format(time.DateOnly),
			caseDate,
			reported.Format(time.DateOnly),
			episode.AddDate(0, 0, 1).Format(time.DateOnly),
			pick(rng, ageGroups),
			pick(rng, genders),
			pick(rng, acquisitions),
			pick(rng, outcomes),
			"",
			strconv.Itoa(u.id),
			u.name,
			"",
			u.city,
			"",
			"",
			lat,
			lon,
		})
	}
	return t
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}

func writeCSV(path string, t domain.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(t domain.Table) error {
	records, err := domain.ParseCaseRecords(domain.PruneColumns(t, domain.CaseColumns))
	if err != nil {
		return err
	}
	agg, err := domain.Aggregate(records)
	if err != nil {
		// Units whose every row lost its coordinates cannot be placed.
		log.Printf("aggregate: %v", err)
		return nil
	}

	fmt.Printf("Records: %d\n", agg.Records)
	fmt.Printf("Dates: %d (%s .. %s)\n", len(agg.Daily), agg.Dates()[0], agg.Dates()[len(agg.Daily)-1])
	fmt.Printf("Units: %d\n", len(agg.Coordinates))
	for _, c := range agg.Totals {
		fmt.Printf("  %-40s %6d\n", c.Unit, c.Count)
	}
	return nil
}
