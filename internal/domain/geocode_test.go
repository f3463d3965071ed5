package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	results map[string]GeocodingResult
	err     error
	calls   map[string]int
	region  string
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, name, region string) (GeocodingResult, error) {
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
	m.region = region
	if m.err != nil {
		return GeocodingResult{}, m.err
	}
	return m.results[name], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testRegion = "Ontario, Canada"

// --- tests ---

func TestFillMissingCoordinates_NilGeocoder(t *testing.T) {
	records := []CaseRecord{{ReportDate: testDay1, Unit: "UnitA"}}

	out := FillMissingCoordinates(context.Background(), records, nil, testRegion, discardLogger())

	assert.Equal(t, records, out)
}

func TestFillMissingCoordinates_FillsUnlocatedUnits(t *testing.T) {
	geo := &mockGeocoder{results: map[string]GeocodingResult{
		"Peel Public Health": {Lat: 43.6474, Lon: -79.7088, PlaceName: "Peel", Confidence: 0.9},
	}}
	records := []CaseRecord{
		{ReportDate: testDay1, Unit: "Peel Public Health"},
		{ReportDate: testDay2, Unit: "Peel Public Health"},
		{ReportDate: testDay1, Unit: "UnitA", Geo: Geo{Lat: 20, Lon: 10}},
	}

	out := FillMissingCoordinates(context.Background(), records, geo, testRegion, discardLogger())

	assert.Equal(t, Geo{Lat: 43.6474, Lon: -79.7088}, out[0].Geo)
	assert.Equal(t, Geo{Lat: 43.6474, Lon: -79.7088}, out[1].Geo)
	assert.Equal(t, Geo{Lat: 20, Lon: 10}, out[2].Geo)
	assert.Equal(t, 1, geo.calls["Peel Public Health"], "each unit is geocoded once")
	assert.Zero(t, geo.calls["UnitA"])
	assert.Equal(t, testRegion, geo.region)
	assert.True(t, records[0].Geo.IsZero(), "input must not be modified")
}

func TestFillMissingCoordinates_SkipsUnitsLocatedElsewhere(t *testing.T) {
	geo := &mockGeocoder{}
	records := []CaseRecord{
		{ReportDate: testDay1, Unit: "UnitA"},
		{ReportDate: testDay2, Unit: "UnitA", Geo: Geo{Lat: 20, Lon: 10}},
	}

	out := FillMissingCoordinates(context.Background(), records, geo, testRegion, discardLogger())

	assert.Empty(t, geo.calls)
	assert.True(t, out[0].Geo.IsZero())

	coords := ResolveUnitCoordinates(out)
	assert.Equal(t, Geo{Lat: 20, Lon: 10}, coords["UnitA"])
}

func TestFillMissingCoordinates_ErrorGracefulDegradation(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("API timeout")}
	records := []CaseRecord{{ReportDate: testDay1, Unit: "UnitA"}}

	out := FillMissingCoordinates(context.Background(), records, geo, testRegion, discardLogger())

	assert.True(t, out[0].Geo.IsZero())
	_, err := Aggregate(out)
	require.ErrorIs(t, err, ErrUnknownUnit)
}

func TestFillMissingCoordinates_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{results: map[string]GeocodingResult{}}
	records := []CaseRecord{{ReportDate: testDay1, Unit: "Nowhere"}}

	out := FillMissingCoordinates(context.Background(), records, geo, testRegion, discardLogger())

	assert.True(t, out[0].Geo.IsZero())
	assert.Equal(t, 1, geo.calls["Nowhere"])
}
