package deckgl

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeatmap() domain.Heatmap {
	return domain.Heatmap{
		Title: "Cases by PHU",
		Points: []domain.HeatmapPoint{
			{Lon: -79.38, Lat: 43.65, Weight: 12},
			{Lon: -75.69, Lat: 45.42, Weight: 3},
		},
		View:        domain.ViewState{Latitude: 44, Longitude: -78, Zoom: 6},
		MapStyle:    "mapbox://styles/mapbox/satellite-v9",
		MapboxToken: "pk.test",
		Layer: domain.LayerOptions{
			Opacity:      0.9,
			Threshold:    1,
			RadiusPixels: 30,
			Intensity:    1,
			Aggregation:  "MEAN",
			ColorRange:   domain.BrewerBlue,
		},
		GeneratedAt: time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

var pageLiteral = regexp.MustCompile(`const page = (\{.*\});`)

// embeddedPage extracts and decodes the data object written into the script block.
func embeddedPage(t *testing.T, html string) page {
	t.Helper()
	m := pageLiteral.FindStringSubmatch(html)
	require.Len(t, m, 2, "page literal not found")
	var p page
	require.NoError(t, json.Unmarshal([]byte(m[1]), &p))
	return p
}

func render(t *testing.T, h domain.Heatmap) string {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, h))
	return buf.String()
}

func TestRender_EmbedsLayerData(t *testing.T) {
	out := render(t, testHeatmap())

	assert.Contains(t, out, "<title>Cases by PHU</title>")
	assert.Contains(t, out, "deck.HeatmapLayer")
	assert.Contains(t, out, `content="2021-03-01T12:00:00Z"`)

	p := embeddedPage(t, out)
	assert.Equal(t, testHeatmap().Points, p.Points)
	assert.Equal(t, testHeatmap().View, p.View)
	assert.Equal(t, "mapbox://styles/mapbox/satellite-v9", p.MapStyle)
	assert.Equal(t, "pk.test", p.MapboxToken)
	assert.Equal(t, 30, p.Layer.RadiusPixels)
	assert.Equal(t, "MEAN", p.Layer.Aggregation)
	require.Len(t, p.Layer.ColorRange, 6)
	assert.Equal(t, [3]uint8{8, 104, 172}, p.Layer.ColorRange[5])
	assert.Empty(t, p.Frames)
}

func TestRender_LibraryColorRangeOmitted(t *testing.T) {
	h := testHeatmap()
	h.Layer.ColorRange = nil

	out := render(t, h)
	assert.NotContains(t, out, `"colorRange"`)
}

func TestRender_Timeline(t *testing.T) {
	h := testHeatmap()
	h.Frames = []domain.HeatmapFrame{
		{Date: "2020-04-01", Points: h.Points[:1]},
		{Date: "2020-04-02", Points: h.Points[1:]},
	}

	p := embeddedPage(t, render(t, h))
	require.Len(t, p.Frames, 2)
	assert.Equal(t, "2020-04-02", p.Frames[1].Date)
}

func TestRender_EscapesTitle(t *testing.T) {
	h := testHeatmap()
	h.Title = `</script><script>alert(1)</script>`

	out := render(t, h)
	assert.NotContains(t, out, "<script>alert(1)</script>")
}

func TestRender_NoPoints(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	h := testHeatmap()
	h.Points = nil
	err = r.Render(&bytes.Buffer{}, h)
	require.ErrorIs(t, err, ErrNoPoints)
}
