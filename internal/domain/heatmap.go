package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// HeatmapPoint is one weighted position fed to the heatmap layer.
type HeatmapPoint struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Weight float64 `json:"weight"`
}

// HeatmapFrame is the set of points for a single report date.
type HeatmapFrame struct {
	Date   string         `json:"date"`
	Points []HeatmapPoint `json:"points"`
}

// ViewState is the initial camera of the rendered map.
type ViewState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
	Pitch     float64 `json:"pitch"`
	Bearing   float64 `json:"bearing"`
}

// RGB is a colour stop of a heatmap colour ramp.
type RGB [3]uint8

// ColorRamp is an ordered list of colour stops, low intensity first.
type ColorRamp []RGB

// BrewerBlue is the six-stop ColorBrewer GnBu ramp, light green to deep blue.
var BrewerBlue = ColorRamp{
	{240, 249, 232},
	{204, 235, 197},
	{168, 221, 181},
	{123, 204, 196},
	{67, 162, 202},
	{8, 104, 172},
}

// ColorRampByName resolves a configured ramp name. "library" returns nil so the
// renderer applies its own default.
func ColorRampByName(name string) (ColorRamp, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "brewer-blue":
		return BrewerBlue, nil
	case "library":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown color ramp %q", name)
	}
}

// Named Mapbox base-map styles.
var mapStyles = map[string]string{
	"satellite": "mapbox://styles/mapbox/satellite-v9",
	"light":     "mapbox://styles/mapbox/light-v9",
	"dark":      "mapbox://styles/mapbox/dark-v9",
	"road":      "mapbox://styles/mapbox/streets-v11",
}

// MapStyleURL resolves a style name or passes a mapbox:// or https:// URL through.
// An empty name selects the light style.
func MapStyleURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return mapStyles["light"], nil
	}
	if strings.HasPrefix(name, "mapbox://") || strings.HasPrefix(name, "https://") {
		return name, nil
	}
	if u, ok := mapStyles[strings.ToLower(name)]; ok {
		return u, nil
	}
	return "", fmt.Errorf("unknown map style %q", name)
}

// LayerOptions configures the heatmap layer.
type LayerOptions struct {
	Opacity      float64
	Threshold    float64
	RadiusPixels int
	Intensity    float64
	Aggregation  string // "SUM" or "MEAN"
	ColorRange   ColorRamp
}

// Heatmap is the normalised document handed to a renderer.
type Heatmap struct {
	Title       string
	Date        string // empty when weighted over the full dataset
	Points      []HeatmapPoint
	Frames      []HeatmapFrame // optional per-date frames for a timeline
	View        ViewState
	MapStyle    string
	MapboxToken string
	Layer       LayerOptions
	GeneratedAt time.Time
}

// Points converts per-unit counts into heatmap points weighted by count.
func Points(counts []UnitCount) []HeatmapPoint {
	points := make([]HeatmapPoint, len(counts))
	for i, c := range counts {
		points[i] = HeatmapPoint{Lon: c.Lon, Lat: c.Lat, Weight: float64(c.Count)}
	}
	return points
}

// Frames builds one frame per report date in ascending date order.
func Frames(agg Aggregation) []HeatmapFrame {
	dates := agg.Dates()
	frames := make([]HeatmapFrame, len(dates))
	for i, d := range dates {
		frames[i] = HeatmapFrame{Date: d, Points: Points(agg.Daily[d])}
	}
	return frames
}

// ComputeView centers the camera on the weighted centroid of the points and
// picks the widest zoom level that still shows their bounding box. Points with
// non-positive weight count once so an all-zero set still yields a center.
func ComputeView(points []HeatmapPoint) ViewState {
	if len(points) == 0 {
		return ViewState{Zoom: 1}
	}

	var sumLat, sumLon, sumW float64
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		w := p.Weight
		if w <= 0 {
			w = 1
		}
		sumLat += p.Lat * w
		sumLon += p.Lon * w
		sumW += w
		minLat, maxLat = math.Min(minLat, p.Lat), math.Max(maxLat, p.Lat)
		minLon, maxLon = math.Min(minLon, p.Lon), math.Max(maxLon, p.Lon)
	}

	return ViewState{
		Latitude:  sumLat / sumW,
		Longitude: sumLon / sumW,
		Zoom:      zoomForSpan(math.Max(maxLat-minLat, maxLon-minLon)),
	}
}

// zoomForSpan maps the larger bounding-box side in degrees to a web-mercator
// zoom level. Tiny spans clamp to 21, huge ones to 1.
func zoomForSpan(span float64) float64 {
	if span < 360.0/math.Pow(2, 20) {
		return 21
	}
	zoom := math.Floor(math.Log2(360.0) - math.Log2(span))
	if zoom < 1 {
		return 1
	}
	return zoom
}
