// Package deckgl renders heatmaps as standalone HTML documents that load
// deck.gl and Mapbox GL from a CDN.
package deckgl

import (
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
)

//go:embed heatmap.html.tmpl
var pageTemplate string

// ErrNoPoints is returned when a heatmap has nothing to draw.
var ErrNoPoints = errors.New("heatmap has no points")

// Renderer writes deck.gl HeatmapLayer pages.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the page template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("heatmap").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// page is the data embedded into the script block. html/template encodes it
// as a JS object literal.
type page struct {
	Title       string                `json:"title"`
	Date        string                `json:"date"`
	Points      []domain.HeatmapPoint `json:"points"`
	Frames      []domain.HeatmapFrame `json:"frames,omitempty"`
	View        domain.ViewState      `json:"view"`
	MapStyle    string                `json:"mapStyle"`
	MapboxToken string                `json:"mapboxToken"`
	Layer       layer                 `json:"layer"`
	GeneratedAt string                `json:"generatedAt"`
}

type layer struct {
	Opacity      float64    `json:"opacity"`
	Threshold    float64    `json:"threshold"`
	RadiusPixels int        `json:"radiusPixels"`
	Intensity    float64    `json:"intensity"`
	Aggregation  string     `json:"aggregation"`
	ColorRange   [][3]uint8 `json:"colorRange,omitempty"`
}

// Render writes h as an HTML page. A nil colour range leaves deck.gl's default.
func (r *Renderer) Render(w io.Writer, h domain.Heatmap) error {
	if len(h.Points) == 0 && len(h.Frames) == 0 {
		return ErrNoPoints
	}

	var ramp [][3]uint8
	for _, c := range h.Layer.ColorRange {
		ramp = append(ramp, [3]uint8(c))
	}

	data := struct {
		Title string
		Page  page
	}{
		Title: h.Title,
		Page: page{
			Title:       h.Title,
			Date:        h.Date,
			Points:      nonNil(h.Points),
			Frames:      h.Frames,
			View:        h.View,
			MapStyle:    h.MapStyle,
			MapboxToken: h.MapboxToken,
			Layer: layer{
				Opacity:      h.Layer.Opacity,
				Threshold:    h.Layer.Threshold,
				RadiusPixels: h.Layer.RadiusPixels,
				Intensity:    h.Layer.Intensity,
				Aggregation:  h.Layer.Aggregation,
				ColorRange:   ramp,
			},
			GeneratedAt: h.GeneratedAt.UTC().Format(time.RFC3339),
		},
	}
	return r.tmpl.Execute(w, data)
}

func nonNil(points []domain.HeatmapPoint) []domain.HeatmapPoint {
	if points == nil {
		return []domain.HeatmapPoint{}
	}
	return points
}
