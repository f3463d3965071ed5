//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return NewClient(token, 10*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "Toronto", "Ontario, Canada")
	require.NoError(t, err)

	assert.InDelta(t, 43.65, result.Lat, 0.2, "lat should be near Toronto")
	assert.InDelta(t, -79.38, result.Lon, 0.2, "lon should be near Toronto")
	assert.Contains(t, result.FormattedAddress, "Toronto")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	r1, err := cached.ForwardGeocode(context.Background(), "Ottawa", "Ontario, Canada")
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Ottawa")

	r2, err := cached.ForwardGeocode(context.Background(), "Ottawa", "Ontario, Canada")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
