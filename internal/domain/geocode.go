package domain

import (
	"context"
	"log/slog"
)

// FillMissingCoordinates forward-geocodes units whose records carry no
// coordinates anywhere in the dataset and writes the result into those records.
// Units that already have coordinates on some record are left alone, since
// [ResolveUnitCoordinates] will pick those up. Each unit is looked up once.
//
// If geocoder is nil the records are returned unchanged. Lookup failures and
// empty results are logged and leave the unit unresolved (graceful
// degradation); aggregation then reports ErrUnknownUnit for it.
//
// The returned slice is a copy; the input is not modified.
func FillMissingCoordinates(ctx context.Context, records []CaseRecord, geocoder Geocoder, region string, logger *slog.Logger) []CaseRecord {
	out := make([]CaseRecord, len(records))
	copy(out, records)
	if geocoder == nil {
		return out
	}

	located := make(map[string]bool)
	var missing []string
	for _, r := range out {
		if !r.Geo.IsZero() {
			located[r.Unit] = true
		}
	}
	seen := make(map[string]bool)
	for _, r := range out {
		if located[r.Unit] || seen[r.Unit] || r.Unit == "" {
			continue
		}
		seen[r.Unit] = true
		missing = append(missing, r.Unit)
	}
	if len(missing) == 0 {
		return out
	}

	filled := make(map[string]Geo, len(missing))
	for _, unit := range missing {
		result, err := geocoder.ForwardGeocode(ctx, unit, region)
		if err != nil {
			logger.Warn("forward geocoding failed",
				"unit", unit,
				"region", region,
				"error", err,
			)
			continue
		}
		geo := Geo{Lat: result.Lat, Lon: result.Lon}
		if geo.IsZero() {
			logger.Warn("forward geocoding returned no coordinates", "unit", unit, "region", region)
			continue
		}
		logger.Debug("unit geocoded",
			"unit", unit,
			"lat", geo.Lat,
			"lon", geo.Lon,
			"place_name", result.PlaceName,
			"confidence", result.Confidence,
		)
		filled[unit] = geo
	}

	for i := range out {
		if geo, ok := filled[out[i].Unit]; ok && out[i].Geo.IsZero() {
			out[i].Geo = geo
		}
	}
	return out
}
