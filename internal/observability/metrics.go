package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the heatmap pipeline.
type Metrics struct {
	RecordsLoaded   prometheus.Counter
	UnitsResolved   prometheus.Gauge
	DatesAggregated prometheus.Gauge
	PipelineRuns    *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram

	// Export metrics.
	Exports *prometheus.CounterVec // labels: exporter, outcome={success,error}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RecordsLoaded,
		m.UnitsResolved,
		m.DatesAggregated,
		m.PipelineRuns,
		m.RunDuration,
		m.Exports,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phu_heatmap",
			Name:      "records_loaded_total",
			Help:      "Total case records parsed from the input file.",
		}),
		UnitsResolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "phu_heatmap",
			Name:      "units_resolved",
			Help:      "Reporting units with known coordinates in the last run.",
		}),
		DatesAggregated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "phu_heatmap",
			Name:      "dates_aggregated",
			Help:      "Distinct report dates aggregated in the last run.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phu_heatmap",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "phu_heatmap",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete load-aggregate-render run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phu_heatmap",
			Name:      "exports_total",
			Help:      "Aggregate exports by exporter and outcome.",
		}, []string{"exporter", "outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phu_heatmap",
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phu_heatmap",
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "phu_heatmap",
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "phu_heatmap",
			Name:      "geocode_enabled",
			Help:      "1 when geocoding of missing coordinates is enabled, 0 otherwise.",
		}),
	}
}
