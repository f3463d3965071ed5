package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/couchcryptid/phu-heatmap/internal/observability"
	"github.com/google/uuid"
)

// TableSource reads the raw case-report table.
type TableSource interface {
	Load(ctx context.Context, path string) (domain.Table, error)
}

// Renderer writes a heatmap document.
type Renderer interface {
	Render(w io.Writer, h domain.Heatmap) error
}

// Exporter publishes aggregated tables to an additional destination.
type Exporter interface {
	Name() string
	Export(ctx context.Context, agg domain.Aggregation) error
}

// Options configures what the pipeline renders.
type Options struct {
	Title string
	// Date selects one report date's counts as weights. Empty weights by the
	// full dataset.
	Date     string
	Timeline bool
	// Zoom overrides the computed zoom when positive.
	Zoom          float64
	MapStyle      string
	MapboxToken   string
	Layer         domain.LayerOptions
	GeocodeRegion string
}

// Result is the outcome of one run.
type Result struct {
	RunID       string
	InputPath   string
	OutputPath  string
	Aggregation domain.Aggregation
	Heatmap     domain.Heatmap
	FinishedAt  time.Time
}

// Pipeline orchestrates the load-aggregate-render sequence.
type Pipeline struct {
	source    TableSource
	geocoder  domain.Geocoder
	renderer  Renderer
	exporters []Exporter
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	ready atomic.Bool
	mu    sync.RWMutex
	last  *Result
}

// New creates a Pipeline. geocoder may be nil to skip filling missing coordinates.
func New(source TableSource, geocoder domain.Geocoder, renderer Renderer, exporters []Exporter, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		geocoder:  geocoder,
		renderer:  renderer,
		exporters: exporters,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastResult returns the result of the most recent successful run.
func (p *Pipeline) LastResult() (*Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.last != nil
}

// Run loads inputPath, aggregates it, renders the heatmap to outputPath
// (replacing any existing file) and runs every exporter.
func (p *Pipeline) Run(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("pipeline started", "input", inputPath, "output", outputPath)

	res, err := p.run(ctx, logger, inputPath, outputPath)
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		logger.Error("pipeline failed", "error", err)
		return nil, err
	}
	res.RunID = runID

	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
	p.ready.Store(true)

	logger.Info("pipeline finished",
		"records", res.Aggregation.Records,
		"units", len(res.Aggregation.Coordinates),
		"dates", len(res.Aggregation.Daily),
		"duration", time.Since(start),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, inputPath, outputPath string) (*Result, error) {
	agg, err := p.aggregate(ctx, logger, inputPath)
	if err != nil {
		return nil, err
	}

	heatmap, err := BuildHeatmap(agg, p.opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.renderer.Render(&buf, heatmap); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if err := writeFileAtomic(outputPath, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	logger.Info("heatmap written", "path", outputPath, "bytes", buf.Len(), "points", len(heatmap.Points), "date", heatmap.Date)

	if err := p.export(ctx, logger, agg); err != nil {
		return nil, err
	}

	return &Result{
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Aggregation: agg,
		Heatmap:     heatmap,
		FinishedAt:  domain.Now(),
	}, nil
}

// Aggregate loads inputPath and derives the per-date tables without rendering.
func (p *Pipeline) Aggregate(ctx context.Context, inputPath string) (domain.Aggregation, error) {
	return p.aggregate(ctx, p.logger, inputPath)
}

func (p *Pipeline) aggregate(ctx context.Context, logger *slog.Logger, inputPath string) (domain.Aggregation, error) {
	raw, err := p.source.Load(ctx, inputPath)
	if err != nil {
		return domain.Aggregation{}, fmt.Errorf("load: %w", err)
	}

	pruned := domain.PruneColumns(raw, domain.CaseColumns)
	logger.Debug("columns pruned", "before", len(raw.Header), "after", len(pruned.Header))

	records, err := domain.ParseCaseRecords(pruned)
	if err != nil {
		return domain.Aggregation{}, fmt.Errorf("parse: %w", err)
	}
	p.metrics.RecordsLoaded.Add(float64(len(records)))

	records = domain.FillMissingCoordinates(ctx, records, p.geocoder, p.opts.GeocodeRegion, logger)

	agg, err := domain.Aggregate(records)
	if err != nil {
		return domain.Aggregation{}, fmt.Errorf("aggregate: %w", err)
	}
	p.metrics.UnitsResolved.Set(float64(len(agg.Coordinates)))
	p.metrics.DatesAggregated.Set(float64(len(agg.Daily)))
	return agg, nil
}

// export runs every exporter and joins their errors.
func (p *Pipeline) export(ctx context.Context, logger *slog.Logger, agg domain.Aggregation) error {
	var errs []error
	for _, e := range p.exporters {
		if err := e.Export(ctx, agg); err != nil {
			p.metrics.Exports.WithLabelValues(e.Name(), "error").Inc()
			logger.Error("export failed", "exporter", e.Name(), "error", err)
			errs = append(errs, fmt.Errorf("export %s: %w", e.Name(), err))
			continue
		}
		p.metrics.Exports.WithLabelValues(e.Name(), "success").Inc()
		logger.Info("export complete", "exporter", e.Name())
	}
	return errors.Join(errs...)
}

// BuildHeatmap normalises an aggregation into a renderer document. The view is
// always derived from the full dataset so every date shares one camera.
func BuildHeatmap(agg domain.Aggregation, opts Options) (domain.Heatmap, error) {
	totals := domain.Points(agg.Totals)
	view := domain.ComputeView(totals)
	if opts.Zoom > 0 {
		view.Zoom = opts.Zoom
	}

	points := totals
	if opts.Date != "" {
		counts, err := agg.Day(opts.Date)
		if err != nil {
			return domain.Heatmap{}, err
		}
		points = domain.Points(counts)
	}

	h := domain.Heatmap{
		Title:       opts.Title,
		Date:        opts.Date,
		Points:      points,
		View:        view,
		MapStyle:    opts.MapStyle,
		MapboxToken: opts.MapboxToken,
		Layer:       opts.Layer,
		GeneratedAt: domain.Now(),
	}
	if opts.Timeline {
		h.Frames = domain.Frames(agg)
	}
	return h, nil
}

// writeFileAtomic replaces path with data via a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".heatmap-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
