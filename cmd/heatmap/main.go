package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/phu-heatmap/internal/adapter/csvfile"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/deckgl"
	httpadapter "github.com/couchcryptid/phu-heatmap/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/phu-heatmap/internal/adapter/kafka"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/mapbox"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/sqlite"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/xlsx"
	"github.com/couchcryptid/phu-heatmap/internal/config"
	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/couchcryptid/phu-heatmap/internal/observability"
	"github.com/couchcryptid/phu-heatmap/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	renderer, err := deckgl.NewRenderer()
	if err != nil {
		logger.Error("failed to build renderer", "error", err)
		return 1
	}

	exporters, closers, err := buildExporters(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("exporter close error", "error", err)
			}
		}
	}()
	if err != nil {
		logger.Error("failed to build exporters", "error", err)
		return 1
	}

	opts, err := heatmapOptions(cfg)
	if err != nil {
		logger.Error("invalid heatmap options", "error", err)
		return 1
	}

	p := pipeline.New(csvfile.NewLoader(logger), geocoder, renderer, exporters, opts, logger, metrics)

	if _, err := p.Run(ctx, cfg.InputPath, cfg.OutputPath); err != nil {
		if !cfg.Serve {
			return 1
		}
	}
	if !cfg.Serve {
		return 0
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, renderer, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// SIGHUP regenerates the heatmap from the current input file.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			logger.Info("reloading input")
			p.Run(ctx, cfg.InputPath, cfg.OutputPath) //nolint:errcheck // logged by the pipeline
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
			logger.Info("shutdown complete")
			return 0
		}
	}
}

func heatmapOptions(cfg *config.Config) (pipeline.Options, error) {
	style, err := domain.MapStyleURL(cfg.MapStyle)
	if err != nil {
		return pipeline.Options{}, err
	}
	ramp, err := domain.ColorRampByName(cfg.ColorRamp)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Title:         "Ontario COVID-19 cases by reporting public health unit",
		Date:          cfg.HeatmapDate,
		Timeline:      cfg.HeatmapTimeline,
		Zoom:          cfg.MapZoom,
		MapStyle:      style,
		MapboxToken:   cfg.MapboxToken,
		GeocodeRegion: cfg.MapboxRegion,
		Layer: domain.LayerOptions{
			Opacity:      cfg.Opacity,
			Threshold:    cfg.Threshold,
			RadiusPixels: cfg.RadiusPx,
			Intensity:    cfg.Intensity,
			Aggregation:  cfg.Aggregation,
			ColorRange:   ramp,
		},
	}, nil
}

// buildExporters returns the configured exporters and the close functions to
// run on exit. Close functions are returned even when an error occurs.
func buildExporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Exporter, []func() error, error) {
	var (
		exporters []pipeline.Exporter
		closers   []func() error
	)
	if cfg.XLSXPath != "" {
		exporters = append(exporters, xlsx.NewWriter(cfg.XLSXPath, logger))
		logger.Info("xlsx export enabled", "path", cfg.XLSXPath)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, closers, err
		}
		exporters = append(exporters, store)
		closers = append(closers, store.Close)
		logger.Info("sqlite export enabled", "path", cfg.SQLitePath)
	}
	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		exporters = append(exporters, w)
		closers = append(closers, w.Close)
		logger.Info("kafka export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	return exporters, closers, nil
}
