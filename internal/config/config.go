package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all settings, populated from environment variables and an
// optional YAML file named by CONFIG_FILE. Environment variables win.
type Config struct {
	InputPath  string
	OutputPath string

	// HeatmapDate selects a single report date's counts as weights. Empty means
	// weighting over the full dataset.
	HeatmapDate     string
	HeatmapTimeline bool

	MapStyle    string
	ColorRamp   string
	MapZoom     float64
	Opacity     float64
	Threshold   float64
	RadiusPx    int
	Intensity   float64
	Aggregation string

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	Serve           bool
	ShutdownTimeout time.Duration

	// Mapbox tiles and geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRegion    string

	// Optional exports.
	XLSXPath     string
	SQLitePath   string
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("input_path", "data/conposcovidloc.csv")
	v.SetDefault("output_path", "heatmap_layer.html")
	v.SetDefault("heatmap_date", "")
	v.SetDefault("heatmap_timeline", "false")
	v.SetDefault("map_style", "satellite")
	v.SetDefault("color_ramp", "brewer-blue")
	v.SetDefault("map_zoom", "6")
	v.SetDefault("heatmap_opacity", "0.9")
	v.SetDefault("heatmap_threshold", "1")
	v.SetDefault("heatmap_radius_pixels", "30")
	v.SetDefault("heatmap_intensity", "1")
	v.SetDefault("heatmap_aggregation", "MEAN")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("serve", "false")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("mapbox_token", "")
	v.SetDefault("mapbox_enabled", "")
	v.SetDefault("mapbox_timeout", "5s")
	v.SetDefault("mapbox_cache_size", "1000")
	v.SetDefault("mapbox_region", "Ontario, Canada")
	v.SetDefault("xlsx_path", "")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("kafka_enabled", "false")
	v.SetDefault("kafka_brokers", "localhost:9092")
	v.SetDefault("kafka_topic", "phu-daily-case-counts")
	v.AutomaticEnv()
	return v
}

// Load reads configuration, applying defaults where unset.
func Load() (*Config, error) {
	v := newViper()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
	}

	p := parser{v: v}
	cfg := &Config{
		InputPath:       strings.TrimSpace(v.GetString("input_path")),
		OutputPath:      strings.TrimSpace(v.GetString("output_path")),
		HeatmapDate:     strings.TrimSpace(v.GetString("heatmap_date")),
		HeatmapTimeline: p.boolean("heatmap_timeline"),
		MapStyle:        v.GetString("map_style"),
		ColorRamp:       v.GetString("color_ramp"),
		MapZoom:         p.float("map_zoom", 0, 24),
		Opacity:         p.float("heatmap_opacity", 0, 1),
		Threshold:       p.float("heatmap_threshold", 0, 1),
		RadiusPx:        p.positiveInt("heatmap_radius_pixels"),
		Intensity:       p.float("heatmap_intensity", 0, 100),
		Aggregation:     strings.ToUpper(strings.TrimSpace(v.GetString("heatmap_aggregation"))),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		HTTPAddr:        v.GetString("http_addr"),
		Serve:           p.boolean("serve"),
		ShutdownTimeout: p.duration("shutdown_timeout"),
		MapboxToken:     v.GetString("mapbox_token"),
		MapboxTimeout:   p.duration("mapbox_timeout"),
		MapboxCacheSize: parseMapboxCacheSize(v.GetString("mapbox_cache_size")),
		MapboxRegion:    v.GetString("mapbox_region"),
		XLSXPath:        strings.TrimSpace(v.GetString("xlsx_path")),
		SQLitePath:      strings.TrimSpace(v.GetString("sqlite_path")),
		KafkaEnabled:    p.boolean("kafka_enabled"),
		KafkaBrokers:    parseBrokers(v.GetString("kafka_brokers")),
		KafkaTopic:      strings.TrimSpace(v.GetString("kafka_topic")),
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if s := v.GetString("mapbox_enabled"); s != "" {
		cfg.MapboxEnabled = s == "true"
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.InputPath == "" {
		return errors.New("INPUT_PATH is required")
	}
	if c.OutputPath == "" {
		return errors.New("OUTPUT_PATH is required")
	}
	if c.Opacity <= 0 {
		return errors.New("invalid HEATMAP_OPACITY: must be in (0, 1]")
	}
	if c.Threshold <= 0 {
		return errors.New("invalid HEATMAP_THRESHOLD: must be in (0, 1]")
	}
	if c.Intensity <= 0 {
		return errors.New("invalid HEATMAP_INTENSITY: must be positive")
	}
	if c.Aggregation != "SUM" && c.Aggregation != "MEAN" {
		return fmt.Errorf("invalid HEATMAP_AGGREGATION %q: must be SUM or MEAN", c.Aggregation)
	}
	if _, err := domain.MapStyleURL(c.MapStyle); err != nil {
		return fmt.Errorf("invalid MAP_STYLE: %w", err)
	}
	if _, err := domain.ColorRampByName(c.ColorRamp); err != nil {
		return fmt.Errorf("invalid COLOR_RAMP: %w", err)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	return nil
}

// parser collects the first conversion error so Load can report it by variable name.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(key, format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %s", strings.ToUpper(key), fmt.Sprintf(format, args...))
	}
}

func (p *parser) duration(key string) time.Duration {
	s := p.v.GetString(key)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, "%q is not a positive duration", s)
		return 0
	}
	return d
}

func (p *parser) float(key string, lo, hi float64) float64 {
	s := p.v.GetString(key)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < lo || f > hi {
		p.fail(key, "%q is not a number in [%g, %g]", s, lo, hi)
		return 0
	}
	return f
}

func (p *parser) positiveInt(key string) int {
	s := p.v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		p.fail(key, "%q is not a positive integer", s)
		return 0
	}
	return n
}

func (p *parser) boolean(key string) bool {
	s := p.v.GetString(key)
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		p.fail(key, "%q is not a boolean", s)
		return false
	}
	return b
}

// parseMapboxCacheSize falls back to 1000 on missing or non-positive values.
func parseMapboxCacheSize(s string) int {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
		return n
	}
	return 1000
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
