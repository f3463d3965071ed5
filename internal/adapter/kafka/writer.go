package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/config"
	"github.com/couchcryptid/phu-heatmap/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// DailyUnitCount is the message payload: one unit's case count on one report date.
type DailyUnitCount struct {
	ReportDate string    `json:"report_date"`
	Unit       string    `json:"unit"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Count      int       `json:"count"`
	ExportedAt time.Time `json:"exported_at"`
}

// Writer publishes per-date unit counts to a Kafka topic.
// It implements pipeline.Exporter.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Export publishes every (date, unit) row of agg in a single WriteMessages call.
// Messages are keyed by date and unit so reruns land on the same partition.
func (w *Writer) Export(ctx context.Context, agg domain.Aggregation) error {
	exportedAt := domain.Now().UTC()
	var msgs []kafkago.Message
	for _, date := range agg.Dates() {
		for _, c := range agg.Daily[date] {
			msg, err := serializeToMessage(DailyUnitCount{
				ReportDate: date,
				Unit:       c.Unit,
				Lat:        c.Lat,
				Lon:        c.Lon,
				Count:      c.Count,
				ExportedAt: exportedAt,
			})
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	w.logger.Debug("kafka messages written", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a DailyUnitCount into a Kafka message.
func serializeToMessage(row DailyUnitCount) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize unit count: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(row.ReportDate + "|" + row.Unit),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "report_date", Value: []byte(row.ReportDate)},
			{Key: "exported_at", Value: []byte(row.ExportedAt.Format(time.RFC3339))},
		},
	}, nil
}
