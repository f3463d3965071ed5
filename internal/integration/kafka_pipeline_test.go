//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/phu-heatmap/internal/adapter/csvfile"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/deckgl"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/kafka"
	"github.com/couchcryptid/phu-heatmap/internal/adapter/sqlite"
	"github.com/couchcryptid/phu-heatmap/internal/config"
	"github.com/couchcryptid/phu-heatmap/internal/domain"
	"github.com/couchcryptid/phu-heatmap/internal/observability"
	"github.com/couchcryptid/phu-heatmap/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-daily-counts"

const casesCSV = `Row_ID,Case_Reported_Date,Test_Reported_Date,Age_Group,Reporting_PHU,Reporting_PHU_Latitude,Reporting_PHU_Longitude
1,2020-04-01,2020-04-01,20s,Toronto Public Health,43.65659125,-79.37935801
2,2020-04-01,2020-04-01,30s,Toronto Public Health,43.65659125,-79.37935801
3,2020-04-01,2020-04-01,40s,Ottawa Public Health,45.34567644,-75.76381569
4,,2020-04-02,50s,Ottawa Public Health,45.34567644,-75.76381569
5,2020-04-02,2020-04-02,60s,Toronto Public Health,,
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("phu-heatmap-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestPipelineExportsToKafka runs the whole pipeline against a CSV file with a
// real Kafka exporter and checks the published per-date unit counts.
func TestPipelineExportsToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	input := filepath.Join(dir, "cases.csv")
	require.NoError(t, os.WriteFile(input, []byte(casesCSV), 0o600))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	store, err := sqlite.Open(ctx, filepath.Join(dir, "counts.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	renderer, err := deckgl.NewRenderer()
	require.NoError(t, err)

	p := pipeline.New(
		csvfile.NewLoader(discardLogger()),
		nil,
		renderer,
		[]pipeline.Exporter{writer, store},
		pipeline.Options{Title: "integration", Timeline: true},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)

	res, err := p.Run(ctx, input, filepath.Join(dir, "heatmap.html"))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Aggregation.Records)
	assert.Equal(t, []string{"2020-04-01", "2020-04-02"}, res.Aggregation.Dates())
	assert.FileExists(t, filepath.Join(dir, "heatmap.html"))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]kafka.DailyUnitCount)
	for len(got) < 4 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from topic")

		var row kafka.DailyUnitCount
		require.NoError(t, json.Unmarshal(msg.Value, &row))
		assert.Equal(t, row.ReportDate+"|"+row.Unit, string(msg.Key))
		got[string(msg.Key)] = row
	}

	assert.Equal(t, 2, got["2020-04-01|Toronto Public Health"].Count)
	assert.Equal(t, 1, got["2020-04-01|Ottawa Public Health"].Count)
	assert.Equal(t, 1, got["2020-04-02|Ottawa Public Health"].Count, "blank case date falls back to test date")
	toronto := got["2020-04-02|Toronto Public Health"]
	assert.Equal(t, 1, toronto.Count)
	assert.InDelta(t, 43.65659125, toronto.Lat, 1e-9, "blank coordinates resolve from the unit's other rows")

	day, err := store.Day(ctx, "2020-04-02")
	require.NoError(t, err)
	assert.Equal(t, res.Aggregation.Daily["2020-04-02"], day)
	assert.Equal(t, 2, domain.SumCounts(day))
}
