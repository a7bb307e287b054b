package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/MarcinPiech/DHLAI/core/metrics"
	"github.com/MarcinPiech/DHLAI/infra/logger"
)

// InfluxSink writes pipeline events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.DeliverySink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDelivery writes one relay attempt.
func (s *InfluxSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("delivery_attempt").
		AddTag("category", string(ev.Category)).
		AddTag("outcome", string(ev.Outcome)).
		AddTag("batch_id", ev.BatchID).
		AddTag("period_id", strconv.FormatInt(ev.PeriodID, 10)).
		AddField("draft_id", ev.DraftID).
		AddField("attempt", ev.Attempt).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPeriod writes a dispatch batch summary.
func (s *InfluxSink) RecordPeriod(ev coremetrics.PeriodEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_batch").
		AddTag("batch_id", ev.BatchID).
		AddTag("period_id", strconv.FormatInt(ev.PeriodID, 10)).
		AddField("sent", ev.Sent).
		AddField("failed", ev.Failed).
		AddField("marked_sent", ev.MarkedSent).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordIngest writes a stored plan version.
func (s *InfluxSink) RecordIngest(ev coremetrics.IngestEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_ingest").
		AddTag("period_id", strconv.FormatInt(ev.PeriodID, 10)).
		AddField("version", ev.Version).
		AddField("records", ev.Records).
		AddField("skipped", ev.Skipped).
		AddField("unchanged", ev.Unchanged).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
