package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/MarcinPiech/DHLAI/core/metrics"
)

// PromSink exposes ingest and batch state as Prometheus gauges. Per-attempt
// counters are kept by the dispatch engine itself.
type PromSink struct {
	attempts  *prometheus.HistogramVec
	records   *prometheus.GaugeVec
	skipped   *prometheus.GaugeVec
	lastBatch prometheus.Gauge
	failed    prometheus.Gauge
}

// NewPromSink registers the sink metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dhlai_delivery_attempt_number",
			Help:    "Attempt number at which a relay call finished",
			Buckets: []float64{0, 1, 2, 3, 5},
		}, []string{"category", "outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dhlai_ingested_records",
			Help: "Records stored by the latest plan version of a period",
		}, []string{"period_id"}),
		skipped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dhlai_ingest_skipped_rows",
			Help: "Rows skipped by the latest plan version of a period",
		}, []string{"period_id"}),
		lastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dhlai_last_batch_timestamp_seconds",
			Help: "Unix time of the last dispatch batch",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dhlai_last_batch_failed_drafts",
			Help: "Drafts that failed in the last dispatch batch",
		}),
	}
	var err error
	if s.attempts, err = register(reg, s.attempts); err != nil {
		return nil, err
	}
	if s.records, err = register(reg, s.records); err != nil {
		return nil, err
	}
	if s.skipped, err = register(reg, s.skipped); err != nil {
		return nil, err
	}
	if s.lastBatch, err = register(reg, s.lastBatch); err != nil {
		return nil, err
	}
	if s.failed, err = register(reg, s.failed); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// before by another sink.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordDelivery(ev coremetrics.DeliveryEvent) error {
	s.attempts.WithLabelValues(string(ev.Category), string(ev.Outcome)).Observe(float64(ev.Attempt))
	return nil
}

func (s *PromSink) RecordPeriod(ev coremetrics.PeriodEvent) error {
	s.lastBatch.Set(float64(ev.Time.Unix()))
	s.failed.Set(float64(ev.Failed))
	return nil
}

func (s *PromSink) RecordIngest(ev coremetrics.IngestEvent) error {
	id := strconv.FormatInt(ev.PeriodID, 10)
	s.records.WithLabelValues(id).Set(float64(ev.Records))
	s.skipped.WithLabelValues(id).Set(float64(ev.Skipped))
	return nil
}
