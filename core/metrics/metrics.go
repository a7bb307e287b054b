package metrics

import (
	"time"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// DeliveryEvent is one relay attempt.
type DeliveryEvent struct {
	BatchID   string
	PeriodID  int64
	DraftID   int64
	Category  model.Category
	Recipient string
	Attempt   int
	Outcome   model.DeliveryOutcome
	Latency   time.Duration
	Time      time.Time
}

// DeliverySink records relay attempts.
type DeliverySink interface {
	RecordDelivery(ev DeliveryEvent) error
}

// PeriodEvent summarises a dispatch batch.
type PeriodEvent struct {
	BatchID    string
	PeriodID   int64
	Sent       int
	Failed     int
	MarkedSent bool
	Time       time.Time
}

// PeriodRecorder is implemented by sinks that record dispatch batches.
type PeriodRecorder interface {
	RecordPeriod(ev PeriodEvent) error
}

// IngestEvent describes one stored plan version.
type IngestEvent struct {
	PeriodID  int64
	Version   int
	Records   int
	Skipped   int
	Unchanged bool
	Time      time.Time
}

// IngestRecorder is implemented by sinks that record ingests.
type IngestRecorder interface {
	RecordIngest(ev IngestEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDelivery(DeliveryEvent) error { return nil }
func (NopSink) RecordPeriod(PeriodEvent) error     { return nil }
func (NopSink) RecordIngest(IngestEvent) error     { return nil }
