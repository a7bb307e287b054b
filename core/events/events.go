package events

import (
	"time"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// Event is implemented by every pipeline event.
type Event interface {
	EventName() string
}

// Publisher accepts events. *eventbus.Bus[Event] satisfies it.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

type IngestCompleted struct {
	PeriodID  int64
	VersionID int64
	Version   int
	Records   int
	Skipped   int
	Unchanged bool
	At        time.Time
}

func (IngestCompleted) EventName() string { return "ingest_completed" }

type BagsIngested struct {
	PeriodID int64
	Records  int
	At       time.Time
}

func (BagsIngested) EventName() string { return "bags_ingested" }

type DraftsGenerated struct {
	PeriodID   int64
	ByCategory map[model.Category]int
	At         time.Time
}

func (DraftsGenerated) EventName() string { return "drafts_generated" }

// DeliveryAttempted is published after every relay attempt.
type DeliveryAttempted struct {
	BatchID   string
	DraftID   int64
	PeriodID  int64
	Category  model.Category
	Recipient string
	Attempt   int
	Outcome   model.DeliveryOutcome
	MessageID string
	Err       string
	Latency   time.Duration
	At        time.Time
}

func (DeliveryAttempted) EventName() string { return "delivery_attempted" }

type PeriodDispatched struct {
	BatchID    string
	PeriodID   int64
	Sent       int
	Failed     int
	MarkedSent bool
	At         time.Time
}

func (PeriodDispatched) EventName() string { return "period_dispatched" }
