// Package journal mirrors delivery attempts into an append-only, rotating
// JSONL file that survives database resets.
package journal

import (
	"context"
	"time"

	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/model"
)

// Record is one relay attempt.
type Record struct {
	Timestamp time.Time             `json:"timestamp"`
	BatchID   string                `json:"batch_id"`
	PeriodID  int64                 `json:"period_id"`
	DraftID   int64                 `json:"draft_id"`
	Category  model.Category        `json:"category"`
	Recipient string                `json:"recipient"`
	Attempt   int                   `json:"attempt"`
	Outcome   model.DeliveryOutcome `json:"outcome"`
	MessageID string                `json:"message_id,omitempty"`
	Error     string                `json:"error,omitempty"`
	LatencyMS int64                 `json:"latency_ms"`
}

// FromEvent converts a delivery event.
func FromEvent(e events.DeliveryAttempted) Record {
	return Record{
		Timestamp: e.At,
		BatchID:   e.BatchID,
		PeriodID:  e.PeriodID,
		DraftID:   e.DraftID,
		Category:  e.Category,
		Recipient: e.Recipient,
		Attempt:   e.Attempt,
		Outcome:   e.Outcome,
		MessageID: e.MessageID,
		Error:     e.Err,
		LatencyMS: e.Latency.Milliseconds(),
	}
}

// Query filters records. Zero values match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	PeriodID int64
	DraftID  int64
	Outcome  model.DeliveryOutcome
}

func (q Query) match(r Record) bool {
	switch {
	case !q.Start.IsZero() && r.Timestamp.Before(q.Start):
		return false
	case !q.End.IsZero() && r.Timestamp.After(q.End):
		return false
	case q.PeriodID != 0 && r.PeriodID != q.PeriodID:
		return false
	case q.DraftID != 0 && r.DraftID != q.DraftID:
		return false
	case q.Outcome != "" && r.Outcome != q.Outcome:
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
