package model

import "time"

// DeliveryOutcome is the result recorded for one send attempt.
type DeliveryOutcome string

const (
	OutcomeSent   DeliveryOutcome = "sent"
	OutcomeFailed DeliveryOutcome = "failed"
	OutcomeOpened DeliveryOutcome = "opened"
)

// DeliveryLogEntry audits one send attempt.
type DeliveryLogEntry struct {
	ID                   int64           `json:"id"`
	DraftID              int64           `json:"draft_id"` // zero once the draft was regenerated away
	PeriodID             int64           `json:"period_id"`
	Recipient            string          `json:"recipient"`
	Subject              string          `json:"subject"`
	Outcome              DeliveryOutcome `json:"outcome"`
	MessageID            string          `json:"message_id,omitempty"`
	Error                string          `json:"error,omitempty"`
	Attempt              int             `json:"attempt"`
	ReadReceiptRequested bool            `json:"read_receipt_requested"`
	AttemptedAt          time.Time       `json:"attempted_at"`
	OpenedAt             *time.Time      `json:"opened_at,omitempty"`
	ReadReceiptAt        *time.Time      `json:"read_receipt_at,omitempty"`
}

// DeliveryStats aggregates the delivery log of one period.
type DeliveryStats struct {
	Total        int `json:"total"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Opened       int `json:"opened"`
	ReadReceipts int `json:"read_receipts"`
}
