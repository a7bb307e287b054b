// Package export writes the delivery log in machine-readable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/MarcinPiech/DHLAI/core/model"
)

// WriteJSON writes the entries as one JSON array.
func WriteJSON(w io.Writer, entries []model.DeliveryLogEntry) error {
	if entries == nil {
		entries = []model.DeliveryLogEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

var csvHeader = []string{
	"id", "period_id", "draft_id", "recipient", "subject", "outcome",
	"attempt", "message_id", "error", "attempted_at", "opened_at", "read_receipt_at",
}

// WriteCSV writes the entries with a header row. Timestamps are RFC 3339
// in UTC; unset ones are empty.
func WriteCSV(w io.Writer, entries []model.DeliveryLogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.PeriodID, 10),
			strconv.FormatInt(e.DraftID, 10),
			e.Recipient,
			e.Subject,
			string(e.Outcome),
			strconv.Itoa(e.Attempt),
			e.MessageID,
			e.Error,
			stamp(&e.AttemptedAt),
			stamp(e.OpenedAt),
			stamp(e.ReadReceiptAt),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format, "json" or "csv".
func Write(w io.Writer, format string, entries []model.DeliveryLogEntry) error {
	switch format {
	case "", "json":
		return WriteJSON(w, entries)
	case "csv":
		return WriteCSV(w, entries)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
