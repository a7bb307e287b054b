package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinPiech/DHLAI/core/model"
)

func sampleEntries() []model.DeliveryLogEntry {
	opened := time.Date(2025, 8, 25, 9, 30, 0, 0, time.UTC)
	return []model.DeliveryLogEntry{
		{ID: 1, PeriodID: 7, DraftID: 3, Recipient: "jan@example.com", Subject: "Plan prac T35, Serwis",
			Outcome: model.OutcomeSent, Attempt: 1, MessageID: "abc@example.com",
			AttemptedAt: time.Date(2025, 8, 25, 8, 0, 0, 0, time.UTC), OpenedAt: &opened},
		{ID: 2, PeriodID: 7, DraftID: 4, Recipient: "x@example.com", Outcome: model.OutcomeFailed,
			Attempt: 3, Error: "451 try later", AttemptedAt: time.Date(2025, 8, 25, 8, 1, 0, 0, time.UTC)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntries()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "Plan prac T35, Serwis", rows[1][4])
	assert.Equal(t, "2025-08-25T09:30:00Z", rows[1][10])
	assert.Equal(t, "failed", rows[2][5])
	assert.Equal(t, "", rows[2][10])
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", nil)
	assert.ErrorContains(t, err, "xml")
}
