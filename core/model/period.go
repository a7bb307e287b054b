package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodStatus is the lifecycle state of a weekly period.
type PeriodStatus string

const (
	PeriodDraft   PeriodStatus = "draft"
	PeriodUpdated PeriodStatus = "updated"
	PeriodSent    PeriodStatus = "sent"
)

// ErrInvalidLabel is returned when a period label does not carry a week number.
var ErrInvalidLabel = errors.New("invalid period label")

// Period is one weekly operating cycle identified by label and year.
type Period struct {
	ID         int64        `json:"id"`
	Label      string       `json:"label"`
	Year       int          `json:"year"`
	Status     PeriodStatus `json:"status"`
	SourcePath string       `json:"source_path,omitempty"`
	SentAt     *time.Time   `json:"sent_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// IsSent reports whether the whole period was dispatched.
func (p Period) IsSent() bool { return p.Status == PeriodSent }

// WeekNumber extracts the ISO week from labels such as "T35".
func (p Period) WeekNumber() (int, error) {
	s := strings.TrimSpace(p.Label)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "T"), "t")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 53 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, p.Label)
	}
	return n, nil
}

func (p Period) String() string { return fmt.Sprintf("%s/%d", p.Label, p.Year) }

// IngestVersion is the immutable metadata of one uploaded plan file.
type IngestVersion struct {
	ID          int64     `json:"id"`
	PeriodID    int64     `json:"period_id"`
	Number      int       `json:"number"`
	SourcePath  string    `json:"source_path"`
	ContentHash string    `json:"content_hash"`
	RecordCount int       `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}
