package sqlite

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MarcinPiech/DHLAI/core/model"
)

var deliveryColumns = []string{
	"id", "draft_id", "period_id", "recipient", "subject", "outcome", "message_id", "error",
	"attempt", "read_receipt_requested", "attempted_at", "opened_at", "read_receipt_at",
}

var delivered = []string{string(model.OutcomeSent), string(model.OutcomeOpened)}

func scanDelivery(row interface{ Scan(...any) error }) (*model.DeliveryLogEntry, error) {
	var (
		e                 model.DeliveryLogEntry
		outcome, at       string
		receipt           int
		draftID           sql.NullInt64
		opened, receiptAt sql.NullString
	)
	err := row.Scan(&e.ID, &draftID, &e.PeriodID, &e.Recipient, &e.Subject, &outcome, &e.MessageID, &e.Error,
		&e.Attempt, &receipt, &at, &opened, &receiptAt)
	if err != nil {
		return nil, notFound(err)
	}
	e.DraftID = draftID.Int64
	e.Outcome = model.DeliveryOutcome(outcome)
	e.ReadReceiptRequested = receipt != 0
	e.AttemptedAt = parseTime(at)
	e.OpenedAt = timePtr(opened)
	e.ReadReceiptAt = timePtr(receiptAt)
	return &e, nil
}

func (s *Store) InsertDeliveryLog(ctx context.Context, e *model.DeliveryLogEntry) error {
	if e.AttemptedAt.IsZero() {
		e.AttemptedAt = time.Now()
	}
	id, err := insert(ctx, s.db, sq.Insert("delivery_logs").Columns(deliveryColumns[1:]...).Values(
		e.DraftID, e.PeriodID, e.Recipient, e.Subject, string(e.Outcome), e.MessageID, e.Error,
		e.Attempt, boolInt(e.ReadReceiptRequested), fmtTime(e.AttemptedAt), nullTime(e.OpenedAt), nullTime(e.ReadReceiptAt),
	))
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (s *Store) DeliveryLog(ctx context.Context, id int64) (*model.DeliveryLogEntry, error) {
	row, err := queryRow(ctx, s.db, sq.Select(deliveryColumns...).From("delivery_logs").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanDelivery(row)
}

// LatestSentLog returns the most recent successful attempt for a draft.
func (s *Store) LatestSentLog(ctx context.Context, draftID int64) (*model.DeliveryLogEntry, error) {
	row, err := queryRow(ctx, s.db, sq.Select(deliveryColumns...).From("delivery_logs").
		Where(sq.Eq{"draft_id": draftID, "outcome": delivered}).
		OrderBy("id DESC").Limit(1))
	if err != nil {
		return nil, err
	}
	return scanDelivery(row)
}

// MarkOpened sets opened_at once. It reports false when the entry was
// already opened and ErrNotFound when it does not exist.
func (s *Store) MarkOpened(ctx context.Context, logID int64, at time.Time) (bool, error) {
	res, err := exec(ctx, s.db, sq.Update("delivery_logs").
		Set("opened_at", fmtTime(at)).
		Set("outcome", string(model.OutcomeOpened)).
		Where(sq.Eq{"id": logID, "opened_at": nil}))
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := s.DeliveryLog(ctx, logID); err != nil {
		return false, err
	}
	return false, nil
}

// MarkReadReceipt records a returned read receipt once.
func (s *Store) MarkReadReceipt(ctx context.Context, logID int64, at time.Time) (bool, error) {
	res, err := exec(ctx, s.db, sq.Update("delivery_logs").
		Set("read_receipt_at", fmtTime(at)).
		Where(sq.Eq{"id": logID, "read_receipt_at": nil}))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// DeliveryLogs lists the log of a period, newest first. A zero periodID
// lists every period; limit <= 0 means no limit.
func (s *Store) DeliveryLogs(ctx context.Context, periodID int64, limit int) ([]model.DeliveryLogEntry, error) {
	b := sq.Select(deliveryColumns...).From("delivery_logs").OrderBy("id DESC")
	if periodID != 0 {
		b = b.Where(sq.Eq{"period_id": periodID})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.DeliveryLogEntry{}
	for rows.Next() {
		e, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// DeliveryStats counts the attempts of a period. Opened deliveries count as
// sent too.
func (s *Store) DeliveryStats(ctx context.Context, periodID int64) (model.DeliveryStats, error) {
	var st model.DeliveryStats
	row, err := queryRow(ctx, s.db, sq.Select(
		"COUNT(*)",
		"COALESCE(SUM(CASE WHEN outcome IN ('sent','opened') THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN opened_at IS NOT NULL THEN 1 ELSE 0 END), 0)",
		"COALESCE(SUM(CASE WHEN read_receipt_at IS NOT NULL THEN 1 ELSE 0 END), 0)",
	).From("delivery_logs").Where(sq.Eq{"period_id": periodID}))
	if err != nil {
		return st, err
	}
	err = row.Scan(&st.Total, &st.Sent, &st.Failed, &st.Opened, &st.ReadReceipts)
	return st, err
}
