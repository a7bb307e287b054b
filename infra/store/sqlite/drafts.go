package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MarcinPiech/DHLAI/core/model"
)

var draftColumns = []string{
	"id", "period_id", "recipient_email", "recipient_name", "cc", "subject", "category", "priority",
	"body_html", "body_plain", "attachments", "status", "validation_errors", "sent_at", "created_at", "updated_at",
}

func scanDraft(row interface{ Scan(...any) error }) (*model.EmailDraft, error) {
	var (
		d                                    model.EmailDraft
		cc, attachments, problems            string
		category, status, created, updatedAt string
		sentAt                               sql.NullString
	)
	err := row.Scan(&d.ID, &d.PeriodID, &d.RecipientEmail, &d.RecipientName, &cc, &d.Subject, &category, &d.Priority,
		&d.BodyHTML, &d.BodyPlain, &attachments, &status, &problems, &sentAt, &created, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	d.CC = fromJSON[[]string](cc)
	d.Attachments = fromJSON[[]model.Attachment](attachments)
	d.ValidationErrors = fromJSON[[]string](problems)
	d.Category = model.Category(category)
	d.Status = model.DraftStatus(status)
	d.SentAt = timePtr(sentAt)
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

func (s *Store) drafts(ctx context.Context, where sq.Sqlizer) ([]model.EmailDraft, error) {
	rows, err := query(ctx, s.db, sq.Select(draftColumns...).From("drafts").Where(where).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.EmailDraft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) Draft(ctx context.Context, id int64) (*model.EmailDraft, error) {
	row, err := queryRow(ctx, s.db, sq.Select(draftColumns...).From("drafts").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanDraft(row)
}

// DraftsByPeriod returns every draft of a period in insertion order.
func (s *Store) DraftsByPeriod(ctx context.Context, periodID int64) ([]model.EmailDraft, error) {
	return s.drafts(ctx, sq.Eq{"period_id": periodID})
}

// SendableDrafts returns the ready and failed drafts of a period in
// insertion order.
func (s *Store) SendableDrafts(ctx context.Context, periodID int64) ([]model.EmailDraft, error) {
	return s.drafts(ctx, sq.Eq{
		"period_id": periodID,
		"status":    []string{string(model.DraftReady), string(model.DraftFailed)},
	})
}

// ReplaceDrafts deletes the period's unsent drafts and inserts ds in one
// transaction. The inserted ids are written back into ds.
func (s *Store) ReplaceDrafts(ctx context.Context, periodID int64, ds []model.EmailDraft) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := exec(ctx, tx, sq.Delete("drafts").Where(sq.And{
		sq.Eq{"period_id": periodID},
		sq.NotEq{"status": string(model.DraftSent)},
	})); err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	for i := range ds {
		ds[i].PeriodID = periodID
		if err := insertDraft(ctx, tx, &ds[i]); err != nil {
			return fmt.Errorf("insert draft for %s: %w", ds[i].RecipientEmail, err)
		}
	}
	return tx.Commit()
}

func insertDraft(ctx context.Context, q querier, d *model.EmailDraft) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	id, err := insert(ctx, q, sq.Insert("drafts").Columns(draftColumns[1:]...).Values(
		d.PeriodID, d.RecipientEmail, d.RecipientName, toJSON(nonNil(d.CC)), d.Subject, string(d.Category), d.Priority,
		d.BodyHTML, d.BodyPlain, toJSON(nonNil(d.Attachments)), string(d.Status), toJSON(nonNil(d.ValidationErrors)),
		nullTime(d.SentAt), fmtTime(d.CreatedAt), fmtTime(d.UpdatedAt),
	))
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// UpdateDraft writes the mutable fields of d. A draft already stored as
// sent is never modified.
func (s *Store) UpdateDraft(ctx context.Context, d *model.EmailDraft) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	res, err := exec(ctx, s.db, sq.Update("drafts").
		Set("recipient_email", d.RecipientEmail).
		Set("recipient_name", d.RecipientName).
		Set("cc", toJSON(nonNil(d.CC))).
		Set("subject", d.Subject).
		Set("body_html", d.BodyHTML).
		Set("body_plain", d.BodyPlain).
		Set("attachments", toJSON(nonNil(d.Attachments))).
		Set("status", string(d.Status)).
		Set("validation_errors", toJSON(nonNil(d.ValidationErrors))).
		Set("sent_at", nullTime(d.SentAt)).
		Set("updated_at", fmtTime(d.UpdatedAt)).
		Where(sq.Eq{"id": d.ID}).
		Where(sq.NotEq{"status": string(model.DraftSent)}))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Draft(ctx, d.ID); err != nil {
			return err
		}
		return fmt.Errorf("draft %d is already sent", d.ID)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
