package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MarcinPiech/DHLAI/core/ingest"
	"github.com/MarcinPiech/DHLAI/core/model"
)

var periodColumns = []string{"id", "label", "year", "status", "source_path", "sent_at", "created_at", "updated_at"}

func scanPeriod(row interface{ Scan(...any) error }) (*model.Period, error) {
	var (
		p                  model.Period
		status             string
		sentAt             sql.NullString
		created, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Label, &p.Year, &status, &p.SourcePath, &sentAt, &created, &updatedAt); err != nil {
		return nil, notFound(err)
	}
	p.Status = model.PeriodStatus(status)
	p.SentAt = timePtr(sentAt)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// FirstOrCreatePeriod returns the period for label and year, creating it
// in draft status on first use.
func (s *Store) FirstOrCreatePeriod(ctx context.Context, label string, year int) (*model.Period, error) {
	row, err := queryRow(ctx, s.db, sq.Select(periodColumns...).From("periods").
		Where(sq.Eq{"label": label, "year": year}))
	if err != nil {
		return nil, err
	}
	p, err := scanPeriod(row)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}
	now := fmtTime(time.Now())
	id, err := insert(ctx, s.db, sq.Insert("periods").
		Columns("label", "year", "status", "created_at", "updated_at").
		Values(label, year, string(model.PeriodDraft), now, now))
	if err != nil {
		return nil, fmt.Errorf("create period %s/%d: %w", label, year, err)
	}
	return s.Period(ctx, id)
}

func (s *Store) Period(ctx context.Context, id int64) (*model.Period, error) {
	row, err := queryRow(ctx, s.db, sq.Select(periodColumns...).From("periods").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanPeriod(row)
}

// ListPeriods returns every period, newest first.
func (s *Store) ListPeriods(ctx context.Context) ([]model.Period, error) {
	rows, err := query(ctx, s.db, sq.Select(periodColumns...).From("periods").OrderBy("year DESC", "id DESC"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePeriod(ctx context.Context, p *model.Period) error {
	return updatePeriod(ctx, s.db, p)
}

func updatePeriod(ctx context.Context, q querier, p *model.Period) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	res, err := exec(ctx, q, sq.Update("periods").
		Set("status", string(p.Status)).
		Set("source_path", p.SourcePath).
		Set("sent_at", nullTime(p.SentAt)).
		Set("updated_at", fmtTime(p.UpdatedAt)).
		Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePeriod removes a period together with its versions, records, bags,
// drafts and delivery log.
func (s *Store) DeletePeriod(ctx context.Context, id int64) error {
	res, err := exec(ctx, s.db, sq.Delete("periods").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var versionColumns = []string{"id", "period_id", "number", "source_path", "content_hash", "record_count", "created_at"}

func scanVersion(row interface{ Scan(...any) error }) (*model.IngestVersion, error) {
	var (
		v       model.IngestVersion
		created string
	)
	if err := row.Scan(&v.ID, &v.PeriodID, &v.Number, &v.SourcePath, &v.ContentHash, &v.RecordCount, &created); err != nil {
		return nil, notFound(err)
	}
	v.CreatedAt = parseTime(created)
	return &v, nil
}

func (s *Store) LatestVersion(ctx context.Context, periodID int64) (*model.IngestVersion, error) {
	row, err := queryRow(ctx, s.db, sq.Select(versionColumns...).From("ingest_versions").
		Where(sq.Eq{"period_id": periodID}).OrderBy("number DESC").Limit(1))
	if err != nil {
		return nil, err
	}
	return scanVersion(row)
}

func (s *Store) Version(ctx context.Context, id int64) (*model.IngestVersion, error) {
	row, err := queryRow(ctx, s.db, sq.Select(versionColumns...).From("ingest_versions").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanVersion(row)
}

// Versions lists the versions of a period in ascending order.
func (s *Store) Versions(ctx context.Context, periodID int64) ([]model.IngestVersion, error) {
	rows, err := query(ctx, s.db, sq.Select(versionColumns...).From("ingest_versions").
		Where(sq.Eq{"period_id": periodID}).OrderBy("number"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.IngestVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

var locationColumns = []string{
	"id", "period_id", "version_id", "row_index", "primary_code", "street", "city", "postal",
	"coordinates", "substrate", "electric", "service", "assembly1", "assembly2", "assembly3",
	"auto_company", "auto_data", "jumbo_company", "jumbo_data", "protocol_path", "photos",
}

func scanLocation(row interface{ Scan(...any) error }) (model.LocationRecord, error) {
	var (
		r                       model.LocationRecord
		autoData, jumbo, photos string
	)
	err := row.Scan(&r.ID, &r.PeriodID, &r.VersionID, &r.RowIndex, &r.PrimaryCode, &r.Street, &r.City, &r.Postal,
		&r.Coordinates, &r.Substrate, &r.Electric, &r.Service, &r.Assembly1, &r.Assembly2, &r.Assembly3,
		&r.AutoCompany, &autoData, &r.JumboCompany, &jumbo, &r.ProtocolPath, &photos)
	if err != nil {
		return r, err
	}
	r.AutoData = fromJSON[model.TransportData](autoData)
	r.JumboData = fromJSON[model.TransportData](jumbo)
	r.Photos = fromJSON[[]string](photos)
	return r, nil
}

// LocationsByVersion returns the records of a version in row order.
func (s *Store) LocationsByVersion(ctx context.Context, versionID int64) ([]model.LocationRecord, error) {
	rows, err := query(ctx, s.db, sq.Select(locationColumns...).From("locations").
		Where(sq.Eq{"version_id": versionID}).OrderBy("row_index"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.LocationRecord{}
	for rows.Next() {
		r, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestLocations returns the records of the period's latest version, or
// none when the period has no version yet.
func (s *Store) LatestLocations(ctx context.Context, periodID int64) ([]model.LocationRecord, error) {
	v, err := s.LatestVersion(ctx, periodID)
	if errors.Is(err, ErrNotFound) {
		return []model.LocationRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.LocationsByVersion(ctx, v.ID)
}

// BagsByPeriod returns the bag pickups of a period in row order.
func (s *Store) BagsByPeriod(ctx context.Context, periodID int64) ([]model.BagRecord, error) {
	rows, err := query(ctx, s.db, sq.Select("id", "period_id", "row_index", "load_date", "handling_company", "details").
		From("bags").Where(sq.Eq{"period_id": periodID}).OrderBy("row_index"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.BagRecord
	for rows.Next() {
		var (
			b             model.BagRecord
			date, details string
		)
		if err := rows.Scan(&b.ID, &b.PeriodID, &b.RowIndex, &date, &b.HandlingCompany, &details); err != nil {
			return nil, err
		}
		b.LoadDate = parseTime(date)
		b.Details = fromJSON[map[string]string](details)
		out = append(out, b)
	}
	return out, rows.Err()
}

// WithTx runs fn inside one transaction and rolls back when it fails.
func (s *Store) WithTx(ctx context.Context, fn func(ingest.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&ingestTx{tx: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback: %v (cause: %w)", rerr, err)
		}
		return err
	}
	return tx.Commit()
}

type ingestTx struct {
	tx *sql.Tx
}

func (t *ingestTx) CountVersions(ctx context.Context, periodID int64) (int, error) {
	row, err := queryRow(ctx, t.tx, sq.Select("COUNT(*)").From("ingest_versions").Where(sq.Eq{"period_id": periodID}))
	if err != nil {
		return 0, err
	}
	var n int
	return n, row.Scan(&n)
}

func (t *ingestTx) InsertVersion(ctx context.Context, v *model.IngestVersion) error {
	id, err := insert(ctx, t.tx, sq.Insert("ingest_versions").
		Columns("period_id", "number", "source_path", "content_hash", "record_count", "created_at").
		Values(v.PeriodID, v.Number, v.SourcePath, v.ContentHash, v.RecordCount, fmtTime(v.CreatedAt)))
	if isUnique(err) {
		return fmt.Errorf("%w: period %d version %d", ingest.ErrVersionConflict, v.PeriodID, v.Number)
	}
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

func (t *ingestTx) SetRecordCount(ctx context.Context, versionID int64, n int) error {
	_, err := exec(ctx, t.tx, sq.Update("ingest_versions").Set("record_count", n).Where(sq.Eq{"id": versionID}))
	return err
}

func (t *ingestTx) InsertLocation(ctx context.Context, r *model.LocationRecord) error {
	id, err := insert(ctx, t.tx, sq.Insert("locations").Columns(locationColumns[1:]...).Values(
		r.PeriodID, r.VersionID, r.RowIndex, r.PrimaryCode, r.Street, r.City, r.Postal,
		r.Coordinates, r.Substrate, r.Electric, r.Service, r.Assembly1, r.Assembly2, r.Assembly3,
		r.AutoCompany, toJSON(r.AutoData), r.JumboCompany, toJSON(r.JumboData), r.ProtocolPath, toJSON(r.Photos),
	))
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (t *ingestTx) DeleteBags(ctx context.Context, periodID int64) error {
	_, err := exec(ctx, t.tx, sq.Delete("bags").Where(sq.Eq{"period_id": periodID}))
	return err
}

func (t *ingestTx) InsertBag(ctx context.Context, b *model.BagRecord) error {
	id, err := insert(ctx, t.tx, sq.Insert("bags").
		Columns("period_id", "row_index", "load_date", "handling_company", "details").
		Values(b.PeriodID, b.RowIndex, fmtTime(b.LoadDate), b.HandlingCompany, toJSON(b.Details)))
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (t *ingestTx) UpdatePeriod(ctx context.Context, p *model.Period) error {
	return updatePeriod(ctx, t.tx, p)
}
