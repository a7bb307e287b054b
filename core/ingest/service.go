package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/logger"
	"github.com/MarcinPiech/DHLAI/core/model"
)

// Store persists periods, versions and their records.
type Store interface {
	FirstOrCreatePeriod(ctx context.Context, label string, year int) (*model.Period, error)
	Period(ctx context.Context, id int64) (*model.Period, error)
	LatestVersion(ctx context.Context, periodID int64) (*model.IngestVersion, error)
	Version(ctx context.Context, id int64) (*model.IngestVersion, error)
	LocationsByVersion(ctx context.Context, versionID int64) ([]model.LocationRecord, error)
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write side used inside one ingestion transaction.
type Tx interface {
	CountVersions(ctx context.Context, periodID int64) (int, error)
	InsertVersion(ctx context.Context, v *model.IngestVersion) error
	SetRecordCount(ctx context.Context, versionID int64, n int) error
	InsertLocation(ctx context.Context, rec *model.LocationRecord) error
	DeleteBags(ctx context.Context, periodID int64) error
	InsertBag(ctx context.Context, bag *model.BagRecord) error
	UpdatePeriod(ctx context.Context, p *model.Period) error
}

// Config holds the ingestion settings.
type Config struct {
	PlanSheet string
	Layout    Layout
}

// Result describes one persisted upload.
type Result struct {
	Period  model.Period        `json:"period"`
	Version model.IngestVersion `json:"version"`
	Records int                 `json:"records"`
	Skipped []SkippedRow        `json:"skipped,omitempty"`
	// Unchanged is set when the file is byte-identical to the previous version.
	Unchanged bool `json:"unchanged"`
}

// BagResult describes one persisted bag upload.
type BagResult struct {
	Period  model.Period `json:"period"`
	Records int          `json:"records"`
	Skipped []SkippedRow `json:"skipped,omitempty"`
}

// Service is the versioned ingest store.
type Service struct {
	store     Store
	open      WorkbookOpener
	extractor *Extractor
	sheet     string
	evidence  EvidenceLocator
	publisher events.Publisher
	log       logger.Logger
	now       func() time.Time
}

// NewService validates its collaborators and resolves the layout.
func NewService(store Store, open WorkbookOpener, cfg Config, log logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	if open == nil {
		return nil, fmt.Errorf("ingest: workbook opener is required")
	}
	if log == nil {
		return nil, fmt.Errorf("ingest: logger is required")
	}
	if cfg.PlanSheet == "" {
		return nil, fmt.Errorf("ingest: plan sheet name is required")
	}
	ext, err := NewExtractor(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("ingest: layout: %w", err)
	}
	return &Service{
		store:     store,
		open:      open,
		extractor: ext,
		sheet:     cfg.PlanSheet,
		evidence:  NoEvidence{},
		publisher: events.NopPublisher{},
		log:       log,
		now:       time.Now,
	}, nil
}

// SetEvidenceLocator configures where protocol and photo files are found.
func (s *Service) SetEvidenceLocator(l EvidenceLocator) {
	if l != nil {
		s.evidence = l
	}
}

// SetPublisher configures the event publisher.
func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.publisher = p
	}
}

// IngestPlan creates the period for label/year if needed and stores path as
// its next version.
func (s *Service) IngestPlan(ctx context.Context, label string, year int, path string) (*Result, error) {
	period, err := s.store.FirstOrCreatePeriod(ctx, label, year)
	if err != nil {
		return nil, &IngestError{Op: "period", Path: path, Err: err}
	}
	return s.CreateVersion(ctx, period, path)
}

// CreateVersion hashes the file, numbers the version as the count of
// existing versions plus one, and persists the version with all of its rows
// in a single transaction.
//
// The count is read inside the transaction but not reserved, so two
// concurrent uploads for one period can compute the same number. The store
// enforces uniqueness of (period, number) and the losing upload fails with
// ErrVersionConflict; it is not retried automatically.
func (s *Service) CreateVersion(ctx context.Context, period *model.Period, path string) (*Result, error) {
	hash, err := FileHash(path)
	if err != nil {
		return nil, &IngestError{Op: "hash", Path: path, Err: err}
	}
	wb, err := s.open(path)
	if err != nil {
		return nil, &IngestError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = wb.Close() }()
	rows, err := wb.Sheet(s.sheet)
	if err != nil {
		return nil, &IngestError{Op: "sheet", Path: path, Err: err}
	}
	defer func() { _ = rows.Close() }()

	prev, err := s.store.LatestVersion(ctx, period.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, &IngestError{Op: "latest version", Path: path, Err: err}
	}

	res := &Result{}
	onSkip := func(r SkippedRow) { res.Skipped = append(res.Skipped, r) }
	updated := *period
	err = s.store.WithTx(ctx, func(tx Tx) error {
		n, err := tx.CountVersions(ctx, period.ID)
		if err != nil {
			return err
		}
		v := model.IngestVersion{
			PeriodID:    period.ID,
			Number:      n + 1,
			SourcePath:  path,
			ContentHash: hash,
			CreatedAt:   s.now(),
		}
		if err := tx.InsertVersion(ctx, &v); err != nil {
			return err
		}
		for rec, err := range s.extractor.Locations(rows, onSkip) {
			if err != nil {
				return fmt.Errorf("read rows: %w", err)
			}
			rec.PeriodID = period.ID
			rec.VersionID = v.ID
			rec.ProtocolPath, rec.Photos = s.evidence.Locate(updated, rec)
			if err := tx.InsertLocation(ctx, &rec); err != nil {
				return fmt.Errorf("row %d: %w", rec.RowIndex, err)
			}
			v.RecordCount++
		}
		if err := tx.SetRecordCount(ctx, v.ID, v.RecordCount); err != nil {
			return err
		}
		updated.SourcePath = path
		if n > 0 && updated.Status == model.PeriodDraft {
			updated.Status = model.PeriodUpdated
		}
		updated.UpdatedAt = s.now()
		if err := tx.UpdatePeriod(ctx, &updated); err != nil {
			return err
		}
		res.Version = v
		return nil
	})
	if err != nil {
		return nil, &IngestError{Op: "persist", Path: path, Err: err}
	}
	*period = updated
	res.Period = updated
	res.Records = res.Version.RecordCount
	res.Unchanged = prev != nil && prev.ContentHash == hash

	s.log.Infof("period %s: stored version %d with %d records (%d skipped)", updated, res.Version.Number, res.Records, len(res.Skipped))
	s.publisher.Publish(events.IngestCompleted{
		PeriodID:  updated.ID,
		VersionID: res.Version.ID,
		Version:   res.Version.Number,
		Records:   res.Records,
		Skipped:   len(res.Skipped),
		Unchanged: res.Unchanged,
		At:        s.now(),
	})
	return res, nil
}

// IngestBags replaces the bag pickups of an existing period with the rows of
// the file's active sheet that fall in the period's week.
func (s *Service) IngestBags(ctx context.Context, periodID int64, path string) (*BagResult, error) {
	period, err := s.store.Period(ctx, periodID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			err = fmt.Errorf("%w: %d", ErrPeriodNotFound, periodID)
		}
		return nil, &IngestError{Op: "period", Path: path, Err: err}
	}
	week, err := period.WeekNumber()
	if err != nil {
		return nil, &IngestError{Op: "period", Path: path, Err: err}
	}
	wb, err := s.open(path)
	if err != nil {
		return nil, &IngestError{Op: "open", Path: path, Err: err}
	}
	defer func() { _ = wb.Close() }()
	rows, err := wb.ActiveSheet()
	if err != nil {
		return nil, &IngestError{Op: "sheet", Path: path, Err: err}
	}
	defer func() { _ = rows.Close() }()

	res := &BagResult{Period: *period}
	onSkip := func(r SkippedRow) { res.Skipped = append(res.Skipped, r) }
	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.DeleteBags(ctx, period.ID); err != nil {
			return err
		}
		for bag, err := range s.extractor.Bags(rows, period.Year, week, onSkip) {
			if err != nil {
				return fmt.Errorf("read rows: %w", err)
			}
			bag.PeriodID = period.ID
			if err := tx.InsertBag(ctx, &bag); err != nil {
				return fmt.Errorf("row %d: %w", bag.RowIndex, err)
			}
			res.Records++
		}
		return nil
	})
	if err != nil {
		return nil, &IngestError{Op: "persist", Path: path, Err: err}
	}
	s.log.Infof("period %s: stored %d bag pickups", period, res.Records)
	s.publisher.Publish(events.BagsIngested{PeriodID: period.ID, Records: res.Records, At: s.now()})
	return res, nil
}

// Diff compares two stored versions on the tracked fields.
func (s *Service) Diff(ctx context.Context, oldVersionID, newVersionID int64) (*VersionDiff, error) {
	for _, id := range []int64{oldVersionID, newVersionID} {
		if _, err := s.store.Version(ctx, id); err != nil {
			return nil, fmt.Errorf("version %d: %w", id, err)
		}
	}
	oldRecs, err := s.store.LocationsByVersion(ctx, oldVersionID)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", oldVersionID, err)
	}
	newRecs, err := s.store.LocationsByVersion(ctx, newVersionID)
	if err != nil {
		return nil, fmt.Errorf("load version %d: %w", newVersionID, err)
	}
	d := DiffRecords(oldRecs, newRecs)
	return &d, nil
}
