// Package app wires the pipeline components from one configuration and
// exposes the operations used by the CLI and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MarcinPiech/DHLAI/api/delivery"
	"github.com/MarcinPiech/DHLAI/config"
	"github.com/MarcinPiech/DHLAI/core/contacts"
	"github.com/MarcinPiech/DHLAI/core/dispatch"
	"github.com/MarcinPiech/DHLAI/core/dispatch/journal"
	"github.com/MarcinPiech/DHLAI/core/drafts"
	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/factory"
	"github.com/MarcinPiech/DHLAI/core/ingest"
	coremetrics "github.com/MarcinPiech/DHLAI/core/metrics"
	"github.com/MarcinPiech/DHLAI/core/model"
	coremon "github.com/MarcinPiech/DHLAI/core/monitoring"
	"github.com/MarcinPiech/DHLAI/core/validation"
	"github.com/MarcinPiech/DHLAI/infra/logger"
	_ "github.com/MarcinPiech/DHLAI/infra/mail"
	"github.com/MarcinPiech/DHLAI/infra/metrics"
	"github.com/MarcinPiech/DHLAI/infra/monitoring"
	"github.com/MarcinPiech/DHLAI/infra/ratelimit"
	"github.com/MarcinPiech/DHLAI/infra/store/sqlite"
	"github.com/MarcinPiech/DHLAI/infra/templates"
	"github.com/MarcinPiech/DHLAI/infra/xlsx"
	"github.com/MarcinPiech/DHLAI/internal/eventbus"
)

// ErrValidationFailed is returned when blocking validation errors prevent
// an operation. The accompanying report lists them.
var ErrValidationFailed = errors.New("validation failed")

// Service orchestrates the pipeline.
type Service struct {
	cfg       config.Config
	store     *sqlite.Store
	bus       *eventbus.Bus[events.Event]
	ingest    *ingest.Service
	validator *validation.Engine
	generator *drafts.Generator
	engine    *dispatch.Engine
	importer  *contacts.Importer
	journal   journal.Store
	log       logger.Logger

	stop    context.CancelFunc
	workers []<-chan struct{}
	closers []func() error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	s := &Service{cfg: *cfg, store: store, log: log, bus: eventbus.New[events.Event]()}
	s.closers = append(s.closers, store.Close)
	if err := s.build(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build() error {
	cfg := s.cfg
	routes, err := cfg.Routing.Table()
	if err != nil {
		return fmt.Errorf("routing: %w", err)
	}

	s.ingest, err = ingest.NewService(s.store, xlsx.Open, ingest.Config{
		PlanSheet: cfg.Ingest.PlanSheet,
		Layout:    ingest.DefaultLayout(),
	}, logger.New("ingest"))
	if err != nil {
		return err
	}
	s.ingest.SetEvidenceLocator(ingest.DirEvidence{Root: cfg.Ingest.EvidenceDir})
	s.ingest.SetPublisher(s.bus)

	s.validator = validation.NewEngine(s.store, s.store, s.store, routes, logger.New("validation"))
	s.importer = contacts.NewImporter(s.store, logger.New("contacts"))

	renderer, err := templates.NewRenderer(cfg.Templates.Dir)
	if err != nil {
		return err
	}
	if missing := renderer.Missing(); len(missing) > 0 {
		return fmt.Errorf("templates: %w in %s: %s", drafts.ErrTemplateNotFound, cfg.Templates.Dir, strings.Join(missing, ", "))
	}
	s.generator = drafts.NewGenerator(s.store, s.store, routes, renderer, templates.Text{}, s.store, drafts.Config{
		DefaultCC:        cfg.Mail.DefaultCC,
		BagFallbackEmail: cfg.Routing.BagFallbackEmail,
	}, logger.New("drafts"))
	s.generator.SetPublisher(s.bus)

	relay, err := dispatch.NewRelay(cfg.Mail.Relay)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	limiter, err := s.limiter()
	if err != nil {
		return err
	}
	s.engine, err = dispatch.NewEngine(s.store, relay, limiter, cfg.Mail.Dispatch(), logger.New("dispatch"))
	if err != nil {
		return err
	}
	s.engine.SetPublisher(s.bus)

	return s.startSubscribers()
}

func (s *Service) limiter() (dispatch.RateLimiter, error) {
	rl := s.cfg.Mail.RateLimiter
	if rl.Backend != "redis" {
		return dispatch.NewFixedWindowLimiter(s.cfg.Mail.Limits, nil, nil), nil
	}
	opts, err := redis.ParseURL(rl.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	rdb := redis.NewClient(opts)
	s.closers = append(s.closers, rdb.Close)
	return ratelimit.NewSharedLimiter(rdb, rl.KeyPrefix, s.cfg.Mail.Limits), nil
}

// startSubscribers attaches the delivery journal and the metrics collector
// to the event bus.
func (s *Service) startSubscribers() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	if j := s.cfg.Logging.Journal; j.Path != "" {
		store, err := journal.NewRotatingStore(j.Path, j.MaxSizeMB, j.MaxBackups, j.MaxAgeDays)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		s.journal = store
		s.closers = append(s.closers, store.Close)
		sub := s.bus.Subscribe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			journal.Follow(ctx, sub, store, logger.New("journal"))
		}()
		s.workers = append(s.workers, done)
	}

	sinks := s.cfg.Metrics.Sinks
	if s.cfg.Metrics.PrometheusEnabled && !slices.ContainsFunc(sinks, func(m factory.ModuleConfig) bool { return m.Type == "prometheus" }) {
		sinks = append(slices.Clone(sinks), factory.ModuleConfig{Type: "prometheus"})
	}
	sink, err := coremetrics.NewMetricsSink(sinks)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if _, nop := sink.(coremetrics.NopSink); !nop {
		s.workers = append(s.workers, metrics.StartEventCollector(ctx, s.bus, sink, logger.New("metrics")))
	}
	return nil
}

// Close lets the subscribers drain the bus, then releases every resource
// in reverse order of acquisition.
func (s *Service) Close() error {
	s.bus.Close()
	for _, w := range s.workers {
		<-w
	}
	if s.stop != nil {
		s.stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}

// Run serves the delivery HTTP API, and /metrics when enabled, until ctx
// is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	var j journal.Store = emptyJournal{}
	if s.journal != nil {
		j = s.journal
	}
	mux := delivery.NewMux(s.engine, s.engine, s.store, j, s.store, s.cfg.HTTP.Token, logger.New("http"))
	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type emptyJournal struct{}

func (emptyJournal) Append(context.Context, journal.Record) error { return nil }
func (emptyJournal) Query(context.Context, journal.Query) ([]journal.Record, error) {
	return nil, nil
}
func (emptyJournal) Close() error { return nil }

// Store exposes the persistence layer to the HTTP handlers.
func (s *Service) Store() *sqlite.Store { return s.store }

// Engine exposes the dispatch engine to the HTTP handlers.
func (s *Service) Engine() *dispatch.Engine { return s.engine }

// Journal returns the delivery journal, or nil when disabled.
func (s *Service) Journal() journal.Store { return s.journal }

// IngestPlan stores a new version of the weekly plan for label/year.
func (s *Service) IngestPlan(ctx context.Context, label string, year int, path string) (*ingest.Result, error) {
	if err := s.checkUpload(path); err != nil {
		return nil, err
	}
	res, err := s.ingest.IngestPlan(ctx, label, year, path)
	if err != nil {
		return nil, err
	}
	s.archive(path, res.Period, fmt.Sprintf("plan-v%d", res.Version.Number))
	return res, nil
}

// IngestBags replaces the bag pickups of an existing period.
func (s *Service) IngestBags(ctx context.Context, periodID int64, path string) (*ingest.BagResult, error) {
	if err := s.checkUpload(path); err != nil {
		return nil, err
	}
	res, err := s.ingest.IngestBags(ctx, periodID, path)
	if err != nil {
		return nil, err
	}
	s.archive(path, res.Period, "bags")
	return res, nil
}

func (s *Service) checkUpload(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return s.cfg.App.CheckUpload(path, info.Size())
}

// archive keeps a copy of an accepted upload. Failures are logged only.
func (s *Service) archive(src string, p model.Period, prefix string) {
	if s.cfg.Ingest.UploadsDir == "" {
		return
	}
	dir := filepath.Join(s.cfg.Ingest.UploadsDir, fmt.Sprintf("%s-%d", p.Label, p.Year))
	dst := filepath.Join(dir, fmt.Sprintf("%s-%s%s", prefix, time.Now().Format("20060102T150405"), filepath.Ext(src)))
	if err := copyFile(src, dst); err != nil {
		s.log.Warnf("archive %s: %v", src, err)
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Diff compares two stored plan versions.
func (s *Service) Diff(ctx context.Context, oldVersionID, newVersionID int64) (*ingest.VersionDiff, error) {
	return s.ingest.Diff(ctx, oldVersionID, newVersionID)
}

func (s *Service) ListPeriods(ctx context.Context) ([]model.Period, error) {
	return s.store.ListPeriods(ctx)
}

func (s *Service) Versions(ctx context.Context, periodID int64) ([]model.IngestVersion, error) {
	return s.store.Versions(ctx, periodID)
}

// DeletePeriod removes a period with its versions, records, drafts and
// delivery logs.
func (s *Service) DeletePeriod(ctx context.Context, periodID int64) error {
	return s.store.DeletePeriod(ctx, periodID)
}

// ValidatePeriod runs every business-rule check.
func (s *Service) ValidatePeriod(ctx context.Context, periodID int64) (*validation.Report, error) {
	if _, err := s.store.Period(ctx, periodID); err != nil {
		return nil, err
	}
	return s.validator.ValidatePeriod(ctx, periodID)
}

// GenerateResult is the outcome of GenerateDrafts.
type GenerateResult struct {
	Report     *validation.Report     `json:"validation"`
	ByCategory map[model.Category]int `json:"by_category,omitempty"`
	Total      int                    `json:"total"`
}

// GenerateDrafts validates the period's records and, when they pass,
// replaces its unsent drafts.
func (s *Service) GenerateDrafts(ctx context.Context, periodID int64) (*GenerateResult, error) {
	p, err := s.store.Period(ctx, periodID)
	if err != nil {
		return nil, err
	}
	rep, err := s.validator.ValidateRecords(ctx, periodID)
	if err != nil {
		return nil, err
	}
	res := &GenerateResult{Report: rep}
	if !rep.Valid {
		return res, fmt.Errorf("generate %s: %w", p, ErrValidationFailed)
	}
	out, err := s.generator.GenerateAll(ctx, *p)
	if err != nil {
		return res, err
	}
	res.ByCategory = make(map[model.Category]int, len(out))
	for c, ds := range out {
		res.ByCategory[c] = len(ds)
		res.Total += len(ds)
	}
	return res, nil
}

// Rejection names a draft that could not be approved.
type Rejection struct {
	DraftID int64    `json:"draft_id"`
	Errors  []string `json:"errors"`
}

// ApproveResult is the outcome of ApproveDrafts.
type ApproveResult struct {
	Approved []int64     `json:"approved"`
	Rejected []Rejection `json:"rejected"`
}

// ApproveDrafts moves the selected pending or failed drafts of a period to
// ready when they validate. Validation replaces any errors stored on the
// draft, so a rejected draft is approved once its problem is fixed. An
// empty ids list selects every draft of the period.
func (s *Service) ApproveDrafts(ctx context.Context, periodID int64, ids []int64) (*ApproveResult, error) {
	ds, err := s.store.DraftsByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	res := &ApproveResult{Approved: []int64{}, Rejected: []Rejection{}}
	for i := range ds {
		d := &ds[i]
		if len(ids) > 0 && !slices.Contains(ids, d.ID) {
			continue
		}
		if d.Status != model.DraftPending && d.Status != model.DraftFailed {
			continue
		}
		ok, err := s.validator.ValidateDraft(ctx, d)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Rejected = append(res.Rejected, Rejection{DraftID: d.ID, Errors: d.ValidationErrors})
			continue
		}
		d.Status = model.DraftReady
		d.UpdatedAt = time.Now()
		if err := s.store.UpdateDraft(ctx, d); err != nil {
			return res, err
		}
		res.Approved = append(res.Approved, d.ID)
	}
	return res, nil
}

// Drafts lists the drafts of a period.
func (s *Service) Drafts(ctx context.Context, periodID int64) ([]model.EmailDraft, error) {
	return s.store.DraftsByPeriod(ctx, periodID)
}

// Preview returns the stored draft.
func (s *Service) Preview(ctx context.Context, draftID int64) (*model.EmailDraft, error) {
	return s.store.Draft(ctx, draftID)
}

// SendPeriod dispatches the ready and previously failed drafts of a period.
func (s *Service) SendPeriod(ctx context.Context, periodID int64) (*dispatch.BatchResult, error) {
	return s.engine.SendPeriod(ctx, periodID)
}

// SendDraft dispatches a single draft. Sent drafts are refused.
func (s *Service) SendDraft(ctx context.Context, draftID int64) (bool, error) {
	d, err := s.store.Draft(ctx, draftID)
	if err != nil {
		return false, err
	}
	if d.IsSent() {
		return false, dispatch.ErrAlreadySent
	}
	return s.engine.SendOne(ctx, d)
}

func (s *Service) Stats(ctx context.Context, periodID int64) (model.DeliveryStats, error) {
	return s.engine.Stats(ctx, periodID)
}

// Logs lists the stored delivery log, newest first. periodID 0 lists all.
func (s *Service) Logs(ctx context.Context, periodID int64, limit int) ([]model.DeliveryLogEntry, error) {
	return s.store.DeliveryLogs(ctx, periodID, limit)
}

// ImportContacts upserts the contacts listed in the active sheet of the
// workbook at path.
func (s *Service) ImportContacts(ctx context.Context, path string) (contacts.Report, error) {
	if err := s.checkUpload(path); err != nil {
		return contacts.Report{}, err
	}
	wb, err := xlsx.Open(path)
	if err != nil {
		return contacts.Report{}, err
	}
	defer wb.Close()
	rows, err := wb.ActiveSheet()
	if err != nil {
		return contacts.Report{}, err
	}
	defer rows.Close()
	return s.importer.Import(ctx, contacts.ReadRows(rows))
}
