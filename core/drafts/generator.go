// Package drafts turns a period's records into per-recipient email drafts.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MarcinPiech/DHLAI/core/contacts"
	"github.com/MarcinPiech/DHLAI/core/events"
	"github.com/MarcinPiech/DHLAI/core/grouping"
	"github.com/MarcinPiech/DHLAI/core/logger"
	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/core/monitoring"
	"github.com/MarcinPiech/DHLAI/core/routing"
)

// ErrTemplateNotFound is wrapped by renderers when a template is missing.
var ErrTemplateNotFound = errors.New("template not found")

// MissingPhotosError is attached to photo-required transport drafts that
// carry no photos.
const MissingPhotosError = "missing photos"

// ConfigurationError aborts a generation run. It is never retried.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Err.Error() }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// Renderer renders a named HTML template.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// TextConverter derives the plain-text alternative from rendered HTML.
type TextConverter interface {
	PlainText(html string) (string, error)
}

// Sources provides the records drafts are built from.
type Sources interface {
	LatestLocations(ctx context.Context, periodID int64) ([]model.LocationRecord, error)
	BagsByPeriod(ctx context.Context, periodID int64) ([]model.BagRecord, error)
}

// DraftWriter replaces the unsent drafts of a period in one step.
type DraftWriter interface {
	ReplaceDrafts(ctx context.Context, periodID int64, drafts []model.EmailDraft) error
}

// Config holds the generator settings.
type Config struct {
	DefaultCC []string
	// BagFallbackEmail receives bag pickups for handling companies that
	// neither the routing table nor the directory can resolve.
	BagFallbackEmail string
}

// TemplateRow is one record as shown in a draft.
type TemplateRow struct {
	RowIndex int
	Address  string
	Cells    []string
	Photos   int
	Protocol bool
}

// TemplateBag is one bag pickup as shown in a draft.
type TemplateBag struct {
	RowIndex int
	LoadDate string
	Details  map[string]string
}

// TemplateData is passed to every category template.
type TemplateData struct {
	Period        model.Period
	Recipient     string
	Company       string
	Category      model.Category
	Headers       []string
	Rows          []TemplateRow
	Bags          []TemplateBag
	RequirePhotos bool
	Photos        int
}

// Generator builds the drafts of all six categories.
type Generator struct {
	sources   Sources
	directory contacts.Directory
	routes    routing.Table
	renderer  Renderer
	text      TextConverter
	writer    DraftWriter
	cfg       Config
	publisher events.Publisher
	log       logger.Logger
	now       func() time.Time
}

func NewGenerator(sources Sources, dir contacts.Directory, routes routing.Table, renderer Renderer, text TextConverter, writer DraftWriter, cfg Config, log logger.Logger) *Generator {
	return &Generator{
		sources:   sources,
		directory: dir,
		routes:    routes,
		renderer:  renderer,
		text:      text,
		writer:    writer,
		cfg:       cfg,
		publisher: events.NopPublisher{},
		log:       log,
		now:       time.Now,
	}
}

// SetPublisher configures the event publisher.
func (g *Generator) SetPublisher(p events.Publisher) {
	if p != nil {
		g.publisher = p
	}
}

// GenerateAll renders every draft of the period and replaces the period's
// unsent drafts with them. Recipients without a resolvable address are
// skipped silently. A missing template aborts the run before anything is
// written.
func (g *Generator) GenerateAll(ctx context.Context, period model.Period) (map[model.Category][]model.EmailDraft, error) {
	recs, err := g.sources.LatestLocations(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("drafts: load locations: %w", err)
	}
	bags, err := g.sources.BagsByPeriod(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("drafts: load bags: %w", err)
	}
	resolver := contacts.NewResolver(g.directory)

	var all []model.EmailDraft
	for _, entry := range Catalog {
		var built []model.EmailDraft
		switch {
		case entry.Category == model.CategoryBags:
			built, err = g.bagDrafts(ctx, entry, period, bags, resolver)
		case entry.Category.IsTransport():
			built, err = g.transportDrafts(entry, period, recs)
		default:
			built, err = g.crewDrafts(ctx, entry, period, recs, resolver)
		}
		if err != nil {
			var cerr *ConfigurationError
			if errors.As(err, &cerr) {
				monitoring.Capture(err, "drafts", "generate")
			}
			return nil, err
		}
		all = append(all, built...)
	}

	if err := g.writer.ReplaceDrafts(ctx, period.ID, all); err != nil {
		return nil, fmt.Errorf("drafts: save: %w", err)
	}
	out := make(map[model.Category][]model.EmailDraft)
	counts := make(map[model.Category]int)
	for _, d := range all {
		out[d.Category] = append(out[d.Category], d)
		counts[d.Category]++
	}
	g.log.Infof("period %s: generated %d drafts", period, len(all))
	g.publisher.Publish(events.DraftsGenerated{PeriodID: period.ID, ByCategory: counts, At: g.now()})
	return out, nil
}

func (g *Generator) crewDrafts(ctx context.Context, entry Entry, period model.Period, recs []model.LocationRecord, resolver *contacts.Resolver) ([]model.EmailDraft, error) {
	groups := grouping.GroupByField(recs, entry.Fields...)
	var out []model.EmailDraft
	for _, name := range groups.Names() {
		c, err := resolver.Resolve(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("drafts: resolve %q: %w", name, err)
		}
		if c == nil {
			g.log.Debugf("%s: no contact for %s", entry.Category, name)
			continue
		}
		data := g.data(entry, period, name, groups.Get(name))
		d, err := g.build(entry, period, c.Email, c.FullName, fmt.Sprintf(entry.Subject, period.Label), data)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *Generator) transportDrafts(entry Entry, period model.Period, recs []model.LocationRecord) ([]model.EmailDraft, error) {
	leg := model.FieldAutoCompany
	if entry.Category == model.CategoryJumbo {
		leg = model.FieldJumboCompany
	}
	var out []model.EmailDraft
	for _, company := range g.routes.Companies() {
		var rows []model.LocationRecord
		for i := range recs {
			if c, ok := g.routes.Lookup(recs[i].Get(leg)); ok && c.Name == company.Name {
				rows = append(rows, recs[i])
			}
		}
		if len(rows) == 0 {
			continue
		}
		data := g.data(entry, period, company.Name, rows)
		data.Company = company.Name
		data.RequirePhotos = company.RequiresPhotos
		attachments := photoAttachments(rows)
		data.Photos = len(attachments)

		d, err := g.build(entry, period, company.Email, company.Name, fmt.Sprintf(entry.Subject, period.Label, company.Name), data)
		if err != nil {
			return nil, err
		}
		d.Attachments = attachments
		if entry.Category.IsTransport() && company.RequiresPhotos && len(attachments) == 0 {
			d.AddValidationError(MissingPhotosError)
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *Generator) bagDrafts(ctx context.Context, entry Entry, period model.Period, bags []model.BagRecord, resolver *contacts.Resolver) ([]model.EmailDraft, error) {
	groups := grouping.GroupBy(bags, func(b model.BagRecord) string { return b.HandlingCompany })
	var out []model.EmailDraft
	for _, company := range groups.Names() {
		email, err := g.bagRecipient(ctx, company, resolver)
		if err != nil {
			return nil, err
		}
		if email == "" {
			g.log.Debugf("bags: no address for %s", company)
			continue
		}
		data := TemplateData{Period: period, Recipient: company, Company: company, Category: entry.Category}
		for _, b := range groups.Get(company) {
			data.Bags = append(data.Bags, TemplateBag{RowIndex: b.RowIndex, LoadDate: b.LoadDate.Format("02.01.2006"), Details: b.Details})
		}
		d, err := g.build(entry, period, email, company, fmt.Sprintf(entry.Subject, period.Label, company), data)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *Generator) bagRecipient(ctx context.Context, company string, resolver *contacts.Resolver) (string, error) {
	if c, ok := g.routes.Lookup(company); ok {
		return c.Email, nil
	}
	c, err := resolver.Resolve(ctx, company)
	if err != nil {
		return "", fmt.Errorf("drafts: resolve %q: %w", company, err)
	}
	if c != nil {
		return c.Email, nil
	}
	return g.cfg.BagFallbackEmail, nil
}

func (g *Generator) data(entry Entry, period model.Period, recipient string, recs []model.LocationRecord) TemplateData {
	data := TemplateData{Period: period, Recipient: recipient, Category: entry.Category}
	for _, c := range entry.Columns {
		data.Headers = append(data.Headers, c.Header)
	}
	for i := range recs {
		r := &recs[i]
		row := TemplateRow{RowIndex: r.RowIndex, Address: r.FullAddress(), Photos: len(r.Photos), Protocol: r.ProtocolPath != ""}
		for _, c := range entry.Columns {
			row.Cells = append(row.Cells, c.Value(r))
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

func (g *Generator) build(entry Entry, period model.Period, email, name, subject string, data TemplateData) (model.EmailDraft, error) {
	html, err := g.renderer.Render(entry.Template, data)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return model.EmailDraft{}, &ConfigurationError{Err: err}
		}
		return model.EmailDraft{}, fmt.Errorf("drafts: render %s: %w", entry.Template, err)
	}
	plain, err := g.text.PlainText(html)
	if err != nil {
		return model.EmailDraft{}, fmt.Errorf("drafts: plain text %s: %w", entry.Template, err)
	}
	now := g.now()
	return model.EmailDraft{
		PeriodID:       period.ID,
		RecipientEmail: email,
		RecipientName:  name,
		CC:             append([]string(nil), g.cfg.DefaultCC...),
		Subject:        subject,
		Category:       entry.Category,
		Priority:       entry.Priority,
		BodyHTML:       html,
		BodyPlain:      plain,
		Status:         model.DraftPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// photoAttachments collects the existing photo files of recs once each.
func photoAttachments(recs []model.LocationRecord) []model.Attachment {
	var out []model.Attachment
	seen := make(map[string]struct{})
	for _, r := range recs {
		for _, p := range r.Photos {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			info, err := os.Stat(p)
			if err != nil || info.IsDir() {
				continue
			}
			out = append(out, model.Attachment{
				Path:     p,
				Name:     filepath.Base(p),
				MimeType: mimeType(p),
				Size:     info.Size(),
			})
		}
	}
	return out
}

func mimeType(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}
