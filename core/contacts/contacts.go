// Package contacts resolves recipient names to contacts and imports the
// contact directory from a spreadsheet.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/MarcinPiech/DHLAI/core/ingest"
	"github.com/MarcinPiech/DHLAI/core/logger"
	"github.com/MarcinPiech/DHLAI/core/model"
)

// DefaultCategory is assigned to imported rows without a category.
const DefaultCategory = "team"

// Directory finds the active contact whose full name contains name.
// It returns model.ErrNotFound when nothing matches.
type Directory interface {
	FindActiveByName(ctx context.Context, name string) (*model.Contact, error)
}

// Store is the persistence needed by the importer.
type Store interface {
	ContactByEmail(ctx context.Context, email string) (*model.Contact, error)
	InsertContact(ctx context.Context, c *model.Contact) error
	UpdateContact(ctx context.Context, c *model.Contact) error
}

// Resolver memoizes directory lookups for the duration of one operation.
type Resolver struct {
	dir   Directory
	mu    sync.Mutex
	cache map[string]*model.Contact
}

// NewResolver wraps dir with a per-call cache.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir, cache: make(map[string]*model.Contact)}
}

// Resolve returns the contact for name, or nil when none is active.
func (r *Resolver) Resolve(ctx context.Context, name string) (*model.Contact, error) {
	r.mu.Lock()
	c, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return c, nil
	}
	c, err := r.dir.FindActiveByName(ctx, name)
	if errors.Is(err, model.ErrNotFound) {
		c, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[name] = c
	r.mu.Unlock()
	return c, nil
}

// ValidEmail reports whether s is a bare, syntactically valid address.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, ".")
}

// Row is one directory spreadsheet row.
type Row struct {
	Row      int
	Name     string
	Phone    string
	Email    string
	Category string
	Company  string
}

// ReadRows decodes columns A..E (name, phone, email, category, company)
// after a single header row.
func ReadRows(r ingest.RowReader) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		n := 0
		for r.Next() {
			n++
			if n == 1 {
				continue
			}
			cells, err := r.Columns()
			if err != nil {
				if !yield(Row{Row: n}, fmt.Errorf("row %d: %w", n, err)) {
					return
				}
				continue
			}
			at := func(i int) string {
				if i < len(cells) {
					return strings.TrimSpace(cells[i])
				}
				return ""
			}
			row := Row{Row: n, Name: at(0), Phone: at(1), Email: at(2), Category: at(3), Company: at(4)}
			if row == (Row{Row: n}) {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := r.Error(); err != nil {
			yield(Row{}, err)
		}
	}
}

// Report summarizes an import run.
type Report struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer upserts contacts by email.
type Importer struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

func NewImporter(store Store, log logger.Logger) *Importer {
	return &Importer{store: store, log: log, now: time.Now}
}

// Import never fails on a single row: invalid rows are skipped and counted,
// store failures are recorded in the report. Only a failing row source
// aborts the run.
func (im *Importer) Import(ctx context.Context, rows iter.Seq2[Row, error]) (Report, error) {
	var rep Report
	for row, err := range rows {
		if err != nil {
			if row.Row == 0 {
				return rep, err
			}
			rep.Skipped++
			rep.Errors = append(rep.Errors, err.Error())
			continue
		}
		if row.Name == "" || row.Email == "" || !ValidEmail(row.Email) {
			rep.Skipped++
			continue
		}
		if err := im.upsert(ctx, row, &rep); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("row %d: %v", row.Row, err))
		}
	}
	im.log.Infof("contacts import: %d imported, %d updated, %d skipped", rep.Imported, rep.Updated, rep.Skipped)
	return rep, nil
}

func (im *Importer) upsert(ctx context.Context, row Row, rep *Report) error {
	category := row.Category
	if category == "" {
		category = DefaultCategory
	}
	now := im.now()
	existing, err := im.store.ContactByEmail(ctx, row.Email)
	switch {
	case err == nil:
		existing.FullName = row.Name
		existing.Phone = row.Phone
		existing.Category = category
		existing.Company = row.Company
		existing.Active = true
		existing.UpdatedAt = now
		if err := im.store.UpdateContact(ctx, existing); err != nil {
			return err
		}
		rep.Updated++
	case errors.Is(err, model.ErrNotFound):
		c := &model.Contact{
			FullName:  row.Name,
			Phone:     row.Phone,
			Email:     row.Email,
			Category:  category,
			Company:   row.Company,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := im.store.InsertContact(ctx, c); err != nil {
			return err
		}
		rep.Imported++
	default:
		return err
	}
	return nil
}
