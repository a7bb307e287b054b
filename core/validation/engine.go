// Package validation enforces the cross-field business rules a period must
// satisfy before drafts are generated or sent.
package validation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MarcinPiech/DHLAI/core/contacts"
	"github.com/MarcinPiech/DHLAI/core/logger"
	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/core/routing"
)

// Check names one of the validation passes.
type Check string

const (
	CheckLocations Check = "locations"
	CheckContacts  Check = "contacts"
	CheckEvidence  Check = "evidence"
	CheckDrafts    Check = "drafts"
)

// Finding is one error or warning.
type Finding struct {
	Check   Check  `json:"check"`
	Row     int    `json:"row,omitempty"`
	DraftID int64  `json:"draft_id,omitempty"`
	Message string `json:"message"`
}

func (f Finding) String() string { return f.Message }

// Report is the structured outcome of a validation run. Errors block
// generation and sending, warnings are advisory.
type Report struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

func (r *Report) addError(c Check, row int, draftID int64, format string, args ...any) {
	r.Errors = append(r.Errors, Finding{Check: c, Row: row, DraftID: draftID, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(c Check, row int, format string, args ...any) {
	r.Warnings = append(r.Warnings, Finding{Check: c, Row: row, Message: fmt.Sprintf(format, args...)})
}

// ErrorMessages flattens the errors for display.
func (r *Report) ErrorMessages() []string {
	out := make([]string, len(r.Errors))
	for i, f := range r.Errors {
		out[i] = f.Message
	}
	return out
}

// LocationSource returns the records of a period's latest version.
type LocationSource interface {
	LatestLocations(ctx context.Context, periodID int64) ([]model.LocationRecord, error)
}

// DraftStore reads and updates the drafts of a period.
type DraftStore interface {
	DraftsByPeriod(ctx context.Context, periodID int64) ([]model.EmailDraft, error)
	UpdateDraft(ctx context.Context, d *model.EmailDraft) error
}

// Engine runs the business-rule checks. It keeps no state between calls.
type Engine struct {
	locations LocationSource
	contacts  contacts.Directory
	drafts    DraftStore
	routes    routing.Table
	log       logger.Logger
	stat      func(string) (os.FileInfo, error)
}

func NewEngine(locations LocationSource, dir contacts.Directory, drafts DraftStore, routes routing.Table, log logger.Logger) *Engine {
	return &Engine{
		locations: locations,
		contacts:  dir,
		drafts:    drafts,
		routes:    routes,
		log:       log,
		stat:      os.Stat,
	}
}

// ValidatePeriod runs every check and reports the complete problem set.
func (e *Engine) ValidatePeriod(ctx context.Context, periodID int64) (*Report, error) {
	return e.run(ctx, periodID, true)
}

// ValidateRecords runs the location, contact and evidence checks only. It
// gates draft generation, where the drafts check cannot pass yet.
func (e *Engine) ValidateRecords(ctx context.Context, periodID int64) (*Report, error) {
	return e.run(ctx, periodID, false)
}

func (e *Engine) run(ctx context.Context, periodID int64, withDrafts bool) (*Report, error) {
	recs, err := e.locations.LatestLocations(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("validation: load locations: %w", err)
	}
	rep := &Report{Errors: []Finding{}, Warnings: []Finding{}}
	e.checkLocations(recs, rep)
	if err := e.checkContacts(ctx, recs, rep); err != nil {
		return nil, err
	}
	e.checkEvidence(recs, rep)
	if withDrafts {
		drafts, err := e.drafts.DraftsByPeriod(ctx, periodID)
		if err != nil {
			return nil, fmt.Errorf("validation: load drafts: %w", err)
		}
		checkDrafts(drafts, rep)
	}
	rep.Valid = len(rep.Errors) == 0
	e.log.Debugw("period validated", map[string]any{
		"period_id": periodID,
		"errors":    len(rep.Errors),
		"warnings":  len(rep.Warnings),
	})
	return rep, nil
}

func (e *Engine) checkLocations(recs []model.LocationRecord, rep *Report) {
	if len(recs) == 0 {
		rep.addError(CheckLocations, 0, 0, "no locations in period")
		return
	}
	for i := range recs {
		r := &recs[i]
		if !r.HasAddress() {
			rep.addError(CheckLocations, r.RowIndex, 0, "row %d: missing address", r.RowIndex)
		}
		if !r.HasCrew() {
			rep.addWarning(CheckLocations, r.RowIndex, "row %d: no crew assigned", r.RowIndex)
		}
	}
}

func (e *Engine) checkContacts(ctx context.Context, recs []model.LocationRecord, rep *Report) error {
	resolver := contacts.NewResolver(e.contacts)
	reported := make(map[string]struct{})
	for i := range recs {
		for _, name := range recs[i].CrewMembers() {
			if _, done := reported[name]; done {
				continue
			}
			c, err := resolver.Resolve(ctx, name)
			if err != nil {
				return fmt.Errorf("validation: resolve %q: %w", name, err)
			}
			if c == nil {
				reported[name] = struct{}{}
				rep.addError(CheckContacts, 0, 0, "missing contact for %s", name)
			}
		}
	}
	return nil
}

func (e *Engine) checkEvidence(recs []model.LocationRecord, rep *Report) {
	for i := range recs {
		r := &recs[i]
		required := ""
		for _, company := range []string{r.AutoCompany, r.JumboCompany} {
			if company != "" && routing.RequiresPhotos(e.routes, company) {
				required = company
				break
			}
		}
		switch {
		case required != "" && len(r.Photos) == 0:
			rep.addError(CheckEvidence, r.RowIndex, 0, "row %d: %s requires photos but none are attached", r.RowIndex, required)
		case required != "":
			for _, p := range r.Photos {
				if _, err := e.stat(p); err != nil {
					rep.addError(CheckEvidence, r.RowIndex, 0, "row %d: photo %s does not exist", r.RowIndex, p)
				}
			}
		case len(r.Photos) == 0 && (r.AutoCompany != "" || r.JumboCompany != ""):
			rep.addWarning(CheckEvidence, r.RowIndex, "row %d: no photos for transport by %s", r.RowIndex, firstNonEmpty(r.AutoCompany, r.JumboCompany))
		}
	}
}

func checkDrafts(drafts []model.EmailDraft, rep *Report) {
	if len(drafts) == 0 {
		rep.addError(CheckDrafts, 0, 0, "no drafts generated")
		return
	}
	for i := range drafts {
		d := &drafts[i]
		prefix := fmt.Sprintf("draft #%d (%s)", d.ID, d.Category)
		if strings.TrimSpace(d.RecipientEmail) == "" {
			rep.addError(CheckDrafts, 0, d.ID, "%s: missing recipient email", prefix)
		}
		if strings.TrimSpace(d.Subject) == "" {
			rep.addError(CheckDrafts, 0, d.ID, "%s: missing subject", prefix)
		}
		if strings.TrimSpace(d.BodyHTML) == "" {
			rep.addError(CheckDrafts, 0, d.ID, "%s: missing body", prefix)
		}
		for _, msg := range d.ValidationErrors {
			rep.addError(CheckDrafts, 0, d.ID, "%s: %s", prefix, msg)
		}
	}
}

// ValidateDraft checks one draft before approval: recipient syntax,
// subject and body presence, and that every attachment exists on disk.
//
// The draft's validation errors are replaced by the result of this run
// and the draft is persisted whenever they change, so this query also
// writes. A draft rejected earlier validates again once the cause is gone.
func (e *Engine) ValidateDraft(ctx context.Context, d *model.EmailDraft) (bool, error) {
	var problems []string
	if !contacts.ValidEmail(d.RecipientEmail) {
		problems = append(problems, fmt.Sprintf("invalid recipient email %q", d.RecipientEmail))
	}
	if strings.TrimSpace(d.Subject) == "" {
		problems = append(problems, "missing subject")
	}
	if strings.TrimSpace(d.BodyHTML) == "" {
		problems = append(problems, "missing body")
	}
	for _, a := range d.Attachments {
		if _, err := e.stat(a.Path); err != nil {
			problems = append(problems, fmt.Sprintf("attachment %s does not exist", a.Name))
		}
	}
	if len(problems) == 0 && !d.HasErrors() {
		return true, nil
	}
	d.ValidationErrors = nil
	for _, p := range problems {
		d.AddValidationError(p)
	}
	if err := e.drafts.UpdateDraft(ctx, d); err != nil {
		return false, fmt.Errorf("validation: save draft %d: %w", d.ID, err)
	}
	return len(problems) == 0, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
