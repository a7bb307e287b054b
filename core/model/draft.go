package model

import (
	"slices"
	"time"
)

// Category identifies one of the fixed message flows.
type Category string

const (
	CategorySubstrate Category = "team_substrate"
	CategoryService   Category = "team_service"
	CategoryAssembly  Category = "team_assembly"
	CategoryAuto      Category = "transport_auto"
	CategoryJumbo     Category = "transport_jumbo"
	CategoryBags      Category = "bags"
)

// Categories lists every category in generation order.
var Categories = []Category{
	CategorySubstrate, CategoryService, CategoryAssembly,
	CategoryAuto, CategoryJumbo, CategoryBags,
}

// IsTransport reports whether photo evidence travels with the category.
func (c Category) IsTransport() bool { return c == CategoryAuto || c == CategoryJumbo }

// DraftStatus is the state of an EmailDraft.
type DraftStatus string

const (
	DraftPending DraftStatus = "pending"
	DraftReady   DraftStatus = "ready"
	DraftSent    DraftStatus = "sent"
	DraftFailed  DraftStatus = "failed"
)

// Attachment is a file sent along with a draft.
type Attachment struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	MimeType string `json:"mime"`
	Size     int64  `json:"size"`
}

// EmailDraft is a generated message, before or after sending.
type EmailDraft struct {
	ID               int64        `json:"id"`
	PeriodID         int64        `json:"period_id"`
	RecipientEmail   string       `json:"recipient_email"`
	RecipientName    string       `json:"recipient_name"`
	CC               []string     `json:"cc,omitempty"`
	Subject          string       `json:"subject"`
	Category         Category     `json:"category"`
	Priority         int          `json:"priority"`
	BodyHTML         string       `json:"body_html"`
	BodyPlain        string       `json:"body_plain"`
	Attachments      []Attachment `json:"attachments,omitempty"`
	Status           DraftStatus  `json:"status"`
	ValidationErrors []string     `json:"validation_errors,omitempty"`
	SentAt           *time.Time   `json:"sent_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// AddValidationError appends msg once.
func (d *EmailDraft) AddValidationError(msg string) {
	if !slices.Contains(d.ValidationErrors, msg) {
		d.ValidationErrors = append(d.ValidationErrors, msg)
	}
}

func (d *EmailDraft) HasErrors() bool { return len(d.ValidationErrors) > 0 }

func (d *EmailDraft) IsSent() bool { return d.Status == DraftSent }

// Sendable reports whether dispatch may pick the draft up.
func (d *EmailDraft) Sendable() bool {
	return d.Status == DraftReady || d.Status == DraftFailed
}
