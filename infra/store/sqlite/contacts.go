package sqlite

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/MarcinPiech/DHLAI/core/model"
)

var contactColumns = []string{"id", "full_name", "phone", "email", "category", "company", "active", "created_at", "updated_at"}

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var (
		c                  model.Contact
		active             int
		created, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.FullName, &c.Phone, &c.Email, &c.Category, &c.Company, &active, &created, &updatedAt); err != nil {
		return nil, notFound(err)
	}
	c.Active = active != 0
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// FindActiveByName returns the first active contact whose full name
// contains name.
func (s *Store) FindActiveByName(ctx context.Context, name string) (*model.Contact, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	row, err := queryRow(ctx, s.db, sq.Select(contactColumns...).From("contacts").
		Where(sq.Eq{"active": 1}).
		Where(sq.Like{"full_name": "%" + name + "%"}).
		OrderBy("id").Limit(1))
	if err != nil {
		return nil, err
	}
	return scanContact(row)
}

func (s *Store) ContactByEmail(ctx context.Context, email string) (*model.Contact, error) {
	row, err := queryRow(ctx, s.db, sq.Select(contactColumns...).From("contacts").
		Where(sq.Eq{"email": strings.ToLower(strings.TrimSpace(email))}))
	if err != nil {
		return nil, err
	}
	return scanContact(row)
}

func (s *Store) InsertContact(ctx context.Context, c *model.Contact) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	id, err := insert(ctx, s.db, sq.Insert("contacts").Columns(contactColumns[1:]...).Values(
		c.FullName, c.Phone, strings.ToLower(strings.TrimSpace(c.Email)), c.Category, c.Company,
		boolInt(c.Active), fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt)))
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (s *Store) UpdateContact(ctx context.Context, c *model.Contact) error {
	c.UpdatedAt = time.Now()
	res, err := exec(ctx, s.db, sq.Update("contacts").
		Set("full_name", c.FullName).
		Set("phone", c.Phone).
		Set("category", c.Category).
		Set("company", c.Company).
		Set("active", boolInt(c.Active)).
		Set("updated_at", fmtTime(c.UpdatedAt)).
		Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListContacts returns the directory ordered by name.
func (s *Store) ListContacts(ctx context.Context, activeOnly bool) ([]model.Contact, error) {
	b := sq.Select(contactColumns...).From("contacts").OrderBy("full_name")
	if activeOnly {
		b = b.Where(sq.Eq{"active": 1})
	}
	rows, err := query(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
