package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinPiech/DHLAI/core/model"
	"github.com/MarcinPiech/DHLAI/infra/logger"
)

type memContacts struct {
	byEmail map[string]*model.Contact
	lookups int
	failFor string
}

func (m *memContacts) ContactByEmail(_ context.Context, email string) (*model.Contact, error) {
	if c, ok := m.byEmail[email]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, model.ErrNotFound
}

func (m *memContacts) InsertContact(_ context.Context, c *model.Contact) error {
	if c.Email == m.failFor {
		return errors.New("constraint failed")
	}
	c.ID = int64(len(m.byEmail) + 1)
	m.byEmail[c.Email] = c
	return nil
}

func (m *memContacts) UpdateContact(_ context.Context, c *model.Contact) error {
	m.byEmail[c.Email] = c
	return nil
}

func (m *memContacts) FindActiveByName(_ context.Context, name string) (*model.Contact, error) {
	m.lookups++
	for _, c := range m.byEmail {
		if c.Active && c.FullName == name {
			return c, nil
		}
	}
	return nil, model.ErrNotFound
}

type rows [][]string

type rowsReader struct {
	rows rows
	pos  int
}

func (r *rowsReader) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *rowsReader) Columns() ([]string, error) { return r.rows[r.pos-1], nil }
func (r *rowsReader) Error() error               { return nil }
func (r *rowsReader) Close() error               { return nil }

func TestImportUpsertsByEmail(t *testing.T) {
	store := &memContacts{byEmail: map[string]*model.Contact{
		"jan@firma.pl": {ID: 1, FullName: "Jan Stary", Email: "jan@firma.pl", Category: "team"},
	}}
	src := &rowsReader{rows: rows{
		{"Imię i nazwisko", "Telefon", "Email", "Typ", "Firma"},
		{"Jan Nowak", "600100200", "jan@firma.pl", "", ""},
		{"Anna Lis", "", "anna@firma.pl", "transport", "HUBTRANS"},
		{"Bez maila", "", "", "", ""},
		{"", "", "x@firma.pl"},
		{"Zły adres", "", "not-an-email"},
		{"Awaria", "", "fail@firma.pl"},
		{},
	}}
	store.failFor = "fail@firma.pl"

	rep, err := NewImporter(store, logger.NopLogger{}).Import(context.Background(), ReadRows(src))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Imported)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 3, rep.Skipped)
	assert.Len(t, rep.Errors, 1)

	assert.Equal(t, "Jan Nowak", store.byEmail["jan@firma.pl"].FullName)
	assert.Equal(t, DefaultCategory, store.byEmail["jan@firma.pl"].Category)
	assert.Equal(t, "transport", store.byEmail["anna@firma.pl"].Category)
	assert.True(t, store.byEmail["anna@firma.pl"].Active)
}

func TestResolverCachesMisses(t *testing.T) {
	store := &memContacts{byEmail: map[string]*model.Contact{
		"a@b.pl": {FullName: "Nowak", Email: "a@b.pl", Active: true},
	}}
	r := NewResolver(store)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c, err := r.Resolve(ctx, "Nowak")
		require.NoError(t, err)
		require.NotNil(t, c)
		c, err = r.Resolve(ctx, "Nieznany")
		require.NoError(t, err)
		assert.Nil(t, c)
	}
	assert.Equal(t, 2, store.lookups)
}

func TestValidEmail(t *testing.T) {
	for in, want := range map[string]bool{
		"biuro@stypczynski.pl":       true,
		"Jan <jan@firma.pl>":         false,
		"jan@localhost":              false,
		"":                           false,
		"hubert_czub@op.pl":          true,
		"walegatransport@gmail.com ": true,
	} {
		assert.Equal(t, want, ValidEmail(in), in)
	}
}
