package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinPiech/DHLAI/core/drafts"
	"github.com/MarcinPiech/DHLAI/core/model"
)

const emailDir = "../../templates/emails"

func TestShippedTemplatesCoverCatalog(t *testing.T) {
	r, err := NewRenderer(emailDir)
	require.NoError(t, err)
	assert.Empty(t, r.Missing())
}

func TestRenderTransportTemplate(t *testing.T) {
	r, err := NewRenderer(emailDir)
	require.NoError(t, err)

	html, err := r.Render("transport_auto.html", drafts.TemplateData{
		Period:        model.Period{Label: "T35", Year: 2025},
		Company:       "HUBTRANS",
		Headers:       []string{"Adres"},
		Rows:          []drafts.TemplateRow{{RowIndex: 4, Cells: []string{"Długa 1 <b>"}, Photos: 2}},
		RequirePhotos: true,
		Photos:        2,
	})
	require.NoError(t, err)
	assert.Contains(t, html, "HUBTRANS")
	assert.Contains(t, html, "T35/2025")
	assert.Contains(t, html, "Długa 1 &lt;b&gt;")
	assert.Contains(t, html, "Załączono zdjęć: 2")
}

func TestRenderMissingTemplate(t *testing.T) {
	r, err := NewRenderer(t.TempDir())
	require.NoError(t, err)
	_, err = r.Render("bags.html", drafts.TemplateData{})
	assert.ErrorIs(t, err, drafts.ErrTemplateNotFound)
}

func TestRenderBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bags.html"), []byte("{{.Nope"), 0o600))
	r, err := NewRenderer(dir)
	require.NoError(t, err)
	_, err = r.Render("bags.html", drafts.TemplateData{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, drafts.ErrTemplateNotFound)
}

func TestNewRendererRequiresDirectory(t *testing.T) {
	_, err := NewRenderer(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestPlainText(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head><body>
<p>Dzień dobry,</p><p>Plan   na T35.</p>
<table><tr><th>Wiersz</th><th>Adres</th></tr><tr><td>4</td><td>Długa 1</td></tr></table>
<p>Pozdrawiamy,<br>Dział planowania</p></body></html>`

	got, err := Text{}.PlainText(html)
	require.NoError(t, err)
	assert.NotContains(t, got, "color:red")
	assert.Contains(t, got, "Dzień dobry,")
	assert.Contains(t, got, "Plan na T35.")
	assert.Contains(t, got, "4 | Długa 1")
	assert.Contains(t, got, "Pozdrawiamy,\nDział planowania")
}
