// Package templates renders the draft bodies from HTML templates on disk and
// derives their plain-text alternative.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/MarcinPiech/DHLAI/core/drafts"
)

// Renderer loads each template on first use and caches it.
type Renderer struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewRenderer returns a renderer for the templates under dir.
func NewRenderer(dir string) (*Renderer, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("templates: %s is not a directory", dir)
	}
	return &Renderer{dir: dir, cache: make(map[string]*template.Template)}, nil
}

// Render executes the named template with data. A missing file yields an
// error wrapping drafts.ErrTemplateNotFound.
func (r *Renderer) Render(name string, data any) (string, error) {
	t, err := r.load(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) load(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[name]; ok {
		return t, nil
	}
	path := filepath.Join(r.dir, filepath.Base(name))
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", drafts.ErrTemplateNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("templates: read %s: %w", name, err)
	}
	t, err := template.New(name).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("templates: parse %s: %w", name, err)
	}
	r.cache[name] = t
	return t, nil
}

// Missing lists the catalogue templates that do not exist under dir.
func (r *Renderer) Missing() []string {
	var out []string
	for _, s := range drafts.Catalog {
		if _, err := os.Stat(filepath.Join(r.dir, s.Template)); err != nil {
			out = append(out, s.Template)
		}
	}
	return out
}
