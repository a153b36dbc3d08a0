// Package templates handles HTML template rendering for pages and Datastar
// SSE fragments.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"os"
	"strings"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// signal is the Datastar signal name data-bind derives from an element id
	"signal": strings.ToLower,
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New creates a renderer from the embedded fragments. A non-empty
// fragmentsDir (e.g. web/templates/fragments) overrides them from disk.
func New(fragmentsDir string) (*Renderer, error) {
	var fsys fs.FS
	if fragmentsDir != "" {
		fsys = os.DirFS(fragmentsDir)
	} else {
		sub, err := fs.Sub(embedded, "fragments")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}
	tmpl, err := parse(fsys)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload reparses templates from fragmentsDir (useful for dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parse(os.DirFS(fragmentsDir))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}

func parse(fsys fs.FS) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
}
