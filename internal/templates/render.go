// Package templates handles HTML template rendering for Datastar SSE responses.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
)

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
	// km2 formats an area for display
	"km2": func(v float64) string {
		return fmt.Sprintf("%.2f km²", v)
	},
}

// Renderer manages HTML fragment templates. Templates are parsed once and
// are safe for concurrent use.
type Renderer struct {
	templates *template.Template
}

// New parses every fragment matching pattern in fsys,
// e.g. New(web.Fragments, "templates/fragments/*.html").
func New(fsys fs.FS, pattern string) (*Renderer, error) {
	tmpl, err := parse(fsys, pattern)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

func parse(fsys fs.FS, pattern string) (*template.Template, error) {
	return template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
