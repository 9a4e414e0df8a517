package httpcontroller

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed views
var ViewsFs embed.FS

//go:embed static
var StaticFs embed.FS

// emptyValue is shown for blank cells.
const emptyValue = "—"

// TemplateRenderer is a custom HTML template renderer for Echo framework.
// Every page is parsed together with the layouts into its own set, so
// pages can each define "content".
type TemplateRenderer struct {
	templates map[string]*template.Template
	logger    echo.Logger
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	tmpl, ok := t.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	// Render into a buffer so a failing template never sends half a page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		t.logger.Errorf("Error executing template %s: %v", name, err)
		return err
	}

	_, err := buf.WriteTo(w)
	if err != nil {
		t.logger.Errorf("Error writing template result: %v", err)
	}
	return err
}

// newTemplateRenderer parses views/pages/*.html against views/layouts.
func newTemplateRenderer(views fs.FS, funcs template.FuncMap, log echo.Logger) (*TemplateRenderer, error) {
	pages, err := fs.Glob(views, "views/pages/*.html")
	if err != nil {
		return nil, err
	}

	r := &TemplateRenderer{templates: make(map[string]*template.Template, len(pages)), logger: log}
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(views, "views/layouts/*.html", page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// GetTemplateFunctions returns a map of functions that can be used in templates
func GetTemplateFunctions() template.FuncMap {
	return template.FuncMap{
		"sub":  subFunc,
		"add":  addFunc,
		"dash": dash,
	}
}

// simple math functions
func subFunc(a, b int) int { return a - b }
func addFunc(a, b int) int { return a + b }

// dash returns the placeholder for blank values.
func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyValue
	}
	return s
}
