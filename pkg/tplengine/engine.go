// Package tplengine renders the Go templates used by custom executor
// directives, with the sprig function library available.
package tplengine

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine renders named and inline templates against a context map.
type TemplateEngine struct {
	templates    map[string]*template.Template
	globalValues map[string]any
}

// NewEngine creates an empty template engine.
func NewEngine() *TemplateEngine {
	return &TemplateEngine{
		templates:    make(map[string]*template.Template),
		globalValues: make(map[string]any),
	}
}

// WithGlobalValues registers values visible to every render. Per-render
// context keys with the same name lose.
func (e *TemplateEngine) WithGlobalValues(values map[string]any) *TemplateEngine {
	maps.Copy(e.globalValues, values)
	return e
}

// AddTemplate adds a template to the engine
func (e *TemplateEngine) AddTemplate(name, templateStr string) error {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	e.templates[name] = tmpl
	return nil
}

// HasTemplate returns true if the string contains template markers
func HasTemplate(s string) bool {
	return strings.Contains(s, "{{")
}

// Render renders a template by name
func (e *TemplateEngine) Render(name string, context map[string]any) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return e.renderTemplate(tmpl, context)
}

// RenderString renders a template string. Strings without template markers
// are returned untouched, so shell syntax such as "$MWFILENAME" passes
// through as is.
func (e *TemplateEngine) RenderString(templateStr string, context map[string]any) (string, error) {
	if !HasTemplate(templateStr) {
		return templateStr, nil
	}
	tmpl, err := template.New("inline").Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	return e.renderTemplate(tmpl, context)
}

func (e *TemplateEngine) renderTemplate(tmpl *template.Template, context map[string]any) (string, error) {
	data := make(map[string]any, len(context)+len(e.globalValues))
	maps.Copy(data, context)
	maps.Copy(data, e.globalValues)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return buf.String(), nil
}
