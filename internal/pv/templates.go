package pv

import (
	"embed"
	"fmt"
	"strings"
)

// BuiltinVersion is bumped whenever a file under templates/ changes.
const BuiltinVersion = 1

//go:embed templates/*.html
var builtinFS embed.FS

// Template HTML body plus the version recorded on generated documents.
type Template struct {
	Body    string
	Version string
}

// Builtin returns the embedded template for v.
func Builtin(v Variant) (Template, error) {
	body, err := builtinFS.ReadFile("templates/" + strings.ToLower(string(v)) + ".html")
	if err != nil {
		return Template{}, fmt.Errorf("builtin template %s: %w", v, err)
	}
	return Template{
		Body:    string(body),
		Version: fmt.Sprintf("builtin:%s@v%d", v, BuiltinVersion),
	}, nil
}

// Custom wraps a template stored on a type of PV.
func Custom(code, body string, version int) Template {
	return Template{
		Body:    body,
		Version: fmt.Sprintf("custom:%s@v%d", code, version),
	}
}

// Render substitutes d into t and returns the HTML.
func (t Template) Render(d Data) (string, error) {
	return Substitute(t.Body, d.Variables())
}
