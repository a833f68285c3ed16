// Package tmpl renders user-configured command templates.
package tmpl

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// shellQuote returns a shell-safe quoted string. It wraps the string in single
// quotes and escapes embedded single quotes by closing, escaping and reopening.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	escaped := strings.ReplaceAll(s, "'", `'\''`)
	return "'" + escaped + "'"
}

var funcs = template.FuncMap{
	"shq": shellQuote,
}

// Render executes a Go template string with the given data.
// Returns an error if the template is invalid or references undefined keys.
//
// Available template functions:
//   - shq: Shell-quote a string for use inside a `sh -c` argument
func Render(tmpl string, data any) (string, error) {
	t, err := template.New("").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

// RenderArgs renders each element of an argv template. The first element
// must render to a non-empty program name.
func RenderArgs(argv []string, data any) ([]string, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	out := make([]string, len(argv))
	for i, a := range argv {
		r, err := Render(a, data)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = r
	}

	if strings.TrimSpace(out[0]) == "" {
		return nil, fmt.Errorf("command renders to an empty program name")
	}
	return out, nil
}
