// Package prompt turns a strategy template into the text sent to a provider.
//
// Templates use named placeholders in braces, e.g. "Modal: Rp {equity}".
// Doubled braces ("{{" and "}}") produce literal braces. Every placeholder must
// be one the builder knows how to fill; anything else is an error at build
// time, so a prompt never leaves the process with "{something}" still in it.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

// Placeholder names a template may reference.
const (
	PlaceholderEquity       = "equity"
	PlaceholderLastAnalysis = "last_analysis"
	// PlaceholderLastAnalisa is the name used by templates written for the
	// first version of the tool.
	PlaceholderLastAnalisa = "last_analisa"
)

// Supported lists every placeholder name Build can substitute.
var Supported = []string{PlaceholderEquity, PlaceholderLastAnalysis, PlaceholderLastAnalisa}

// TemplateError reports a template that cannot be rendered.
type TemplateError struct {
	Placeholder string // empty for syntax errors
	Offset      int    // byte offset into the template
	Reason      string
}

func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("template: %s {%s} at offset %d", e.Reason, e.Placeholder, e.Offset)
	}
	return fmt.Sprintf("template: %s at offset %d", e.Reason, e.Offset)
}

// Build substitutes the prior analysis and the equity into the template.
func Build(template string, lastAnalysis string, equity float64) (string, error) {
	values := map[string]string{
		PlaceholderEquity:       FormatEquity(equity),
		PlaceholderLastAnalysis: lastAnalysis,
		PlaceholderLastAnalisa:  lastAnalysis,
	}
	return render(template, values)
}

// Validate checks a template's syntax and placeholder names without rendering it.
func Validate(template string) error {
	_, err := render(template, map[string]string{
		PlaceholderEquity:       "",
		PlaceholderLastAnalysis: "",
		PlaceholderLastAnalisa:  "",
	})
	return err
}

// FormatEquity renders the equity as the shortest exact decimal:
// 9500000 -> "9500000", 12500.5 -> "12500.5".
func FormatEquity(equity float64) string {
	return strconv.FormatFloat(equity, 'f', -1, 64)
}

// render walks the template once. Literal runs are copied as-is, placeholders
// are looked up in values.
func render(template string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i += 2
		case c == '}':
			return "", &TemplateError{Offset: i, Reason: "single '}' encountered"}
		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", &TemplateError{Offset: i, Reason: "unterminated placeholder"}
			}
			name := template[i+1 : i+1+end]
			if name == "" {
				return "", &TemplateError{Offset: i, Reason: "empty placeholder"}
			}
			value, ok := values[name]
			if !ok {
				return "", &TemplateError{Placeholder: name, Offset: i, Reason: "unknown placeholder"}
			}
			b.WriteString(value)
			i += end + 2
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String(), nil
}
