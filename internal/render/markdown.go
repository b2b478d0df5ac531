// Package render turns stored analyses into HTML for display. The stored
// text itself is never modified.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts Markdown analyses to HTML with GitHub-flavoured tables.
// Raw HTML in model output is escaped, not passed through.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a Renderer.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// HTML renders one analysis.
func (r *Renderer) HTML(analysis string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(unwrapFence(analysis)), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// unwrapFence strips a single code fence wrapping the whole answer
// (```markdown ... ```), which some models add around tables.
func unwrapFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return s
	}
	body := strings.TrimSuffix(trimmed, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	// Anything after the opening backticks is an info string (e.g. "markdown").
	inner := body[nl+1:]
	if strings.Contains(inner, "```") {
		return s
	}
	return strings.TrimSpace(inner)
}
