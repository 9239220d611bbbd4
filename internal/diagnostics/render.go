package diagnostics

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiDim    = "\x1b[2m"
)

// Renderer writes diagnostics in a human-readable form, colorized only
// when the destination is a real terminal.
type Renderer struct {
	out   io.Writer
	color bool
}

// NewRenderer builds a Renderer for out. Color is enabled when out is an
// *os.File attached to a terminal (including a Cygwin terminal).
func NewRenderer(out io.Writer) *Renderer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{out: out, color: color}
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func (r *Renderer) severityLabel(s Severity) string {
	switch s {
	case Error:
		return r.paint(ansiBold+ansiRed, "error")
	case Warning:
		return r.paint(ansiBold+ansiYellow, "warning")
	default:
		return r.paint(ansiBold+ansiCyan, "note")
	}
}

// Render writes one diagnostic: location, severity, rule id, message, then
// secondary labels and the fix hint indented beneath it.
func (r *Renderer) Render(d Diagnostic) {
	loc := fmt.Sprintf("%s:%d:%d", d.Primary.URI, d.Primary.Pos.Line+1, d.Primary.Pos.Column+1)
	fmt.Fprintf(r.out, "%s: %s[%s]: %s\n",
		r.paint(ansiBold, loc), r.severityLabel(d.Severity), d.Rule, d.Message)
	for _, label := range d.Secondary {
		fmt.Fprintf(r.out, "  %s %s:%d:%d: %s\n",
			r.paint(ansiDim, "note:"), label.Span.URI, label.Span.Pos.Line+1, label.Span.Pos.Column+1, label.Message)
	}
	if d.Fix != "" {
		fmt.Fprintf(r.out, "  %s %s\n", r.paint(ansiDim, "fix:"), d.Fix)
	}
}

// RenderAll writes each diagnostic in order and returns the error and
// warning counts; it writes no summary line (see Summary).
func (r *Renderer) RenderAll(diags []Diagnostic) (errors, warnings int) {
	for _, d := range diags {
		r.Render(d)
		switch d.Severity {
		case Error:
			errors++
		case Warning:
			warnings++
		}
	}
	return errors, warnings
}

// Summary formats a closing "N error(s), M warning(s)" line, omitting a
// zero count, or "no issues found" when both counts are zero.
func Summary(errors, warnings int) string {
	var parts []string
	if errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errors))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warnings))
	}
	if len(parts) == 0 {
		return "no issues found"
	}
	return strings.Join(parts, ", ")
}
