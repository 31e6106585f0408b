package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"faultline/internal/diag"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем строку исходника с ^ под колонкой, затем Notes.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if w == nil || bag == nil {
		return
	}
	for _, d := range bag.Items() {
		prettyOne(w, d, opts)
	}
}

func prettyOne(w io.Writer, d diag.Diagnostic, opts PrettyOpts) {
	sevColor := color.New(color.FgCyan, color.Bold)
	switch d.Severity {
	case diag.SevError:
		sevColor = color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		sevColor = color.New(color.FgYellow, color.Bold)
	}
	loc := color.New(color.Bold)
	if opts.Color {
		sevColor.EnableColor()
		loc.EnableColor()
	} else {
		sevColor.DisableColor()
		loc.DisableColor()
	}

	fmt.Fprintf(w, "%s: %s %s: %s\n",
		loc.Sprint(formatSpan(d.Primary, opts.PathMode)),
		sevColor.Sprint(d.Severity.String()),
		d.Code.ID(),
		d.Message,
	)
	if line, ok := sourceLine(opts.Sources, d.Primary); ok {
		fmt.Fprintf(w, "  %s\n", line)
		if d.Primary.Col > 0 {
			fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", d.Primary.Col-1), sevColor.Sprint("^"))
		}
	}
	if opts.ShowNotes {
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  note: %s: %s\n", formatSpan(n.Span, opts.PathMode), n.Msg)
		}
	}
}

func formatSpan(sp diag.Span, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(sp.File); err == nil {
			sp.File = abs
		}
	case PathModeBasename:
		sp.File = filepath.Base(sp.File)
	}
	return sp.String()
}

func sourceLine(sources map[string]string, sp diag.Span) (string, bool) {
	text, ok := sources[sp.File]
	if !ok || sp.Line <= 0 {
		return "", false
	}
	lines := strings.Split(text, "\n")
	if sp.Line > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[sp.Line-1], "\r"), true
}
