package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RenderSource highlights generated C source for the terminal.
func RenderSource(render func(string) (string, error), src string) (string, error) {
	var md strings.Builder
	md.WriteString("```c\n")
	md.WriteString(src)
	if !strings.HasSuffix(src, "\n") {
		md.WriteString("\n")
	}
	md.WriteString("```\n")
	return render(md.String())
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
