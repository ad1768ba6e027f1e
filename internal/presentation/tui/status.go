package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// Status writes one-line outcome messages, colored when the output supports it.
type Status struct {
	out *termenv.Output
}

// NewStatus creates a Status writing to w.
func NewStatus(w io.Writer) *Status {
	return &Status{out: termenv.NewOutput(w)}
}

// Success prints a green check line.
func (s *Status) Success(format string, args ...any) {
	s.line("✔", "#34d399", format, args...)
}

// Failure prints a red cross line.
func (s *Status) Failure(format string, args ...any) {
	s.line("✘", "#f87171", format, args...)
}

// Info prints a dimmed line.
func (s *Status) Info(format string, args ...any) {
	msg := s.out.String(fmt.Sprintf(format, args...)).Faint()
	fmt.Fprintln(s.out, msg)
}

func (s *Status) line(mark, color, format string, args ...any) {
	m := s.out.String(mark).Foreground(s.out.Color(color)).Bold()
	fmt.Fprintf(s.out, "%s %s\n", m, fmt.Sprintf(format, args...))
}
