package template

import (
	"fmt"
	"strings"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// Directive is one parsed directive line.
type Directive struct {
	Name string
	Args []string
	// Line is the 1-based line number in the dedented template.
	Line int
	// Text is the original line.
	Text string
}

// ParseLine reports whether line is a directive and, if so, parses it.
//
// A directive is "@" followed by an ASCII identifier and an optional
// parenthesized argument list, with nothing else on the line apart from
// surrounding whitespace. Other text after the identifier makes the line
// ordinary source (doc comments such as "@param x"), unless it holds
// parentheses: misplaced or unbalanced ones are malformed.
func ParseLine(line string) (Directive, bool, error) {
	s := strings.TrimSpace(line)
	if len(s) < 2 || s[0] != '@' || !isIdentStart(s[1]) {
		return Directive{}, false, nil
	}

	end := 2
	for end < len(s) && isIdentChar(s[end]) {
		end++
	}
	d := Directive{Name: s[1:end], Text: line}

	rest := s[end:]
	if rest == "" {
		return d, true, nil
	}

	if !strings.ContainsAny(rest, "()") {
		return Directive{}, false, nil
	}
	if rest[0] != '(' || rest[len(rest)-1] != ')' {
		return d, true, fmt.Errorf("%w: expected \"(\" right after @%s and \")\" at end of line", domain.ErrMalformedDirective, d.Name)
	}
	inner := rest[1 : len(rest)-1]
	if strings.ContainsAny(inner, "()") {
		return d, true, fmt.Errorf("%w: nested or unbalanced parentheses in @%s", domain.ErrMalformedDirective, d.Name)
	}
	d.Args = splitArgs(inner)
	return d, true, nil
}

// splitArgs splits on every comma. "()" yields no arguments.
func splitArgs(inner string) []string {
	if strings.TrimSpace(inner) == "" {
		return []string{}
	}
	parts := strings.Split(inner, ",")
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(p)
	}
	return args
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
