package template

import (
	"fmt"
	"strings"
)

// DirectiveError locates an authoring error in a template.
type DirectiveError struct {
	Module string
	Line   int
	Text   string
	Name   string
	Args   []string
	Err    error
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("%s:%d: @%s(%s): %v (line %q)",
		e.Module, e.Line, e.Name, strings.Join(e.Args, ", "), e.Err, strings.TrimSpace(e.Text))
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}
