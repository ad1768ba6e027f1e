package template

import (
	"log/slog"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/domain"
)

// Preamble is the first line of every expanded source.
const Preamble = "#include <hpy.h>"

// Expander turns templates into complete sources.
// The directive table is fixed at construction.
type Expander struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithHandler adds a directive or replaces a built-in one.
func WithHandler(name string, h Handler) Option {
	return func(e *Expander) {
		e.handlers[name] = h
	}
}

// WithLogger sets the logger used for debug tracing of directives.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Expander with the built-in directives.
func New(opts ...Option) *Expander {
	e := &Expander{
		handlers: DefaultHandlers(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one expansion.
type Result struct {
	Source     string
	Directives int
	Finalized  bool
}

// Expand expands src for the named module.
func (e *Expander) Expand(src, module string) (string, error) {
	res, err := e.ExpandDetailed(src, module)
	if err != nil {
		return "", err
	}
	return res.Source, nil
}

// ExpandDetailed expands src and reports what was found.
// Output lines keep input order; only directive lines are substituted.
func (e *Expander) ExpandDetailed(src, module string) (Result, error) {
	b := NewBuilder(module)
	lines := strings.Split(dedent.Dedent(src), "\n")
	out := make([]string, 0, len(lines)+1)
	out = append(out, Preamble)

	var count int
	for i, line := range lines {
		d, ok, err := ParseLine(line)
		if !ok {
			out = append(out, line)
			continue
		}
		d.Line = i + 1
		if err != nil {
			return Result{}, e.fail(module, d, err)
		}
		count++

		h, found := e.handlers[d.Name]
		if !found {
			return Result{}, e.fail(module, d, domain.ErrUnknownDirective)
		}
		text, err := h.Expand(b, d.Args)
		if err != nil {
			return Result{}, e.fail(module, d, err)
		}
		e.logger.Debug("directive expanded", "module", module, "line", d.Line, "directive", d.Name, "args", d.Args)
		if text != "" {
			out = append(out, reindentWith(text, indentOf(line)))
		}
	}

	return Result{
		Source:     strings.Join(out, "\n"),
		Directives: count,
		Finalized:  b.Finalized(),
	}, nil
}

func (e *Expander) fail(module string, d Directive, err error) error {
	return &DirectiveError{
		Module: module,
		Line:   d.Line,
		Text:   d.Text,
		Name:   d.Name,
		Args:   d.Args,
		Err:    err,
	}
}

// Reindent dedents s and prefixes every non-blank line with indent spaces.
func Reindent(s string, indent int) string {
	if indent <= 0 {
		return dedent.Dedent(s)
	}
	return reindentWith(s, strings.Repeat(" ", indent))
}

// reindentWith dedents s and prefixes every non-blank line with prefix.
func reindentWith(s, prefix string) string {
	s = dedent.Dedent(s)
	if prefix == "" {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "")
}

// indentOf returns the leading whitespace of line as written, tabs included.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
