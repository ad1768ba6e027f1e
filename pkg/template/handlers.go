package template

import (
	"fmt"
	"strconv"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// Built-in directive names.
const (
	DirectiveInit          = "INIT"
	DirectiveExport        = "EXPORT"
	DirectiveExportLegacy  = "EXPORT_LEGACY"
	DirectiveExportType    = "EXPORT_TYPE"
	DirectiveExtraInitFunc = "EXTRA_INIT_FUNC"
)

// Handler expands one directive. It may mutate the Builder and may return
// text that replaces the directive line; an empty string drops the line.
type Handler interface {
	Expand(b *Builder, args []string) (string, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(b *Builder, args []string) (string, error)

// Expand calls f(b, args).
func (f HandlerFunc) Expand(b *Builder, args []string) (string, error) {
	return f(b, args)
}

// DefaultHandlers returns the built-in directive table.
func DefaultHandlers() map[string]Handler {
	return map[string]Handler{
		DirectiveInit:          HandlerFunc(expandInit),
		DirectiveExport:        HandlerFunc(expandExport),
		DirectiveExportLegacy:  HandlerFunc(expandExportLegacy),
		DirectiveExportType:    HandlerFunc(expandExportType),
		DirectiveExtraInitFunc: HandlerFunc(expandExtraInitFunc),
	}
}

func expandInit(b *Builder, args []string) (string, error) {
	if err := arity(args, 0); err != nil {
		return "", err
	}
	return b.Finalize()
}

func expandExport(b *Builder, args []string) (string, error) {
	if err := arity(args, 1); err != nil {
		return "", err
	}
	return "", b.AddExport(args[0])
}

func expandExportLegacy(b *Builder, args []string) (string, error) {
	if err := arity(args, 1); err != nil {
		return "", err
	}
	return "", b.SetLegacyMethods(args[0])
}

func expandExportType(b *Builder, args []string) (string, error) {
	if err := arity(args, 2); err != nil {
		return "", err
	}
	h := "h_type_" + strconv.Itoa(b.NextInitIndex())
	return "", b.AddInit(fillFragment(typeFragment,
		"{{h}}", h,
		"{{name}}", args[0],
		"{{spec}}", args[1],
	))
}

func expandExtraInitFunc(b *Builder, args []string) (string, error) {
	if err := arity(args, 1); err != nil {
		return "", err
	}
	return "", b.AddInit(fillFragment(extraInitFragment, "{{func}}", args[0]))
}

func arity(args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrDirectiveArity, len(args), want)
	}
	return nil
}
