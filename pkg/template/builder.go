package template

import (
	"fmt"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// DefaultLegacyMethods is the legacy-methods value when no directive overrides it.
const DefaultLegacyMethods = "NULL"

// Builder accumulates registration entries while a template is scanned.
// A new Builder is created per expansion and is locked by Finalize.
type Builder struct {
	module    string
	exports   []string
	legacy    string
	inits     []string
	finalized bool
}

// NewBuilder creates an empty Builder for the named module.
func NewBuilder(module string) *Builder {
	return &Builder{
		module: module,
		legacy: DefaultLegacyMethods,
	}
}

// Module returns the name of the module being generated.
func (b *Builder) Module() string { return b.module }

// Finalized reports whether the tables have been rendered and locked.
func (b *Builder) Finalized() bool { return b.finalized }

// Exports returns a copy of the export table.
func (b *Builder) Exports() []string { return append([]string(nil), b.exports...) }

// Inits returns a copy of the init-fragment table.
func (b *Builder) Inits() []string { return append([]string(nil), b.inits...) }

// LegacyMethods returns the current legacy-methods value.
func (b *Builder) LegacyMethods() string { return b.legacy }

// AddExport appends a reference to the generated definition sym.
func (b *Builder) AddExport(sym string) error {
	if err := b.writable(); err != nil {
		return err
	}
	b.exports = append(b.exports, "&"+sym+",")
	return nil
}

// SetLegacyMethods overwrites the legacy-methods slot. Last write wins.
func (b *Builder) SetLegacyMethods(tok string) error {
	if err := b.writable(); err != nil {
		return err
	}
	b.legacy = tok
	return nil
}

// AddInit appends a fragment to run in the module init function.
func (b *Builder) AddInit(fragment string) error {
	if err := b.writable(); err != nil {
		return err
	}
	b.inits = append(b.inits, fragment)
	return nil
}

// NextInitIndex is the table position the next init fragment will take.
// Handlers derive unique local variable names from it.
func (b *Builder) NextInitIndex() int { return len(b.inits) }

// Finalize renders the module skeleton and locks the Builder.
func (b *Builder) Finalize() (string, error) {
	if err := b.writable(); err != nil {
		return "", err
	}
	out, err := renderSkeleton(b)
	if err != nil {
		return "", err
	}
	b.finalized = true
	return out, nil
}

func (b *Builder) writable() error {
	if b.finalized {
		return fmt.Errorf("%w: module %q was already finalized by @%s", domain.ErrTablesLocked, b.module, DirectiveInit)
	}
	return nil
}
