package ports

import (
	"context"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// ModuleTable is the host's process-wide table of loaded modules.
type ModuleTable interface {
	// LookupModule returns the module registered under name, if any.
	LookupModule(name string) (*domain.Module, bool)
	// RemoveModule drops name from the table. Missing names are ignored.
	RemoveModule(name string)
}

// SearchPath is the host's ordered list of directories searched on import.
type SearchPath interface {
	// SearchPath returns a snapshot, front entry first.
	SearchPath() []string
	// PushPath inserts dir at the front.
	PushPath(dir string)
	// PopPath removes and returns the front entry.
	PopPath() (string, error)
	// RemovePath removes the first occurrence of dir and reports whether it was present.
	RemovePath(dir string) bool
}

// Host is the runtime that modules are loaded into.
type Host interface {
	ModuleTable
	SearchPath

	// InvalidateCaches forgets negative lookups so newly written artifacts are found.
	InvalidateCaches()

	// Import loads a module by name through the search path and registers it.
	Import(ctx context.Context, name string) (*domain.Module, error)
}

// CapabilityReporter is implemented by hosts that can describe themselves.
type CapabilityReporter interface {
	Capabilities() domain.Capabilities
}
