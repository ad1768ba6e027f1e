package domain

// ModuleSpec describes where a host located a module.
type ModuleSpec struct {
	Name   string `json:"name" yaml:"name"`
	Origin string `json:"origin" yaml:"origin"`
}

// Module is a live module handle returned by a host import.
// Two handles refer to the same module only if they are the same pointer.
type Module struct {
	Name string
	Spec ModuleSpec
	// Handle is the host-specific payload (a library handle, a digest, ...).
	Handle any
}

// Capabilities describes what the host runtime supports.
type Capabilities struct {
	// Refcounts is true when the host exposes reference counts.
	Refcounts bool `json:"refcounts"`
	// OrdinaryImports is true when loads go through the host's standard import path.
	OrdinaryImports bool `json:"ordinary_imports"`
	// Executable is true when the host can be relaunched as a subprocess.
	Executable bool `json:"executable"`
}
