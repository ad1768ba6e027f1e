package domain

import (
	"errors"
	"fmt"
)

// Authoring errors. They are raised while expanding a template and always
// abort the expansion.
var (
	// ErrUnknownDirective is returned when a directive has no registered handler.
	ErrUnknownDirective = errors.New("unknown directive")

	// ErrMalformedDirective is returned for directive lines with broken parenthesization.
	ErrMalformedDirective = errors.New("malformed directive")

	// ErrDirectiveArity is returned when a directive receives the wrong number of arguments.
	ErrDirectiveArity = errors.New("wrong number of directive arguments")

	// ErrTablesLocked is returned when a directive mutates the registration
	// tables after the terminal directive finalized them.
	ErrTablesLocked = errors.New("registration tables are locked")
)

// Namespace and build errors.
var (
	// ErrModuleExists is returned when the target module name is already
	// present in the host module registry.
	ErrModuleExists = errors.New("module already present in registry")

	// ErrBuildFailed is the sentinel wrapped by BuildError.
	ErrBuildFailed = errors.New("build failed")

	// ErrArtifactNotFound is returned when the toolchain reported no output of the expected kind.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrAmbiguousArtifact is returned when more than one output matches the expected kind.
	ErrAmbiguousArtifact = errors.New("ambiguous artifact")

	// ErrModuleNotFound is returned by hosts when no search path entry provides the module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrModuleMismatch is returned when the object returned by an import is
	// not the one the registry holds under the same name.
	ErrModuleMismatch = errors.New("loaded module does not match registry entry")

	// ErrLoadInvariant is the sentinel wrapped by InvariantError.
	ErrLoadInvariant = errors.New("load invariant violated")
)

// BuildError carries the toolchain diagnostics of a failed build.
type BuildError struct {
	Module      string
	Command     []string
	Diagnostics string
	Err         error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build %s: %v", e.Module, e.Err)
	if e.Diagnostics != "" {
		msg += "\n" + e.Diagnostics
	}
	return msg
}

// Unwrap lets errors.Is match both ErrBuildFailed and the underlying cause.
func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailed}
	}
	return []error{ErrBuildFailed, e.Err}
}

// InvariantError reports that shared host state was mutated between claim
// and release. It points at misbehaving loaded code rather than at the caller.
type InvariantError struct {
	Module string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("module %q: %v: %s", e.Module, ErrLoadInvariant, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrLoadInvariant
}
