package ports

import (
	"context"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// Extension describes one module to compile: all sources form a single
// compilation unit set linked into one artifact.
type Extension struct {
	Name        string
	Sources     []string
	IncludeDirs []string
	Defines     []string
	CompileArgs []string
	LinkArgs    []string
	ABI         domain.ABI
}

// BuildOptions are the recognised toolchain options.
type BuildOptions struct {
	// Debug keeps assertions enabled (no NDEBUG).
	Debug bool
	// Force rebuilds even if outputs look current.
	Force bool
	// OutputDir receives the artifacts.
	OutputDir string
	// TempDir receives intermediate files.
	TempDir string
	// Verbose echoes toolchain commands and output.
	Verbose bool
}

// Toolchain compiles and links an extension.
// It returns every file it produced; callers pick the one they need.
// A failed build returns a *domain.BuildError and leaves all files in place.
type Toolchain interface {
	Build(ctx context.Context, ext Extension, opts BuildOptions) ([]string, error)
}
