package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/ports"
)

const (
	// DefaultCompiler is used when no compiler is configured.
	DefaultCompiler = "cc"
	// DefaultModuleSuffix is the file suffix of native (cpython ABI) modules.
	DefaultModuleSuffix = ".so"
	// UniversalSuffix is the file suffix of universal binaries loaded through a stub.
	UniversalSuffix = ".hpy.so"
)

// Toolchain implements ports.Toolchain by running a C compiler driver once
// per build, compiling and linking all sources into a shared object.
type Toolchain struct {
	command      string
	args         []string
	moduleSuffix string
	develInclude string
	develSources []string
	env          map[string]string
	logger       *slog.Logger
}

// ToolchainOption configures the toolchain.
type ToolchainOption func(*Toolchain)

// WithCompiler sets the compiler driver and extra leading arguments.
func WithCompiler(command string, args ...string) ToolchainOption {
	return func(t *Toolchain) {
		if command != "" {
			t.command = command
		}
		t.args = append(t.args, args...)
	}
}

// WithModuleSuffix sets the native module suffix (e.g. ".cpython-312-x86_64-linux-gnu.so").
func WithModuleSuffix(suffix string) ToolchainOption {
	return func(t *Toolchain) {
		if suffix != "" {
			t.moduleSuffix = suffix
		}
	}
}

// WithDevel points at the HPy development tree: its include directory and
// the runtime helper sources compiled into every module.
func WithDevel(includeDir string, sources ...string) ToolchainOption {
	return func(t *Toolchain) {
		t.develInclude = includeDir
		t.develSources = append(t.develSources, sources...)
	}
}

// WithEnv adds environment variables for the compiler process.
// The harness process environment is never modified.
func WithEnv(env map[string]string) ToolchainOption {
	return func(t *Toolchain) {
		for k, v := range env {
			t.env[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ToolchainOption {
	return func(t *Toolchain) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewToolchain creates a compiler-driver toolchain.
func NewToolchain(opts ...ToolchainOption) *Toolchain {
	t := &Toolchain{
		command:      DefaultCompiler,
		moduleSuffix: DefaultModuleSuffix,
		env:          make(map[string]string),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ ports.Toolchain = (*Toolchain)(nil)

// Build compiles ext. Universal and debug builds also write a stub loader
// next to the binary; both files are reported.
func (t *Toolchain) Build(ctx context.Context, ext ports.Extension, opts ports.BuildOptions) ([]string, error) {
	if ext.Name == "" {
		return nil, errors.New("build: extension has no name")
	}
	if len(ext.Sources) == 0 {
		return nil, fmt.Errorf("build %s: no sources", ext.Name)
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("build %s: no output directory", ext.Name)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("build %s: %w", ext.Name, err)
	}

	kind := ext.ABI.ArtifactKind()
	binary := filepath.Join(opts.OutputDir, ext.Name+t.moduleSuffix)
	stub := ""
	if kind == domain.ArtifactStub {
		binary = filepath.Join(opts.OutputDir, ext.Name+UniversalSuffix)
		stub = filepath.Join(opts.OutputDir, ext.Name+".py")
	}

	if opts.Force {
		for _, p := range []string{binary, stub} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("build %s: remove stale %s: %w", ext.Name, p, err)
			}
		}
	}

	argv := t.CommandLine(ext, opts, binary)
	cmd := exec.CommandContext(ctx, t.command, argv...)
	cmd.Dir = opts.TempDir
	if cmd.Dir == "" {
		cmd.Dir = opts.OutputDir
	}
	cmd.Env = append(cmd.Environ(), t.envPairs()...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	level := slog.LevelDebug
	if opts.Verbose {
		level = slog.LevelInfo
	}
	t.logger.Log(ctx, level, "invoking toolchain", "module", ext.Name, "cmd", t.command, "args", argv)

	if err := cmd.Run(); err != nil {
		return nil, &domain.BuildError{
			Module:      ext.Name,
			Command:     append([]string{t.command}, argv...),
			Diagnostics: strings.TrimSpace(stderr.String() + stdout.String()),
			Err:         err,
		}
	}
	if opts.Verbose && stderr.Len() > 0 {
		t.logger.Info("toolchain output", "module", ext.Name, "stderr", stderr.String())
	}

	outputs := []string{binary}
	if stub != "" {
		if err := writeStub(stub, ext.Name, filepath.Base(binary), ext.ABI); err != nil {
			return nil, fmt.Errorf("build %s: %w", ext.Name, err)
		}
		outputs = append(outputs, stub)
	}
	return outputs, nil
}

// Command returns the compiler driver.
func (t *Toolchain) Command() string { return t.command }

// CommandLine returns the compiler arguments for ext, without the driver itself.
func (t *Toolchain) CommandLine(ext ports.Extension, opts ports.BuildOptions, output string) []string {
	argv := append([]string(nil), t.args...)
	argv = append(argv, "-shared", "-fPIC")
	argv = append(argv, ext.CompileArgs...)
	if !opts.Debug {
		argv = append(argv, "-DNDEBUG")
	}
	for _, d := range ext.Defines {
		argv = append(argv, "-D"+d)
	}
	for _, dir := range ext.IncludeDirs {
		argv = append(argv, "-I"+dir)
	}
	if t.develInclude != "" {
		argv = append(argv, "-I"+t.develInclude)
	}
	argv = append(argv, ext.Sources...)
	argv = append(argv, t.develSources...)
	argv = append(argv, "-o", output)
	argv = append(argv, ext.LinkArgs...)
	return argv
}

func (t *Toolchain) envPairs() []string {
	keys := make([]string, 0, len(t.env))
	for k := range t.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+t.env[k])
	}
	return pairs
}

var stubTmpl = template.Must(template.New("stub").Parse(`{{.Marker}}{{.Binary}}
def __bootstrap__():
    from sys import modules
    from os.path import dirname, join
    from hpy.universal import load
    ext_filepath = join(dirname(__file__), {{printf "%q" .Binary}})
    m = load({{printf "%q" .Name}}, ext_filepath, debug={{.Debug}})
    m.__file__ = ext_filepath
    m.__loader__ = __loader__
    m.__name__ = __name__
    m.__package__ = __package__
    m.__spec__ = __spec__
    m.__spec__.origin = ext_filepath
    modules[__name__] = m

__bootstrap__()
`))

func writeStub(path, name, binary string, abi domain.ABI) error {
	debug := "False"
	if abi == domain.ABIDebug {
		debug = "True"
	}
	var buf bytes.Buffer
	err := stubTmpl.Execute(&buf, map[string]string{
		"Marker": domain.StubMarker,
		"Binary": binary,
		"Name":   name,
		"Debug":  debug,
	})
	if err != nil {
		return fmt.Errorf("render stub: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
