// Package build turns templates into loadable artifacts.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/ports"
	"github.com/aretw0/hpyharness/pkg/template"
)

// Strict flags applied to every build: stop at the first error and treat
// every warning as one.
var (
	CompileArgs = []string{"-g", "-O0", "-Wfatal-errors", "-Werror"}
	LinkArgs    = []string{"-g"}
)

// Request describes one module build.
type Request struct {
	// Main is the template of the module itself.
	Main string
	// Extra templates are compiled into the same artifact, in order.
	Extra []string
	// Name is the module name.
	Name string
	// WorkDir receives the generated sources and, unless OutputDir is set, the artifacts.
	WorkDir string
}

// ExtraModuleName is the name an auxiliary template is expanded under.
func ExtraModuleName(i int) string {
	return fmt.Sprintf("extmod_%d", i)
}

// Orchestrator expands templates, writes them out and runs the toolchain.
type Orchestrator struct {
	toolchain   ports.Toolchain
	expander    *template.Expander
	includeDirs []string
	abi         domain.ABI
	opts        ports.BuildOptions
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithExpander sets the template expander (e.g. one with custom directives).
func WithExpander(e *template.Expander) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.expander = e
		}
	}
}

// WithIncludeDirs sets include directories searched before the toolchain's own.
func WithIncludeDirs(dirs ...string) Option {
	return func(o *Orchestrator) {
		o.includeDirs = append([]string(nil), dirs...)
	}
}

// WithABI selects the compatibility mode.
func WithABI(abi domain.ABI) Option {
	return func(o *Orchestrator) {
		o.abi = abi
	}
}

// WithBuildOptions sets the options handed to the toolchain.
func WithBuildOptions(opts ports.BuildOptions) Option {
	return func(o *Orchestrator) {
		o.opts = opts
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets where spans are sent (default: the global provider).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/aretw0/hpyharness/internal/build"

// New creates an Orchestrator for the given toolchain.
func New(tc ports.Toolchain, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		toolchain: tc,
		expander:  template.New(),
		abi:       domain.ABICPython,
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ABI returns the configured compatibility mode.
func (o *Orchestrator) ABI() domain.ABI { return o.abi }

// Compile expands and builds req and returns the absolute path of the
// loadable artifact. On failure nothing is cleaned up.
func (o *Orchestrator) Compile(ctx context.Context, req Request) (string, error) {
	if req.Name == "" {
		return "", fmt.Errorf("compile: module name is required")
	}
	if req.WorkDir == "" {
		return "", fmt.Errorf("compile %s: working directory is required", req.Name)
	}
	if !o.abi.Valid() {
		return "", fmt.Errorf("compile %s: unknown abi %q", req.Name, o.abi)
	}

	ctx, span := o.tracer.Start(ctx, "build.Compile", trace.WithAttributes(
		attribute.String("hpy.module", req.Name),
		attribute.String("hpy.abi", string(o.abi)),
	))
	defer span.End()

	artifact, sources, elapsed, err := o.compile(ctx, req)
	if o.hooks.OnBuild != nil {
		o.hooks.OnBuild(ctx, &domain.BuildEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventBuild, Module: req.Name, Err: err},
			ABI:       o.abi,
			Sources:   sources,
			Artifact:  artifact,
			Duration:  elapsed,
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("build failed", "module", req.Name, "err", err)
		return "", err
	}
	o.logger.Info("module built", "module", req.Name, "artifact", artifact, "duration", elapsed)
	return artifact, nil
}

func (o *Orchestrator) compile(ctx context.Context, req Request) (string, []string, time.Duration, error) {
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return "", nil, 0, fmt.Errorf("compile %s: %w", req.Name, err)
	}

	main, err := o.writeSource(ctx, req.WorkDir, req.Name, req.Main)
	if err != nil {
		return "", nil, 0, err
	}
	sources := []string{main}
	for i, src := range req.Extra {
		path, err := o.writeSource(ctx, req.WorkDir, ExtraModuleName(i), src)
		if err != nil {
			return "", sources, 0, err
		}
		sources = append(sources, path)
	}

	ext := ports.Extension{
		Name:        req.Name,
		Sources:     sources,
		IncludeDirs: o.includeDirs,
		Defines:     o.abi.Defines(),
		CompileArgs: append([]string(nil), CompileArgs...),
		LinkArgs:    append([]string(nil), LinkArgs...),
		ABI:         o.abi,
	}
	opts := o.opts
	if opts.OutputDir == "" {
		opts.OutputDir = req.WorkDir
	}
	if opts.TempDir == "" {
		opts.TempDir = req.WorkDir
	}

	start := time.Now()
	outputs, err := o.toolchain.Build(ctx, ext, opts)
	elapsed := time.Since(start)
	if err != nil {
		return "", sources, elapsed, err
	}

	artifact, err := SelectArtifact(outputs, o.abi.ArtifactKind())
	if err != nil {
		return "", sources, elapsed, fmt.Errorf("compile %s: %w", req.Name, err)
	}
	abs, err := filepath.Abs(artifact)
	if err != nil {
		return "", sources, elapsed, fmt.Errorf("compile %s: %w", req.Name, err)
	}
	return abs, sources, elapsed, nil
}

// writeSource expands one template and writes it as <dir>/<name>.c.
func (o *Orchestrator) writeSource(ctx context.Context, dir, name, src string) (string, error) {
	res, err := o.expander.ExpandDetailed(src, name)
	if o.hooks.OnExpand != nil {
		o.hooks.OnExpand(ctx, &domain.ExpandEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventExpand, Module: name, Err: err},
			Directives: res.Directives,
			Finalized:  res.Finalized,
		})
	}
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".c")
	if err := os.WriteFile(path, []byte(res.Source), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	o.logger.Debug("source written", "module", name, "path", path, "directives", res.Directives)
	return path, nil
}

// SelectArtifact picks the single output of the expected kind.
func SelectArtifact(outputs []string, kind domain.ArtifactKind) (string, error) {
	var matches []string
	for _, out := range outputs {
		if kind.Matches(out) {
			matches = append(matches, out)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: no %s artifact among toolchain outputs %v", domain.ErrArtifactNotFound, kind, outputs)
	default:
		return "", fmt.Errorf("%w: %d %s artifacts among toolchain outputs %v", domain.ErrAmbiguousArtifact, len(matches), kind, outputs)
	}
}
