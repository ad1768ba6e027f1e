package hpyharness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/hpyharness/internal/build"
	"github.com/aretw0/hpyharness/internal/config"
	"github.com/aretw0/hpyharness/internal/loader"
	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/adapters/memory"
	"github.com/aretw0/hpyharness/pkg/adapters/process"
	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/lock"
	"github.com/aretw0/hpyharness/pkg/ports"
	"github.com/aretw0/hpyharness/pkg/template"
)

// Version is the harness release.
const Version = "0.4.0"

const hostLockKey = "host"

// DefaultModuleName is used by MakeModule when no name is given.
const DefaultModuleName = "mytest"

// Harness is the high-level entry point: it expands templates, builds them
// with the configured toolchain and loads the results into a host.
type Harness struct {
	cfg       config.Config
	toolchain ports.Toolchain
	host      ports.Host
	handlers  map[string]template.Handler
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	workDir   string
	locker    ports.DistributedLocker

	buildLocks *lock.Manager
	loadLocks  *lock.Manager

	expander *template.Expander
	builder  *build.Orchestrator
	loader   *loader.Loader
}

// Option defines a functional option for configuring the Harness.
type Option func(*Harness)

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(h *Harness) {
		h.cfg = cfg
	}
}

// WithToolchain injects a toolchain, bypassing the compiler configured in Config.
func WithToolchain(tc ports.Toolchain) Option {
	return func(h *Harness) {
		h.toolchain = tc
	}
}

// WithHost sets the host modules are loaded into (default: an in-memory host).
func WithHost(host ports.Host) Option {
	return func(h *Harness) {
		h.host = host
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks for expansion, builds and loads.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(h *Harness) {
		h.hooks = h.hooks.Merge(hooks)
	}
}

// WithHandler registers an extra directive handler, or overrides a built-in one.
func WithHandler(name string, handler template.Handler) Option {
	return func(h *Harness) {
		if h.handlers == nil {
			h.handlers = make(map[string]template.Handler)
		}
		h.handlers[name] = handler
	}
}

// WithWorkDir sets the directory that receives generated sources and artifacts.
// Without it every build gets a fresh temporary directory.
func WithWorkDir(dir string) Option {
	return func(h *Harness) {
		h.workDir = dir
	}
}

// WithLocker serializes builds of one module across processes sharing an
// output directory.
func WithLocker(l ports.DistributedLocker) Option {
	return func(h *Harness) {
		h.locker = l
	}
}

// New creates a Harness. Without options it uses config.Default, the "cc"
// compiler driver and an in-memory host.
func New(opts ...Option) (*Harness, error) {
	h := &Harness{cfg: config.Default()}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.cfg.Normalize(); err != nil {
		return nil, err
	}
	if err := h.cfg.Validate(); err != nil {
		return nil, err
	}

	if h.logger == nil {
		h.logger = logging.NewNop()
	}
	if h.toolchain == nil {
		tc, err := NewToolchain(h.cfg, h.logger)
		if err != nil {
			return nil, err
		}
		h.toolchain = tc
	}
	if h.host == nil {
		h.host = memory.NewHost()
	}

	expOpts := []template.Option{template.WithLogger(h.logger)}
	for name, handler := range h.handlers {
		expOpts = append(expOpts, template.WithHandler(name, handler))
	}
	h.expander = template.New(expOpts...)

	h.builder = build.New(h.toolchain,
		build.WithExpander(h.expander),
		build.WithABI(h.cfg.ABI),
		build.WithIncludeDirs(h.cfg.ExtraIncludeDirs...),
		build.WithBuildOptions(ports.BuildOptions{
			Debug:     h.cfg.Debug,
			Force:     h.cfg.Force,
			OutputDir: h.cfg.OutputDir,
			Verbose:   h.cfg.Verbose,
		}),
		build.WithLifecycleHooks(h.hooks),
		build.WithLogger(h.logger),
	)
	lockOpts := []lock.Option{lock.WithLogger(h.logger)}
	if h.locker != nil {
		lockOpts = append(lockOpts, lock.WithLocker(h.locker), lock.WithTTL(h.cfg.Redis.LockTTL))
	}
	h.buildLocks = lock.NewManager(lockOpts...)
	h.loadLocks = lock.NewManager()
	h.loader = loader.New(h.host,
		loader.WithLifecycleHooks(h.hooks),
		loader.WithLogger(h.logger),
	)
	return h, nil
}

// NewToolchain builds the compiler-driver toolchain described by cfg.
// A named preset from cfg.ToolchainsFile takes precedence over cfg.CC.
func NewToolchain(cfg config.Config, logger *slog.Logger) (*process.Toolchain, error) {
	opts := []process.ToolchainOption{
		process.WithCompiler(cfg.CC),
		process.WithModuleSuffix(cfg.ModuleSuffix),
		process.WithDevel(cfg.Devel.IncludeDir, cfg.Devel.RuntimeSources()...),
		process.WithEnv(cfg.Env),
		process.WithLogger(logger),
	}
	if cfg.Toolchain != "" {
		if cfg.ToolchainsFile == "" {
			return nil, fmt.Errorf("toolchain %q requested but no toolchains file configured", cfg.Toolchain)
		}
		presets, err := process.LoadToolchains(cfg.ToolchainsFile)
		if err != nil {
			return nil, err
		}
		preset, ok := presets[cfg.Toolchain]
		if !ok {
			return nil, fmt.Errorf("toolchain %q not found in %s", cfg.Toolchain, cfg.ToolchainsFile)
		}
		opts = append(opts, preset.Options()...)
	}
	return process.NewToolchain(opts...), nil
}

// Config returns the effective configuration.
func (h *Harness) Config() config.Config { return h.cfg }

// Host returns the host modules are loaded into.
func (h *Harness) Host() ports.Host { return h.host }

// Expand turns a template into complete C source for module name.
func (h *Harness) Expand(src, name string) (string, error) {
	res, err := h.expander.ExpandDetailed(src, name)
	if h.hooks.OnExpand != nil {
		h.hooks.OnExpand(context.Background(), &domain.ExpandEvent{
			EventBase:  domain.EventBase{Timestamp: time.Now(), Type: domain.EventExpand, Module: name, Err: err},
			Directives: res.Directives,
			Finalized:  res.Finalized,
		})
	}
	if err != nil {
		return "", err
	}
	return res.Source, nil
}

// CompileModule builds main (and extra templates compiled into the same
// artifact) and returns the path of the loadable artifact.
func (h *Harness) CompileModule(ctx context.Context, main, name string, extra ...string) (string, error) {
	dir, err := h.buildDir()
	if err != nil {
		return "", err
	}
	var artifact string
	err = h.buildLocks.WithLock(ctx, filepath.Join(dir, name), func(ctx context.Context) error {
		var err error
		artifact, err = h.builder.Compile(ctx, build.Request{
			Main:    main,
			Extra:   extra,
			Name:    name,
			WorkDir: dir,
		})
		return err
	})
	return artifact, err
}

// LoadModule loads the artifact at path as module name. The host's module
// table and search path are unchanged when it returns. Loads into one
// Harness are serialized since the search path is shared.
func (h *Harness) LoadModule(ctx context.Context, name, path string) (*domain.Module, error) {
	var mod *domain.Module
	err := h.loadLocks.WithLock(ctx, hostLockKey, func(ctx context.Context) error {
		var err error
		mod, err = h.loader.Load(ctx, name, path)
		return err
	})
	return mod, err
}

// MakeModule compiles and loads a template in one step. An empty name
// selects DefaultModuleName.
func (h *Harness) MakeModule(ctx context.Context, main, name string, extra ...string) (*domain.Module, error) {
	if name == "" {
		name = DefaultModuleName
	}
	artifact, err := h.CompileModule(ctx, main, name, extra...)
	if err != nil {
		return nil, err
	}
	return h.LoadModule(ctx, name, artifact)
}

// Supports reports what the host can do. Hosts that cannot describe
// themselves are assumed to support ordinary imports only.
func (h *Harness) Supports() domain.Capabilities {
	if r, ok := h.host.(ports.CapabilityReporter); ok {
		return r.Capabilities()
	}
	return domain.Capabilities{OrdinaryImports: true}
}

func (h *Harness) buildDir() (string, error) {
	if h.workDir != "" {
		if err := os.MkdirAll(h.workDir, 0o755); err != nil {
			return "", fmt.Errorf("create work dir: %w", err)
		}
		return h.workDir, nil
	}
	dir, err := os.MkdirTemp("", "hpyharness-")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}
