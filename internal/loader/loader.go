// Package loader loads built artifacts into a host under a strict
// single-owner guarantee: the module name must be free before the load and
// is released, together with the search path entry, before Load returns.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/ports"
)

// State is the lifecycle position of a Claim.
type State int

const (
	Idle State = iota
	Claimed
	Loaded
	Released
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Claimed:
		return "claimed"
	case Loaded:
		return "loaded"
	case Released:
		return "released"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Loader loads artifacts into a host.
type Loader struct {
	host   ports.Host
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures the Loader.
type Option func(*Loader)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Loader) {
		l.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTracerProvider sets where spans are sent (default: the global provider).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Loader) {
		if tp != nil {
			l.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/aretw0/hpyharness/internal/loader"

// New creates a Loader for host.
func New(host ports.Host, opts ...Option) *Loader {
	l := &Loader{
		host:   host,
		logger: logging.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load imports the artifact at path under name and returns the live module.
// Whatever happens, the host's module table and search path are left as
// they were before the call.
func (l *Loader) Load(ctx context.Context, name, path string) (mod *domain.Module, err error) {
	ctx, span := l.tracer.Start(ctx, "loader.Load", trace.WithAttributes(
		attribute.String("hpy.module", name),
		attribute.String("hpy.artifact", path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if l.hooks.OnLoad != nil {
			l.hooks.OnLoad(ctx, &domain.LoadEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventLoad, Module: name, Err: err},
				Path:      path,
			})
		}
	}()

	c, err := l.Acquire(name, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := c.Release(); rerr != nil {
			mod = nil
			err = errors.Join(err, rerr)
		}
	}()

	mod, err = c.Load(ctx)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("module loaded", "module", name, "origin", mod.Spec.Origin)
	return mod, nil
}

// Acquire claims name for a load from dir. It fails if the name is already
// present in the host's module table.
func (l *Loader) Acquire(name, dir string) (*Claim, error) {
	if name == "" {
		return nil, errors.New("acquire: module name is required")
	}
	if _, ok := l.host.LookupModule(name); ok {
		return nil, fmt.Errorf("test module %q: %w", name, domain.ErrModuleExists)
	}
	return &Claim{host: l.host, logger: l.logger, name: name, dir: dir, state: Claimed}, nil
}

// Claim is a scoped hold on a module name and one search path entry.
// Release must be called once the claim is no longer needed; it is safe to
// call more than once.
type Claim struct {
	host   ports.Host
	logger *slog.Logger
	name   string
	dir    string
	state  State
	pushed bool
}

// State returns the claim's lifecycle position.
func (c *Claim) State() State { return c.state }

// Name returns the claimed module name.
func (c *Claim) Name() string { return c.name }

// Load pushes the claim's directory onto the search path and imports the module.
func (c *Claim) Load(ctx context.Context) (*domain.Module, error) {
	if c.state != Claimed {
		return nil, fmt.Errorf("load %q: claim is %s, want %s", c.name, c.state, Claimed)
	}

	c.host.InvalidateCaches()
	c.host.PushPath(c.dir)
	c.pushed = true
	c.state = Loaded

	mod, err := c.host.Import(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("load %q from %s: %w", c.name, c.dir, err)
	}
	if registered, ok := c.host.LookupModule(c.name); !ok || registered != mod {
		return nil, fmt.Errorf("load %q: %w", c.name, domain.ErrModuleMismatch)
	}
	return mod, nil
}

// Release removes the search path entry pushed by Load and drops the
// module name from the host table.
//
// If the front of the search path is no longer the claim's entry, the
// loaded code changed shared state behind the harness's back; Release still
// removes its own entry and the module, and reports an InvariantError.
func (c *Claim) Release() error {
	if c.state == Released {
		return nil
	}
	defer func() {
		c.host.RemoveModule(c.name)
		c.state = Released
	}()

	if !c.pushed {
		return nil
	}
	c.pushed = false

	path := c.host.SearchPath()
	if len(path) > 0 && path[0] == c.dir {
		if _, err := c.host.PopPath(); err != nil {
			return &domain.InvariantError{Module: c.name, Detail: err.Error()}
		}
		return nil
	}

	removed := c.host.RemovePath(c.dir)
	front := "<empty>"
	if len(path) > 0 {
		front = path[0]
	}
	c.logger.Error("search path mutated during load", "module", c.name, "expected", c.dir, "front", front, "recovered", removed)
	return &domain.InvariantError{
		Module: c.name,
		Detail: fmt.Sprintf("search path front is %q, expected %q", front, c.dir),
	}
}
