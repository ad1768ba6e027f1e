package loader

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/aretw0/hpyharness/internal/testutils"
	"github.com/aretw0/hpyharness/pkg/adapters/memory"
	"github.com/aretw0/hpyharness/pkg/domain"
)

// faultyHost lets a test replace Import to simulate misbehaving modules.
type faultyHost struct {
	*memory.Host
	importFn func(ctx context.Context, name string) (*domain.Module, error)
}

func (f *faultyHost) Import(ctx context.Context, name string) (*domain.Module, error) {
	return f.importFn(ctx, name)
}

type hostSnapshot struct {
	path    []string
	modules []string
}

func snapshot(h *memory.Host) hostSnapshot {
	return hostSnapshot{path: h.SearchPath(), modules: h.Modules().Names()}
}

func newHost() *memory.Host {
	return memory.NewHost(memory.WithSearchPath("/usr/lib/site-packages"))
}

func TestLoad_Success(t *testing.T) {
	host := newHost()
	before := snapshot(host)
	artifact := testutils.WriteArtifact(t, "mytest")

	mod, err := New(host).Load(context.Background(), "mytest", artifact)
	require.NoError(t, err)
	require.NotNil(t, mod)
	assert.Equal(t, "mytest", mod.Name)
	assert.Equal(t, artifact, mod.Spec.Origin)

	assert.Equal(t, before, snapshot(host), "host state must be restored")
}

func TestLoad_SameNameRepeatedly(t *testing.T) {
	host := newHost()
	l := New(host)
	ctx := context.Background()

	first, err := l.Load(ctx, "mytest", testutils.WriteArtifact(t, "mytest"))
	require.NoError(t, err)
	second, err := l.Load(ctx, "mytest", testutils.WriteArtifact(t, "mytest"))
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.Spec.Origin, second.Spec.Origin)
}

func TestLoad_NameCollision(t *testing.T) {
	host := newHost()
	occupant := &domain.Module{Name: "mytest"}
	require.NoError(t, host.Modules().Register(occupant))
	before := snapshot(host)

	mod, err := New(host).Load(context.Background(), "mytest", testutils.WriteArtifact(t, "mytest"))
	assert.Nil(t, mod)
	require.ErrorIs(t, err, domain.ErrModuleExists)

	still, ok := host.LookupModule("mytest")
	require.True(t, ok)
	assert.Same(t, occupant, still, "existing module must not be replaced")
	assert.Equal(t, before, snapshot(host))
}

func TestLoad_CollisionWhileClaimHeld(t *testing.T) {
	host := newHost()
	l := New(host)

	c, err := l.Acquire("mytest", filepath.Dir(testutils.WriteArtifact(t, "mytest")))
	require.NoError(t, err)
	_, err = c.Load(context.Background())
	require.NoError(t, err)

	_, err = l.Load(context.Background(), "mytest", testutils.WriteArtifact(t, "mytest"))
	require.ErrorIs(t, err, domain.ErrModuleExists)

	require.NoError(t, c.Release())
	_, ok := host.LookupModule("mytest")
	assert.False(t, ok)
}

func TestLoad_ImportFailureRollsBack(t *testing.T) {
	host := newHost()
	before := snapshot(host)
	dir := t.TempDir()

	_, err := New(host).Load(context.Background(), "absent", filepath.Join(dir, "absent.so"))
	require.ErrorIs(t, err, domain.ErrModuleNotFound)
	assert.NotErrorIs(t, err, domain.ErrLoadInvariant)
	assert.Equal(t, before, snapshot(host))
}

func TestLoad_ModuleMismatch(t *testing.T) {
	host := newHost()
	before := snapshot(host)
	fh := &faultyHost{Host: host}
	fh.importFn = func(ctx context.Context, name string) (*domain.Module, error) {
		require.NoError(t, host.Modules().Register(&domain.Module{Name: name}))
		return &domain.Module{Name: name}, nil
	}

	_, err := New(fh).Load(context.Background(), "mytest", "/build/mytest.so")
	require.ErrorIs(t, err, domain.ErrModuleMismatch)
	assert.Equal(t, before, snapshot(host))
}

func TestLoad_SearchPathMutatedByModule(t *testing.T) {
	host := newHost()
	fh := &faultyHost{Host: host}
	fh.importFn = func(ctx context.Context, name string) (*domain.Module, error) {
		host.PushPath("/injected/by/module")
		mod := &domain.Module{Name: name}
		require.NoError(t, host.Modules().Register(mod))
		return mod, nil
	}

	mod, err := New(fh).Load(context.Background(), "mytest", "/build/mytest.so")
	assert.Nil(t, mod)
	require.ErrorIs(t, err, domain.ErrLoadInvariant)

	var inv *domain.InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "mytest", inv.Module)
	assert.Contains(t, inv.Detail, "/injected/by/module")

	assert.Equal(t, []string{"/injected/by/module", "/usr/lib/site-packages"}, host.SearchPath(),
		"the harness removes only its own entry")
	_, ok := host.LookupModule("mytest")
	assert.False(t, ok)
}

func TestLoad_SearchPathPoppedByModule(t *testing.T) {
	host := newHost()
	fh := &faultyHost{Host: host}
	fh.importFn = func(ctx context.Context, name string) (*domain.Module, error) {
		_, _ = host.PopPath()
		_, _ = host.PopPath()
		return nil, errors.New("module init failed")
	}

	_, err := New(fh).Load(context.Background(), "mytest", "/build/mytest.so")
	require.ErrorIs(t, err, domain.ErrLoadInvariant)
	assert.ErrorContains(t, err, "module init failed")
	assert.Contains(t, err.Error(), "<empty>")
}

func TestLoad_PanicDuringImportStillReleases(t *testing.T) {
	host := newHost()
	before := snapshot(host)
	fh := &faultyHost{Host: host}
	fh.importFn = func(ctx context.Context, name string) (*domain.Module, error) {
		require.NoError(t, host.Modules().Register(&domain.Module{Name: name}))
		panic("segfault in module init")
	}

	assert.Panics(t, func() {
		_, _ = New(fh).Load(context.Background(), "mytest", "/build/mytest.so")
	})
	assert.Equal(t, before, snapshot(host))
}

func TestClaim_Lifecycle(t *testing.T) {
	host := newHost()
	before := snapshot(host)
	l := New(host)
	dir := filepath.Dir(testutils.WriteArtifact(t, "mytest"))

	c, err := l.Acquire("mytest", dir)
	require.NoError(t, err)
	assert.Equal(t, Claimed, c.State())
	assert.Equal(t, "mytest", c.Name())

	mod, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Loaded, c.State())
	assert.Equal(t, dir, host.SearchPath()[0])
	registered, ok := host.LookupModule("mytest")
	require.True(t, ok)
	assert.Same(t, mod, registered)

	_, err = c.Load(context.Background())
	assert.Error(t, err, "a claim loads at most once")

	require.NoError(t, c.Release())
	assert.Equal(t, Released, c.State())
	require.NoError(t, c.Release(), "release is idempotent")
	assert.Equal(t, before, snapshot(host))
}

func TestClaim_ReleaseWithoutLoad(t *testing.T) {
	host := newHost()
	before := snapshot(host)

	c, err := New(host).Acquire("mytest", "/never/pushed")
	require.NoError(t, err)
	require.NoError(t, c.Release())
	assert.Equal(t, before, snapshot(host))
}

func TestLoad_Hooks(t *testing.T) {
	var events []*domain.LoadEvent
	l := New(newHost(), WithLifecycleHooks(domain.LifecycleHooks{
		OnLoad: func(_ context.Context, e *domain.LoadEvent) { events = append(events, e) },
	}))

	artifact := testutils.WriteArtifact(t, "mytest")
	_, err := l.Load(context.Background(), "mytest", artifact)
	require.NoError(t, err)
	_, err = l.Load(context.Background(), "", artifact)
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.NoError(t, events[0].Err)
	assert.Equal(t, artifact, events[0].Path)
	assert.Error(t, events[1].Err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "released", Released.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestLoad_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	l := New(newHost(), WithTracerProvider(tp))

	_, err := l.Load(context.Background(), "mytest", testutils.WriteArtifact(t, "mytest"))
	require.NoError(t, err)
	_, err = l.Load(context.Background(), "missing", filepath.Join(t.TempDir(), "missing.so"))
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "loader.Load", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
