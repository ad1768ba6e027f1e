package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/ports"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHost_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "contract_mod.so"), "\x7fELF")
	ports.RunHostContract(t, NewHost(WithSearchPath("/usr/lib/site")), dir, "contract_mod")
}

func TestHost_ImportNativeBinary(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "mytest.cpython-312-x86_64-linux-gnu.so")
	writeFile(t, bin, "binary")

	h := NewHost(WithSearchPath(dir))
	mod, err := h.Import(context.Background(), "mytest")
	require.NoError(t, err)

	assert.Equal(t, domain.ModuleSpec{Name: "mytest", Origin: bin}, mod.Spec)
	art, ok := mod.Handle.(Artifact)
	require.True(t, ok)
	assert.Equal(t, bin, art.Path)
	assert.Equal(t, int64(len("binary")), art.Size)
	assert.Len(t, art.SHA256, 64)
}

func TestHost_ImportFollowsStub(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mytest.hpy.so"), "universal")
	writeFile(t, filepath.Join(dir, "mytest.py"), "# generated\n"+domain.StubMarker+"mytest.hpy.so\n")

	mod, err := NewHost(WithSearchPath(dir)).Import(context.Background(), "mytest")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mytest.py"), mod.Spec.Origin)
	assert.Equal(t, filepath.Join(dir, "mytest.hpy.so"), mod.Handle.(Artifact).Path)
}

func TestHost_ImportRejectsForeignPy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mytest.py"), "print('hello')\n")

	_, err := NewHost(WithSearchPath(dir)).Import(context.Background(), "mytest")
	assert.ErrorContains(t, err, "not a stub loader")
}

func TestHost_SearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, filepath.Join(first, "dup.so"), "first")
	writeFile(t, filepath.Join(second, "dup.so"), "second")

	h := NewHost(WithSearchPath(second))
	h.PushPath(first)
	mod, err := h.Import(context.Background(), "dup")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(first, "dup.so"), mod.Spec.Origin)
}

func TestHost_NegativeCache(t *testing.T) {
	dir := t.TempDir()
	h := NewHost(WithSearchPath(dir))
	ctx := context.Background()

	_, err := h.Import(ctx, "late")
	require.ErrorIs(t, err, domain.ErrModuleNotFound)

	writeFile(t, filepath.Join(dir, "late.so"), "now here")
	_, err = h.Import(ctx, "late")
	assert.ErrorIs(t, err, domain.ErrModuleNotFound, "miss should be cached until invalidated")

	h.InvalidateCaches()
	mod, err := h.Import(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, "late", mod.Name)
}

func TestHost_ImportReturnsRegisteredModule(t *testing.T) {
	h := NewHost()
	existing := &domain.Module{Name: "already"}
	require.NoError(t, h.Modules().Register(existing))

	mod, err := h.Import(context.Background(), "already")
	require.NoError(t, err)
	assert.Same(t, existing, mod)
}

func TestHost_CustomOpener(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "custom.so"), "x")
	h := NewHost(WithSearchPath(dir), WithOpener(func(ctx context.Context, spec domain.ModuleSpec) (any, error) {
		return "opened:" + spec.Name, nil
	}))

	mod, err := h.Import(context.Background(), "custom")
	require.NoError(t, err)
	assert.Equal(t, "opened:custom", mod.Handle)
}

func TestHost_PopEmpty(t *testing.T) {
	_, err := NewHost().PopPath()
	assert.Error(t, err)
}

func TestHost_Capabilities(t *testing.T) {
	caps := NewHost().Capabilities()
	assert.False(t, caps.Refcounts)
	assert.True(t, caps.OrdinaryImports)
}
