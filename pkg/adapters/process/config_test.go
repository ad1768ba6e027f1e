package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadToolchains(t *testing.T) {
	dir := t.TempDir()

	t.Run("Missing File", func(t *testing.T) {
		presets, err := LoadToolchains(filepath.Join(dir, "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, presets)
	})

	t.Run("YAML", func(t *testing.T) {
		path := filepath.Join(dir, "toolchains.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
toolchains:
  - name: clang
    command: clang
    args: ["-fcolor-diagnostics"]
    module_suffix: .cpython-312-x86_64-linux-gnu.so
    env:
      CCACHE_DISABLE: "1"
  - command: unnamed-is-skipped
`), 0o644))

		presets, err := LoadToolchains(path)
		require.NoError(t, err)
		require.Len(t, presets, 1)
		clang := presets["clang"]
		assert.Equal(t, "clang", clang.Command)
		assert.Equal(t, []string{"-fcolor-diagnostics"}, clang.Args)
		assert.Equal(t, "1", clang.Environment["CCACHE_DISABLE"])

		tc := NewToolchain(clang.Options()...)
		assert.Equal(t, "clang", tc.command)
		assert.Equal(t, ".cpython-312-x86_64-linux-gnu.so", tc.moduleSuffix)
		assert.Equal(t, []string{"CCACHE_DISABLE=1"}, tc.envPairs())
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "toolchains.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"toolchains":[{"name":"gcc","command":"gcc-13"}]}`), 0o644))
		presets, err := LoadToolchains(path)
		require.NoError(t, err)
		assert.Equal(t, "gcc-13", presets["gcc"].Command)
	})

	t.Run("Invalid", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("toolchains: [unterminated"), 0o644))
		_, err := LoadToolchains(path)
		assert.Error(t, err)
	})
}
