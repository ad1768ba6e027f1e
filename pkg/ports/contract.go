package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHostContract runs a suite of tests to verify that a Host implementation
// adheres to the defined interface contract.
//
// artifactDir must contain a loadable module named moduleName that the host
// can find once artifactDir is on its search path.
func RunHostContract(t *testing.T, host Host, artifactDir, moduleName string) {
	ctx := context.Background()

	t.Run("Push and Pop", func(t *testing.T) {
		before := host.SearchPath()
		host.PushPath("/contract/a")
		host.PushPath("/contract/b")

		path := host.SearchPath()
		require.GreaterOrEqual(t, len(path), 2)
		assert.Equal(t, "/contract/b", path[0])
		assert.Equal(t, "/contract/a", path[1])

		top, err := host.PopPath()
		require.NoError(t, err)
		assert.Equal(t, "/contract/b", top)
		assert.True(t, host.RemovePath("/contract/a"))
		assert.False(t, host.RemovePath("/contract/a"))
		assert.Equal(t, before, host.SearchPath())
	})

	t.Run("SearchPath returns a snapshot", func(t *testing.T) {
		host.PushPath("/contract/snapshot")
		snap := host.SearchPath()
		snap[0] = "/mutated"
		assert.Equal(t, "/contract/snapshot", host.SearchPath()[0])
		_, err := host.PopPath()
		require.NoError(t, err)
	})

	t.Run("Import missing module", func(t *testing.T) {
		_, err := host.Import(ctx, "contract_missing_module")
		assert.Error(t, err)
		_, ok := host.LookupModule("contract_missing_module")
		assert.False(t, ok)
	})

	t.Run("Import registers module", func(t *testing.T) {
		host.InvalidateCaches()
		host.PushPath(artifactDir)
		defer func() {
			_, _ = host.PopPath()
			host.RemoveModule(moduleName)
		}()

		mod, err := host.Import(ctx, moduleName)
		require.NoError(t, err)
		require.NotNil(t, mod)
		assert.Equal(t, moduleName, mod.Name)

		registered, ok := host.LookupModule(moduleName)
		require.True(t, ok)
		assert.Same(t, mod, registered)
	})

	t.Run("RemoveModule is idempotent", func(t *testing.T) {
		host.RemoveModule(moduleName)
		host.RemoveModule(moduleName)
		_, ok := host.LookupModule(moduleName)
		assert.False(t, ok)
	})
}
