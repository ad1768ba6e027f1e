package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/hpyharness/pkg/domain"
	"github.com/aretw0/hpyharness/pkg/ports"
)

// FakeToolchain records build requests and writes placeholder outputs.
type FakeToolchain struct {
	// Outputs, if set, overrides the file names reported (relative to OutputDir).
	Outputs []string
	// Err, if set, is returned instead of building.
	Err error

	Calls []FakeBuild
}

// FakeBuild is one recorded Build call.
type FakeBuild struct {
	Ext  ports.Extension
	Opts ports.BuildOptions
}

// Build records the call and writes one file per reported output.
func (f *FakeToolchain) Build(ctx context.Context, ext ports.Extension, opts ports.BuildOptions) ([]string, error) {
	f.Calls = append(f.Calls, FakeBuild{Ext: ext, Opts: opts})
	if f.Err != nil {
		return nil, f.Err
	}
	names := f.Outputs
	if names == nil {
		names = []string{ext.Name + ".so"}
		if ext.ABI.ArtifactKind() == domain.ArtifactStub {
			names = []string{ext.Name + ".hpy.so", ext.Name + ".py"}
		}
	}
	outputs := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(opts.OutputDir, name)
		content := "binary:" + ext.Name
		if filepath.Ext(name) == ".py" {
			content = domain.StubMarker + ext.Name + ".hpy.so\n"
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}

// WriteArtifact writes a placeholder module binary named name into a fresh
// temp dir and returns its path.
func WriteArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".so")
	require.NoError(t, os.WriteFile(path, []byte("binary:"+name), 0o644))
	return path
}
