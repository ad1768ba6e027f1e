package tui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSource_WrapsInFence(t *testing.T) {
	var got string
	capture := func(md string) (string, error) {
		got = md
		return "rendered", nil
	}

	out, err := RenderSource(capture, "#include <hpy.h>")
	require.NoError(t, err)
	assert.Equal(t, "rendered", out)
	assert.Equal(t, "```c\n#include <hpy.h>\n```\n", got)
}

func TestNewRenderer_KeepsCode(t *testing.T) {
	out, err := RenderSource(NewRenderer(), "static HPyDef *moduledefs[] = {\n    NULL\n};\n")
	require.NoError(t, err)
	assert.Contains(t, out, "moduledefs")
}

func TestStatus_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	s := NewStatus(&buf)
	s.Success("built %s", "mytest")
	s.Failure("load failed")
	s.Info("in %s", "/tmp")

	assert.Equal(t, "✔ built mytest\n✘ load failed\nin /tmp\n", buf.String())
}

func TestIsTerminal_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}
