package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hpyharness version ")
}

func TestExpandCommand(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "mod.c")
	require.NoError(t, os.WriteFile(tmpl, []byte("@EXPORT(f)\n@INIT\n"), 0o644))

	out, err := execute(t, "expand", "--render=false", "--name", "cli_mod", "--config", filepath.Join(t.TempDir(), "none.yaml"), tmpl)
	require.NoError(t, err)
	assert.Contains(t, out, "&f,")
	assert.Contains(t, out, "HPy_MODINIT(cli_mod)")
}

func TestExpandCommand_UnknownDirective(t *testing.T) {
	tmpl := filepath.Join(t.TempDir(), "bad.c")
	require.NoError(t, os.WriteFile(tmpl, []byte("@EXPROT(f)\n"), 0o644))

	_, err := execute(t, "expand", "--render=false", tmpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPROT")
}
