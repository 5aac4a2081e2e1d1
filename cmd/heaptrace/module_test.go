package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeGoMod(t *testing.T, dir, module string) {
	t.Helper()
	content := "module " + module + "\n\ngo 1.24.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(content), 0o644))
}

func TestCheckGoMod(t *testing.T) {
	dir := t.TempDir()
	writeGoMod(t, dir, modulePath)

	root, ok := checkGoMod(dir)
	require.True(t, ok)
	require.Equal(t, dir, root)
}

func TestCheckGoModWrongModule(t *testing.T) {
	dir := t.TempDir()
	writeGoMod(t, dir, "github.com/acme/otherproject")

	_, ok := checkGoMod(dir)
	require.False(t, ok, "a foreign go.mod must not be accepted as the module root")
}

func TestCheckGoModMissing(t *testing.T) {
	_, ok := checkGoMod(t.TempDir())
	require.False(t, ok)
}

func TestCheckGoModUnparseable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("not a modfile {{{"), 0o644))

	_, ok := checkGoMod(dir)
	require.False(t, ok)
}

// TestFindModuleRootWalksUp plants the module go.mod above a nested
// working directory and expects discovery to climb to it.
func TestFindModuleRootWalksUp(t *testing.T) {
	root := t.TempDir()
	writeGoMod(t, root, modulePath)

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	got, err := findModuleRoot()
	require.NoError(t, err)
	// Temp dirs may come back through symlinks; compare resolved paths.
	wantResolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	require.Equal(t, wantResolved, gotResolved)
}

func TestExecuteTargetExitCode(t *testing.T) {
	code := executeTarget("sh", []string{"-c", "exit 3"}, filepath.Join(t.TempDir(), "absent.so"), false)
	require.Equal(t, 3, code)
}

func TestExecuteTargetMissingBinary(t *testing.T) {
	code := executeTarget(filepath.Join(t.TempDir(), "no-such-binary"), nil, "x.so", false)
	require.Equal(t, 1, code)
}
