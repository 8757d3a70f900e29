package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand(t *testing.T) {
	out, err := RunCommand("echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, err = RunCommand("false")
	assert.Error(t, err)

	_, err = RunCommand("no-such-binary-ozzy")
	assert.Error(t, err)
}

func TestCommandExists(t *testing.T) {
	assert.True(t, CommandExists("echo"))
	assert.False(t, CommandExists("no-such-binary-ozzy"))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0640))

	dst := filepath.Join(dir, "nested", "dst.txt")
	require.NoError(t, CopyFile(src, dst))

	contents, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), contents)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestCopyTreeReplacesTarget(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "a.txt"), []byte("a"), 0644))

	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(dst, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stale.txt"), []byte("old"), 0644))

	require.NoError(t, CopyTree(src, dst))

	_, err := os.Stat(filepath.Join(dst, "sub", "a.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupMacOSMetadata(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "EFI", "OC"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EFI", "._config.plist"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EFI", "OC", "config.plist"), []byte("x"), 0644))

	count, err := CleanupMacOSMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = os.Stat(filepath.Join(dir, "EFI", "OC", "config.plist"))
	assert.NoError(t, err)
}
