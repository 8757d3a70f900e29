package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectPaths(t *testing.T) {
	p := ProjectPaths("/work")

	assert.Equal(t, "/work/out/build/efi", p.EFIBuild)
	assert.Equal(t, "/work/out/build/efi/EFI/OC/config.plist", p.BuiltConfig)
	assert.Equal(t, "/work/efi-template/EFI/OC/config.plist", p.TemplateConfig)
	assert.Equal(t, "/work/out/opencore/Utilities/ocvalidate/ocvalidate", p.Ocvalidate)
	assert.Equal(t, "/work/out/usb/EFI", p.USBEFI)
	assert.Equal(t, "/work/config/changesets", p.Changesets)
}

func TestFindRootEnv(t *testing.T) {
	t.Setenv("OZZY_ROOT", "/somewhere")
	assert.Equal(t, "/somewhere", FindRoot())
}

func TestFindRootMarker(t *testing.T) {
	t.Setenv("OZZY_ROOT", "")

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config", "changesets"), 0755))
	nested := filepath.Join(root, "cmd", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.Chdir(cwd))
	}()
	require.NoError(t, os.Chdir(nested))

	got, err := filepath.EvalSymlinks(FindRoot())
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
