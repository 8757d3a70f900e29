package image

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/ocplist"
)

// buildFixture lays out a project ready to build without fetching.
func buildFixture(t *testing.T) (common.Paths, changeset.Changeset) {
	t.Helper()
	paths := common.ProjectPaths(t.TempDir())

	require.NoError(t, common.EnsureDir(filepath.Dir(paths.TemplateConfig)))
	require.NoError(t, ocplist.Save(paths.TemplateConfig, map[string]interface{}{
		"Kernel": map[string]interface{}{},
	}))
	require.NoError(t, common.EnsureDir(paths.OCEFI))
	require.NoError(t, os.WriteFile(filepath.Join(paths.OCEFI, "OpenCore.efi"), []byte("efi"), 0644))
	require.NoError(t, common.EnsureDir(paths.OCKexts))

	return paths, changeset.Changeset{"boot_args": "-v"}
}

// stubPath points PATH at an empty directory so tests control exactly
// which tools exist. fakeBin adds a tool that records its invocation.
func stubPath(t *testing.T) (string, string) {
	t.Helper()
	bin := t.TempDir()
	logPath := filepath.Join(bin, "calls.log")
	t.Setenv("PATH", bin)
	return bin, logPath
}

func fakeBin(t *testing.T, bin, name, logPath string) {
	t.Helper()
	script := "#!/bin/sh\necho \"" + name + " $*\" >> '" + logPath + "'\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte(script), 0755))
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestBuildISO(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("exercises the linux tool path")
	}
	paths, cs := buildFixture(t)
	bin, logPath := stubPath(t)
	fakeBin(t, bin, "genisoimage", logPath)

	isoPath, err := BuildISO(paths, cs, "desk", Options{NoValidate: true})
	require.NoError(t, err)
	assert.Equal(t, paths.OpenCoreISO, isoPath)

	calls := readCalls(t, logPath)
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0], "genisoimage "))
	assert.Contains(t, calls[0], "-volid OZZY-OC")
	assert.NotContains(t, calls[0], "-e EFI/BOOT/BOOTx64.efi")
	assert.Contains(t, calls[0], paths.EFIBuild)
}

func TestBuildISOXorriso(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("exercises the linux tool path")
	}
	paths, cs := buildFixture(t)
	bin, logPath := stubPath(t)
	fakeBin(t, bin, "genisoimage", logPath)
	fakeBin(t, bin, "xorriso", logPath)

	_, err := BuildISO(paths, cs, "desk", Options{NoValidate: true})
	require.NoError(t, err)

	calls := readCalls(t, logPath)
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0], "xorriso -as mkisofs "))
	assert.Contains(t, calls[0], "-e EFI/BOOT/BOOTx64.efi")
	assert.Contains(t, calls[0], "-efi-boot-part --efi-boot-image")
}

func TestBuildISONoTool(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("exercises the linux tool path")
	}
	paths, cs := buildFixture(t)
	stubPath(t)

	_, err := BuildISO(paths, cs, "desk", Options{NoValidate: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ISO tool found")
}

func TestBuildISOForceNeedsManifest(t *testing.T) {
	paths, cs := buildFixture(t)

	// Force always refetches, which fails without a sources manifest.
	_, err := BuildISO(paths, cs, "desk", Options{Force: true, NoValidate: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sources manifest")
}

func TestIsoToolPreference(t *testing.T) {
	bin, logPath := stubPath(t)

	_, _, err := isoTool()
	require.Error(t, err)

	fakeBin(t, bin, "mkisofs", logPath)
	tool, prefix, err := isoTool()
	require.NoError(t, err)
	assert.Equal(t, "mkisofs", tool)
	assert.Nil(t, prefix)

	fakeBin(t, bin, "genisoimage", logPath)
	tool, prefix, err = isoTool()
	require.NoError(t, err)
	assert.Equal(t, "genisoimage", tool)
	assert.Nil(t, prefix)

	fakeBin(t, bin, "xorriso", logPath)
	tool, prefix, err = isoTool()
	require.NoError(t, err)
	assert.Equal(t, "xorriso", tool)
	assert.Equal(t, []string{"-as", "mkisofs"}, prefix)
}

func TestBuildIMG(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("exercises the linux tool path")
	}
	paths, cs := buildFixture(t)
	bin, logPath := stubPath(t)
	for _, tool := range []string{"dd", "mkfs.fat", "sudo"} {
		fakeBin(t, bin, tool, logPath)
	}

	imgPath, err := BuildIMG(paths, cs, "desk", Options{NoValidate: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.Out, "opencore-desk.img"), imgPath)

	calls := readCalls(t, logPath)
	require.Len(t, calls, 6)
	assert.Contains(t, calls[0], "dd if=/dev/zero")
	assert.Contains(t, calls[0], "bs=1M count=50")
	assert.Contains(t, calls[1], "mkfs.fat -F 32 -n OZZY-OC")
	assert.True(t, strings.HasPrefix(calls[2], "sudo mount -o loop"))
	assert.True(t, strings.HasPrefix(calls[3], "sudo cp -R"))
	assert.True(t, strings.HasPrefix(calls[4], "sudo chmod -R 755"))
	assert.True(t, strings.HasPrefix(calls[5], "sudo umount"))
}

func TestBuildIMGNeedsMkfs(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("exercises the linux tool path")
	}
	paths, cs := buildFixture(t)
	bin, logPath := stubPath(t)
	fakeBin(t, bin, "dd", logPath)
	fakeBin(t, bin, "sudo", logPath)

	_, err := BuildIMG(paths, cs, "desk", Options{NoValidate: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dosfstools")
}
