package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimChangesetName(t *testing.T) {
	assert.Equal(t, "mybox", TrimChangesetName("mybox"))
	assert.Equal(t, "mybox", TrimChangesetName("mybox.yaml"))
}

func TestChangesetPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "mybox.yaml"), ChangesetPath("dir", "mybox"))
	assert.Equal(t, filepath.Join("dir", "mybox.yaml"), ChangesetPath("dir", "mybox.yaml"))
}

func TestListChangesets(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"zeta.yaml", "alpha.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644))
	}

	names, err := ListChangesets(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)

	names, err = ListChangesets(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewestChangesets(t *testing.T) {
	dir := t.TempDir()

	older := filepath.Join(dir, "older.yaml")
	newer := filepath.Join(dir, "newer.yaml")
	require.NoError(t, os.WriteFile(older, []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("{}"), 0644))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	names, err := NewestChangesets(dir, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer"}, names)

	names, err = NewestChangesets(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, names)
}
