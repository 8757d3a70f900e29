package jsondb

import (
	"errors"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomically(t *testing.T) {
	dir := t.TempDir()

	t.Run("success", func(t *testing.T) {
		payload := []byte("{\"changeset\":\"mybox\"}\n")
		perm := os.FileMode(0640)

		err := writeFileAtomically(dir, "deploy.json", perm, func(f *os.File) error {
			_, err := f.Write(payload)
			return err
		})
		require.NoError(t, err)

		// no stray temporary files
		infos, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Equal(t, 1, len(infos))
		require.Equal(t, "deploy.json", infos[0].Name())
		fi, err := infos[0].Info()
		require.NoError(t, err)
		require.Equal(t, perm, fi.Mode())

		contents, err := os.ReadFile(path.Join(dir, "deploy.json"))
		require.NoError(t, err)
		require.Equal(t, payload, contents)

		require.NoError(t, os.Remove(path.Join(dir, "deploy.json")))
	})

	t.Run("error", func(t *testing.T) {
		err := writeFileAtomically(dir, "failed.json", 0640, func(f *os.File) error {
			return errors.New("something went wrong")
		})
		require.Error(t, err)

		_, err = os.Stat(path.Join(dir, "failed.json"))
		require.Error(t, err)

		infos, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Equal(t, 0, len(infos))
	})
}
