// Package jsondb implements a flat-file store of JSON documents, one file
// per record. The deployment history lives in one of these under out/logs.
package jsondb

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
)

type JSONDatabase struct {
	dir  string
	perm os.FileMode
}

func New(dir string, perm os.FileMode) *JSONDatabase {
	return &JSONDatabase{dir, perm}
}

// Read unmarshals the named document into v. A missing document is not an
// error: the first return value reports whether it existed.
func (db *JSONDatabase) Read(name string, v interface{}) (bool, error) {
	f, err := os.Open(path.Join(db.dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return false, fmt.Errorf("cannot decode document %q: %v", name, err)
	}
	return true, nil
}

// Write stores v as the named document. The write is atomic: a temporary
// file in the same directory is renamed over the target.
func (db *JSONDatabase) Write(name string, v interface{}) error {
	return writeFileAtomically(db.dir, name+".json", db.perm, func(f *os.File) error {
		return json.NewEncoder(f).Encode(v)
	})
}

// List returns the sorted names of all documents in the store. A missing
// store directory yields an empty list.
func (db *JSONDatabase) List() ([]string, error) {
	entries, err := os.ReadDir(db.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)

	return names, nil
}

func writeFileAtomically(dir, filename string, perm os.FileMode, writer func(*os.File) error) error {
	tmp, err := os.CreateTemp(dir, filename+"-*.tmp")
	if err != nil {
		return err
	}

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := writer(tmp); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}

	if err := os.Rename(tmp.Name(), path.Join(dir, filename)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
