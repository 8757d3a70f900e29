package common

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TrimChangesetName strips an optional .yaml extension so commands accept
// both "mybox" and "mybox.yaml".
func TrimChangesetName(name string) string {
	return strings.TrimSuffix(name, ".yaml")
}

// ChangesetPath returns the file backing a changeset name.
func ChangesetPath(dir, name string) string {
	return filepath.Join(dir, TrimChangesetName(name)+".yaml")
}

// ListChangesets returns the sorted names of all changesets in dir.
func ListChangesets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(names)

	return names, nil
}

// NewestChangesets returns up to n changeset names ordered by modification
// time, newest first.
func NewestChangesets(dir string, n int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type stamped struct {
		name string
		mod  int64
	}
	var all []stamped
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		all = append(all, stamped{strings.TrimSuffix(entry.Name(), ".yaml"), info.ModTime().UnixNano()})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].mod > all[j].mod })

	if n > 0 && len(all) > n {
		all = all[:n]
	}
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.name
	}

	return names, nil
}
