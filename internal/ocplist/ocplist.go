// Package ocplist reads and writes OpenCore config.plist trees and provides
// the path helpers the patch engine walks them with. Trees are plain
// map[string]interface{} dictionaries with []interface{} arrays and []byte
// data, as decoded by howett.net/plist.
package ocplist

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// Load reads an XML or binary plist file into a tree.
func Load(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes plist bytes into a tree.
func Parse(data []byte) (map[string]interface{}, error) {
	var tree map[string]interface{}
	if _, err := plist.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("cannot parse plist: %v", err)
	}
	return tree, nil
}

// Marshal renders a tree as XML with tab indentation. Dictionary keys are
// emitted sorted, so equal trees serialize to equal bytes.
func Marshal(tree map[string]interface{}) ([]byte, error) {
	data, err := plist.MarshalIndent(tree, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("cannot serialize plist: %v", err)
	}
	return data, nil
}

// Save writes a tree to path, creating parent directories as needed.
func Save(path string, tree map[string]interface{}) error {
	data, err := Marshal(tree)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Write streams a tree to w as indented XML.
func Write(w io.Writer, tree map[string]interface{}) error {
	data, err := Marshal(tree)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// GetPath walks nested dictionaries and returns the value at path.
func GetPath(tree map[string]interface{}, path ...string) (interface{}, bool) {
	var current interface{} = tree
	for _, key := range path {
		dict, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = dict[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// EnsureDict walks path, creating missing dictionaries, and returns the
// dictionary at the end. An intermediate value that exists but is not a
// dictionary is an error.
func EnsureDict(tree map[string]interface{}, path ...string) (map[string]interface{}, error) {
	current := tree
	for i, key := range path {
		next, exists := current[key]
		if !exists {
			created := map[string]interface{}{}
			current[key] = created
			current = created
			continue
		}
		dict, ok := next.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s is not a dict", strings.Join(path[:i+1], " -> "))
		}
		current = dict
	}
	return current, nil
}

// EnsureArray returns the array stored under key, creating it (or replacing
// a non-array value) as needed. Callers append and store the result back.
func EnsureArray(parent map[string]interface{}, key string) []interface{} {
	if arr, ok := parent[key].([]interface{}); ok {
		return arr
	}
	arr := []interface{}{}
	parent[key] = arr
	return arr
}

// Int views a decoded plist number as int64. The decoder yields uint64 for
// non-negative integers and int64 for negative ones.
func Int(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// Equal reports deep equality of two tree values with numeric values
// compared by magnitude, so an int64 5 equals a uint64 5.
func Equal(a, b interface{}) bool {
	if an, ok := Int(a); ok {
		if bn, ok := Int(b); ok {
			return an == bn
		}
		return false
	}

	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for key, value := range av {
			other, exists := bv[key]
			if !exists || !Equal(value, other) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	default:
		return a == b
	}
}
