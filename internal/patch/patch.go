// Package patch applies ordered operations to a config.plist tree. The six
// operations (set, append, merge, delete, clear, remove) are the whole
// mutation vocabulary: everything a changeset does to the template goes
// through them.
package patch

import (
	"fmt"
	"strings"

	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/ocplist"
)

// Operation is one mutation. Value serves set, Entries serves merge, Entry
// and Key serve append and remove. Binary data travels as int lists in the
// JSON form.
type Operation struct {
	Op      string                 `json:"op"`
	Path    []string               `json:"path"`
	Value   interface{}            `json:"value,omitempty"`
	Entries map[string]interface{} `json:"entries,omitempty"`
	Entry   map[string]interface{} `json:"entry,omitempty"`
	Key     string                 `json:"key,omitempty"`
}

func (op Operation) pathString() string {
	return strings.Join(op.Path, " -> ")
}

// Apply runs the operations in order. The first failure aborts.
func Apply(tree map[string]interface{}, ops []Operation) error {
	for i, op := range ops {
		var err error
		switch op.Op {
		case "set":
			err = applySet(tree, op)
		case "append":
			err = applyAppend(tree, op)
		case "merge":
			err = applyMerge(tree, op)
		case "delete":
			err = applyDelete(tree, op)
		case "clear":
			err = applyClear(tree, op)
		case "remove":
			err = applyRemove(tree, op)
		default:
			err = fmt.Errorf("unknown operation %q", op.Op)
		}
		if err != nil {
			return fmt.Errorf("operation %d (%s %s): %v", i, op.Op, op.pathString(), err)
		}
	}
	return nil
}

func applySet(tree map[string]interface{}, op Operation) error {
	if len(op.Path) == 0 {
		return fmt.Errorf("empty path")
	}
	parent, err := ocplist.EnsureDict(tree, op.Path[:len(op.Path)-1]...)
	if err != nil {
		return err
	}

	final := op.Path[len(op.Path)-1]
	parent[final] = setValue(op.Value, final)
	return nil
}

// setValue converts list-form data for set: a non-empty all-byte int list
// becomes bytes anywhere, an empty list becomes empty bytes only under the
// named binary fields.
func setValue(v interface{}, finalKey string) interface{} {
	v = normalize(v)
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			if datafmt.IsBinaryField(finalKey) {
				return []byte{}
			}
			return list
		}
		if b, ok := datafmt.ByteListToBytes(list); ok {
			return b
		}
	}
	return v
}

func applyAppend(tree map[string]interface{}, op Operation) error {
	if len(op.Path) == 0 {
		return fmt.Errorf("empty path")
	}
	if op.Entry == nil {
		return fmt.Errorf("append needs an entry")
	}

	parent, err := ocplist.EnsureDict(tree, op.Path[:len(op.Path)-1]...)
	if err != nil {
		return err
	}
	final := op.Path[len(op.Path)-1]
	arr := ocplist.EnsureArray(parent, final)

	entry := normalize(datafmt.CoerceDataValues(op.Entry))

	if op.Key == "" {
		for _, existing := range arr {
			if ocplist.Equal(existing, entry) {
				return nil
			}
		}
		parent[final] = append(arr, entry)
		return nil
	}

	// existing entries win: never overwrite a matching key
	want, _ := entry.(map[string]interface{})
	for _, existing := range arr {
		dict, ok := existing.(map[string]interface{})
		if !ok {
			continue
		}
		if ocplist.Equal(dict[op.Key], want[op.Key]) {
			return nil
		}
	}
	parent[final] = append(arr, entry)
	return nil
}

func applyMerge(tree map[string]interface{}, op Operation) error {
	target, err := ocplist.EnsureDict(tree, op.Path...)
	if err != nil {
		return fmt.Errorf("target not dict: %v", err)
	}

	entries, _ := normalize(datafmt.CoerceDataValues(op.Entries)).(map[string]interface{})
	for key, value := range entries {
		target[key] = value
	}
	return nil
}

func applyDelete(tree map[string]interface{}, op Operation) error {
	if len(op.Path) == 0 {
		return fmt.Errorf("empty path")
	}

	parentValue, ok := interface{}(tree), true
	if len(op.Path) > 1 {
		parentValue, ok = ocplist.GetPath(tree, op.Path[:len(op.Path)-1]...)
	}
	if !ok {
		return fmt.Errorf("path not found")
	}
	parent, ok := parentValue.(map[string]interface{})
	if !ok {
		return fmt.Errorf("path not found")
	}

	final := op.Path[len(op.Path)-1]
	if _, exists := parent[final]; !exists {
		return fmt.Errorf("path not found")
	}
	delete(parent, final)
	return nil
}

func applyClear(tree map[string]interface{}, op Operation) error {
	if len(op.Path) == 0 {
		return fmt.Errorf("empty path")
	}
	parent, err := ocplist.EnsureDict(tree, op.Path[:len(op.Path)-1]...)
	if err != nil {
		return err
	}
	parent[op.Path[len(op.Path)-1]] = []interface{}{}
	return nil
}

// applyRemove drops array elements whose Key field equals Value. A missing
// path is tolerated.
func applyRemove(tree map[string]interface{}, op Operation) error {
	if len(op.Path) == 0 {
		return fmt.Errorf("empty path")
	}

	parentValue, ok := interface{}(tree), true
	if len(op.Path) > 1 {
		parentValue, ok = ocplist.GetPath(tree, op.Path[:len(op.Path)-1]...)
	}
	if !ok {
		return nil
	}
	parent, ok := parentValue.(map[string]interface{})
	if !ok {
		return nil
	}
	arr, ok := parent[op.Path[len(op.Path)-1]].([]interface{})
	if !ok {
		return nil
	}

	want := normalize(op.Value)
	var kept []interface{}
	for _, elem := range arr {
		if dict, isDict := elem.(map[string]interface{}); isDict && ocplist.Equal(dict[op.Key], want) {
			continue
		}
		kept = append(kept, elem)
	}
	if kept == nil {
		kept = []interface{}{}
	}
	parent[op.Path[len(op.Path)-1]] = kept
	return nil
}

// PostProcess runs the final fixups after all operations: Kernel.Patch
// binary fields become bytes and Kernel.Add entries are guaranteed an
// ExecutablePath.
func PostProcess(tree map[string]interface{}) {
	if patches, ok := ocplist.GetPath(tree, "Kernel", "Patch"); ok {
		if arr, ok := patches.([]interface{}); ok {
			for i, elem := range arr {
				if dict, ok := elem.(map[string]interface{}); ok {
					arr[i] = datafmt.CoerceDataValues(dict)
				}
			}
		}
	}

	if adds, ok := ocplist.GetPath(tree, "Kernel", "Add"); ok {
		if arr, ok := adds.([]interface{}); ok {
			for _, elem := range arr {
				if dict, ok := elem.(map[string]interface{}); ok {
					if _, exists := dict["ExecutablePath"]; !exists {
						dict["ExecutablePath"] = ""
					}
				}
			}
		}
	}
}

// normalize rewrites DataBytes values (the JSON int-list form) to plain
// bytes so the plist encoder sees them as data.
func normalize(v interface{}) interface{} {
	switch value := v.(type) {
	case datafmt.DataBytes:
		return []byte(value)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, inner := range value {
			out[key] = normalize(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, inner := range value {
			out[i] = normalize(inner)
		}
		return out
	default:
		return v
	}
}
