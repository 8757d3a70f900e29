package changeset

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/ozzy-project/ozzy/internal/datafmt"
)

type Comparison struct {
	OnlyInFirst  []string
	OnlyInSecond []string
	Identical    []string
	Different    map[string][]string
}

// Compare diffs two changesets section by section. Differences inside a
// section are rendered as report lines: "+" only in second, "-" only in
// first, "~" changed.
func Compare(a, b Changeset) Comparison {
	cmp := Comparison{Different: map[string][]string{}}

	sections := map[string]bool{}
	for key := range a {
		sections[key] = true
	}
	for key := range b {
		sections[key] = true
	}
	var ordered []string
	for key := range sections {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	for _, section := range ordered {
		left, inFirst := a[section]
		right, inSecond := b[section]

		switch {
		case !inFirst:
			cmp.OnlyInSecond = append(cmp.OnlyInSecond, section)
		case !inSecond:
			cmp.OnlyInFirst = append(cmp.OnlyInFirst, section)
		case reflect.DeepEqual(left, right):
			cmp.Identical = append(cmp.Identical, section)
		default:
			cmp.Different[section] = diffValues(left, right)
		}
	}

	return cmp
}

func diffValues(left, right interface{}) []string {
	leftDict, leftIsDict := datafmt.AsDict(left)
	rightDict, rightIsDict := datafmt.AsDict(right)
	if leftIsDict && rightIsDict {
		return diffDicts(leftDict, rightDict, "")
	}

	leftList, leftIsList := left.([]interface{})
	rightList, rightIsList := right.([]interface{})
	if leftIsList && rightIsList {
		return diffLists(leftList, rightList)
	}

	return []string{fmt.Sprintf("%v -> %v", left, right)}
}

func diffDicts(a, b map[string]interface{}, path string) []string {
	keys := map[string]bool{}
	for key := range a {
		keys[key] = true
	}
	for key := range b {
		keys[key] = true
	}
	var ordered []string
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	var lines []string
	for _, key := range ordered {
		current := key
		if path != "" {
			current = path + "." + key
		}

		left, inA := a[key]
		right, inB := b[key]

		switch {
		case !inA:
			lines = append(lines, fmt.Sprintf("+ %s: %v (only in second)", current, right))
		case !inB:
			lines = append(lines, fmt.Sprintf("- %s: %v (only in first)", current, left))
		case reflect.DeepEqual(left, right):
			// identical
		default:
			leftDict, leftIsDict := datafmt.AsDict(left)
			rightDict, rightIsDict := datafmt.AsDict(right)
			if leftIsDict && rightIsDict {
				lines = append(lines, diffDicts(leftDict, rightDict, current)...)
			} else {
				lines = append(lines, fmt.Sprintf("~ %s: %v -> %v", current, left, right))
			}
		}
	}
	return lines
}

func diffLists(a, b []interface{}) []string {
	var lines []string
	if len(a) != len(b) {
		lines = append(lines, fmt.Sprintf("Length: %d -> %d", len(a), len(b)))
	}

	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	for i := 0; i < max; i++ {
		switch {
		case i >= len(a):
			lines = append(lines, fmt.Sprintf("[%d]: (missing) -> %v", i, b[i]))
		case i >= len(b):
			lines = append(lines, fmt.Sprintf("[%d]: %v -> (missing)", i, a[i]))
		case !reflect.DeepEqual(a[i], b[i]):
			lines = append(lines, fmt.Sprintf("[%d]: %v -> %v", i, a[i], b[i]))
		}
	}
	return lines
}

// Merge overlays one changeset onto a copy of another: mapping sections are
// merged key by key, lists and scalars are replaced, new sections are added.
func Merge(base, overlay Changeset) Changeset {
	merged := Changeset{}
	for key, value := range base {
		merged[key] = deepCopy(value)
	}

	for section, value := range overlay {
		baseDict, baseIsDict := datafmt.AsDict(merged[section])
		overlayDict, overlayIsDict := datafmt.AsDict(value)
		if baseIsDict && overlayIsDict {
			for key, v := range overlayDict {
				baseDict[key] = deepCopy(v)
			}
			merged[section] = baseDict
			continue
		}
		merged[section] = deepCopy(value)
	}

	return merged
}

func deepCopy(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, inner := range value {
			out[key] = deepCopy(inner)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, inner := range value {
			if s, ok := key.(string); ok {
				out[s] = deepCopy(inner)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, inner := range value {
			out[i] = deepCopy(inner)
		}
		return out
	case []byte:
		out := make([]byte, len(value))
		copy(out, value)
		return out
	default:
		return v
	}
}
