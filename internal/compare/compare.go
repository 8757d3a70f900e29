// Package compare diffs two config.plist trees functionally rather than
// textually: arrays whose order is meaningless are sorted first, binary
// data equals its base64 string form, and comment keys are ignored. The
// point is answering "will these two configs boot differently".
package compare

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/ocplist"
)

type Kind string

const (
	OnlyFirst  Kind = "only-first"
	OnlySecond Kind = "only-second"
	Changed    Kind = "changed"
)

type Difference struct {
	Path   []string
	Kind   Kind
	First  interface{}
	Second interface{}
}

// Section is the top-level key a difference belongs to.
func (d Difference) Section() string {
	if len(d.Path) == 0 {
		return ""
	}
	return d.Path[0]
}

type Result struct {
	Differences []Difference
}

// arrayIdentity names the entry key that identifies elements of arrays
// whose order OpenCore does not care about. Those arrays are sorted by
// that key before comparison.
var arrayIdentity = map[string]string{
	"Kernel -> Add":   "BundlePath",
	"Kernel -> Block": "Identifier",
	"UEFI -> Drivers": "Path",
	"Misc -> Tools":   "Path",
	"ACPI -> Add":     "Path",
	"ACPI -> Delete":  "Comment",
}

// Plists compares two loaded plist trees and returns every functional
// difference. Top-level comment keys (starting with '#') are skipped.
func Plists(a, b map[string]interface{}) *Result {
	r := &Result{}
	r.diffDict(nil, a, b, true)
	return r
}

func (r *Result) add(path []string, kind Kind, first, second interface{}) {
	p := make([]string, len(path))
	copy(p, path)
	r.Differences = append(r.Differences, Difference{Path: p, Kind: kind, First: first, Second: second})
}

func (r *Result) diffDict(path []string, a, b map[string]interface{}, top bool) {
	for _, key := range unionKeys(a, b) {
		if top && strings.HasPrefix(key, "#") {
			continue
		}
		p := append(path, key)

		av, inA := a[key]
		bv, inB := b[key]
		switch {
		case !inA:
			r.add(p, OnlySecond, nil, bv)
		case !inB:
			r.add(p, OnlyFirst, av, nil)
		default:
			r.diffValue(p, av, bv)
		}
	}
}

func (r *Result) diffValue(path []string, a, b interface{}) {
	if equalValue(a, b) {
		return
	}

	ad, aIsDict := datafmt.AsDict(a)
	bd, bIsDict := datafmt.AsDict(b)
	if aIsDict && bIsDict {
		r.diffDict(path, ad, bd, false)
		return
	}

	al, aIsList := a.([]interface{})
	bl, bIsList := b.([]interface{})
	if aIsList && bIsList {
		r.diffList(path, al, bl)
		return
	}

	r.add(path, Changed, a, b)
}

func (r *Result) diffList(path []string, a, b []interface{}) {
	a = normalizeArray(path, a)
	b = normalizeArray(path, b)

	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	for i := 0; i < max; i++ {
		p := append(path, strconv.Itoa(i))
		switch {
		case i >= len(a):
			r.add(p, OnlySecond, nil, b[i])
		case i >= len(b):
			r.add(p, OnlyFirst, a[i], nil)
		default:
			r.diffValue(p, a[i], b[i])
		}
	}
}

// normalizeArray sorts an array into a canonical order when its order
// carries no meaning: entry arrays by their identity key, scalar arrays
// by value, other dict arrays by rendered form. Arrays of mixed shape
// are left alone.
func normalizeArray(path []string, arr []interface{}) []interface{} {
	if len(arr) < 2 {
		return arr
	}

	out := make([]interface{}, len(arr))
	copy(out, arr)

	if key, ok := arrayIdentity[strings.Join(path, " -> ")]; ok {
		sort.SliceStable(out, func(i, j int) bool {
			return entryKey(out[i], key) < entryKey(out[j], key)
		})
		return out
	}

	allScalar := true
	allDict := true
	for _, v := range out {
		if _, ok := datafmt.AsDict(v); !ok {
			allDict = false
		}
		switch v.(type) {
		case map[string]interface{}, map[interface{}]interface{}, []interface{}:
			allScalar = false
		}
	}
	if allScalar || allDict {
		sort.SliceStable(out, func(i, j int) bool {
			return fingerprint(out[i]) < fingerprint(out[j])
		})
	}
	return out
}

func entryKey(v interface{}, key string) string {
	if dict, ok := datafmt.AsDict(v); ok {
		if s, ok := dict[key].(string); ok {
			return s
		}
	}
	return fingerprint(v)
}

// fingerprint renders a value deterministically for sorting.
func fingerprint(v interface{}) string {
	switch value := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(value))
		for k := range value {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + fingerprint(value[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	case map[interface{}]interface{}:
		dict, _ := datafmt.AsDict(value)
		return fingerprint(dict)
	case []interface{}:
		parts := make([]string, len(value))
		for i, item := range value {
			parts[i] = fingerprint(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []byte:
		return fmt.Sprintf("0x%X", value)
	case datafmt.DataBytes:
		return fmt.Sprintf("0x%X", []byte(value))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// equalValue is plist equality plus one tolerance: binary data matches
// the base64 string encoding of the same bytes, since changesets write
// data either way.
func equalValue(a, b interface{}) bool {
	if ocplist.Equal(a, b) {
		return true
	}
	if ab, ok := asBytes(a); ok {
		if s, ok := b.(string); ok {
			return base64Equal(ab, s)
		}
	}
	if bb, ok := asBytes(b); ok {
		if s, ok := a.(string); ok {
			return base64Equal(bb, s)
		}
	}
	return false
}

func asBytes(v interface{}) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case datafmt.DataBytes:
		return []byte(b), true
	}
	return nil, false
}

func base64Equal(data []byte, s string) bool {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return bytes.Equal(data, decoded)
}

func unionKeys(a, b map[string]interface{}) []string {
	seen := map[string]bool{}
	for key := range a {
		seen[key] = true
	}
	for key := range b {
		seen[key] = true
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
