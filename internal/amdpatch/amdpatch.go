// Package amdpatch manages the AMD vanilla kernel patches: loading the
// upstream patch set, stamping the core count into the topology patches and
// injecting the result into a changeset.
package amdpatch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/ocplist"
)

// DefaultCores is used when the caller does not specify a core count.
const DefaultCores = 16

const corePatchMarker = "cpuid_cores_per_package"

// amdMarkers in a patch comment identify a changeset as an AMD build.
var amdMarkers = []string{"amd", "authenticamd", "genuineintel"}

// LoadPatches reads the Kernel.Patch list from the AMD vanilla patches
// plist.
func LoadPatches(path string) ([]map[string]interface{}, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("AMD vanilla patches not found at %s, run ozzy-fetch-assets first", path)
	}

	tree, err := ocplist.Load(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read AMD vanilla patches: %v", err)
	}

	raw, ok := ocplist.GetPath(tree, "Kernel", "Patch")
	if !ok {
		return nil, fmt.Errorf("no Kernel.Patch section in %s", path)
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("Kernel.Patch in %s is not an array", path)
	}

	patches := make([]map[string]interface{}, 0, len(list))
	for i, elem := range list {
		dict, ok := elem.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Kernel.Patch entry %d in %s is not a dict", i, path)
		}
		patches = append(patches, dict)
	}
	return patches, nil
}

// IsCorePatch reports whether a patch encodes the CPU topology and needs
// the core count stamped in.
func IsCorePatch(p map[string]interface{}) bool {
	comment, _ := p["Comment"].(string)
	return strings.Contains(strings.ToLower(comment), corePatchMarker)
}

// SetCoreCount writes the core count into the second byte of the patch's
// Replace value.
func SetCoreCount(p map[string]interface{}, cores int) error {
	if cores < 1 || cores > 255 {
		return fmt.Errorf("core count %d out of range", cores)
	}

	replace, err := replaceBytes(p["Replace"])
	if err != nil {
		return fmt.Errorf("cannot set core count: %v", err)
	}
	if len(replace) < 2 {
		return fmt.Errorf("cannot set core count: Replace is %d bytes", len(replace))
	}

	replace[1] = byte(cores)
	p["Replace"] = replace
	return nil
}

func replaceBytes(v interface{}) ([]byte, error) {
	switch value := v.(type) {
	case []byte:
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	case datafmt.DataBytes:
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	case []interface{}:
		if b, ok := datafmt.ByteListToBytes(value); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Replace is not a byte list")
	case string:
		return datafmt.HexStringToBytes(value)
	case nil:
		return nil, fmt.Errorf("no Replace value")
	}
	return nil, fmt.Errorf("unsupported Replace type %T", v)
}

// Prepare deep-copies the patch set and stamps the core count into every
// topology patch.
func Prepare(patches []map[string]interface{}, cores int) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(patches))
	for _, p := range patches {
		clone := copyPatch(p)
		if IsCorePatch(clone) {
			if err := SetCoreCount(clone, cores); err != nil {
				comment, _ := clone["Comment"].(string)
				return nil, fmt.Errorf("patch %q: %v", comment, err)
			}
		}
		out = append(out, clone)
	}
	return out, nil
}

// InjectIntoChangeset replaces the changeset's kernel_patches with the
// prepared AMD set.
func InjectIntoChangeset(cs changeset.Changeset, patches []map[string]interface{}, cores int) error {
	prepared, err := Prepare(patches, cores)
	if err != nil {
		return err
	}

	list := make([]interface{}, 0, len(prepared))
	for _, p := range prepared {
		list = append(list, p)
	}
	changeset.SetSection(cs, "kernel_patches", list)
	return nil
}

// DetectAMD reports whether the changeset's kernel patches mention AMD.
func DetectAMD(cs changeset.Changeset) bool {
	list, ok := changeset.SectionList(cs, "kernel_patches")
	if !ok {
		return false
	}
	for _, elem := range list {
		dict, ok := datafmt.AsDict(elem)
		if !ok {
			continue
		}
		comment, _ := dict["Comment"].(string)
		lower := strings.ToLower(comment)
		for _, marker := range amdMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// NeedsInjection reports whether the changeset asks for the AMD vanilla
// patches, either through the amd_vanilla_patches flag or through AMD
// markers in its own patch comments.
func NeedsInjection(cs changeset.Changeset) bool {
	if flag, ok := changeset.Section(cs, "amd_vanilla_patches"); ok {
		want, _ := flag.(bool)
		return want
	}
	return DetectAMD(cs)
}

// Summary describes a loaded patch set.
type Summary struct {
	Total          int
	CorePatches    int
	Other          int
	DarwinVersions []string
}

// Describe summarizes the patch set for the info subcommand.
func Describe(patches []map[string]interface{}) Summary {
	s := Summary{Total: len(patches)}
	versions := map[string]bool{}

	for _, p := range patches {
		if IsCorePatch(p) {
			s.CorePatches++
		} else {
			s.Other++
		}
		min, _ := p["MinKernel"].(string)
		max, _ := p["MaxKernel"].(string)
		if min == "" && max == "" {
			continue
		}
		versions[kernelRange(min, max)] = true
	}

	for v := range versions {
		s.DarwinVersions = append(s.DarwinVersions, v)
	}
	sort.Strings(s.DarwinVersions)
	return s
}

func kernelRange(min, max string) string {
	if min == "" {
		min = "*"
	}
	if max == "" {
		max = "*"
	}
	return min + "-" + max
}

func copyPatch(p map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for key, value := range p {
		switch typed := value.(type) {
		case []byte:
			b := make([]byte, len(typed))
			copy(b, typed)
			out[key] = b
		case datafmt.DataBytes:
			b := make(datafmt.DataBytes, len(typed))
			copy(b, typed)
			out[key] = b
		case []interface{}:
			list := make([]interface{}, len(typed))
			copy(list, typed)
			out[key] = list
		default:
			out[key] = value
		}
	}
	return out
}
