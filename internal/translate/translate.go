// Package translate turns changeset sections into ordered patch operations.
// Sections are processed in a fixed order so the same changeset always
// produces the same operation list; within a section, entries keep their
// input order.
package translate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/patch"
)

// AppleBootGUID is the NVRAM GUID holding boot-args and csr-active-config.
const AppleBootGUID = "7C436110-AB2A-4BBB-A880-FE41995C9F82"

// Translate builds the operation list for a changeset. Unknown sections are
// skipped with a debug log; metadata and proxmox are never translated.
func Translate(cs changeset.Changeset) ([]patch.Operation, error) {
	for _, name := range sortedKeys(cs) {
		if _, known := changeset.CanonicalName(name); !known {
			logrus.Debugf("Ignoring unknown changeset section %q", name)
		}
	}

	var ops []patch.Operation

	for _, k := range changeset.Kexts(cs) {
		execPath := ""
		if strings.TrimSpace(k.Exec) != "" {
			execPath = "Contents/MacOS/" + k.Exec
		}
		ops = append(ops, appendOp([]string{"Kernel", "Add"}, "BundlePath", map[string]interface{}{
			"BundlePath":     k.Bundle,
			"Enabled":        true,
			"ExecutablePath": execPath,
			"PlistPath":      "Contents/Info.plist",
		}))
	}

	if quirks, ok := changeset.SectionDict(cs, "booter_quirks"); ok {
		ops = append(ops, mergeOp([]string{"Booter", "Quirks"}, quirks))
	}

	if quirks, ok := changeset.SectionDict(cs, "kernel_quirks"); ok {
		if _, misplaced := quirks["DummyPowerManagement"]; misplaced {
			logrus.Error("DummyPowerManagement should be in Kernel.Emulate section!")
			logrus.Error("Move it from kernel_quirks to kernel_emulate in your changeset")
			return nil, fmt.Errorf("DummyPowerManagement belongs in kernel_emulate")
		}
		if len(quirks) > 0 {
			ops = append(ops, mergeOp([]string{"Kernel", "Quirks"}, quirks))
		}
	}

	if emulate, ok := changeset.SectionDict(cs, "kernel_emulate"); ok {
		ops = append(ops, mergeOp([]string{"Kernel", "Emulate"}, emulate))
	}

	if list, ok := changeset.SectionList(cs, "kernel_patches"); ok {
		patches, err := kernelPatches(list)
		if err != nil {
			return nil, err
		}
		ops = append(ops, setOp([]string{"Kernel", "Patch"}, patches))
	}

	if args, ok := changeset.Section(cs, "boot_args"); ok {
		ops = append(ops, setOp([]string{"NVRAM", "Add", AppleBootGUID, "boot-args"}, args))
	}

	if csr, ok := changeset.Section(cs, "csr_active_config"); ok {
		value := csr
		if s, isString := csr.(string); isString {
			b, err := datafmt.HexStringToBytes(s)
			if err != nil {
				return nil, fmt.Errorf("cannot parse csr_active_config: %v", err)
			}
			value = datafmt.DataBytes(b)
		}
		ops = append(ops, setOp([]string{"NVRAM", "Add", AppleBootGUID, "csr-active-config"}, value))
	}

	if smbios, ok := changeset.SMBIOS(cs); ok {
		ops = append(ops, mergeOp([]string{"PlatformInfo", "Generic"}, smbios))
	}

	if list, ok := changeset.SectionList(cs, "acpi_add"); ok {
		for i, elem := range list {
			path, isString := elem.(string)
			if !isString {
				return nil, fmt.Errorf("acpi_add entry %d is not a file name", i)
			}
			ops = append(ops, appendOp([]string{"ACPI", "Add"}, "Path", map[string]interface{}{
				"Path":    path,
				"Enabled": true,
			}))
		}
	}

	if quirks, ok := changeset.SectionDict(cs, "acpi_quirks"); ok {
		ops = append(ops, mergeOp([]string{"ACPI", "Quirks"}, quirks))
	}

	if list, ok := changeset.SectionList(cs, "uefi_drivers"); ok {
		for i, elem := range list {
			entry, err := driverEntry(elem)
			if err != nil {
				return nil, fmt.Errorf("uefi_drivers entry %d: %v", i, err)
			}
			ops = append(ops, appendOp([]string{"UEFI", "Drivers"}, "Path", entry))
		}
	}

	if list, ok := changeset.SectionList(cs, "tools"); ok {
		for i, elem := range list {
			tool, ok := datafmt.AsDict(elem)
			if !ok {
				return nil, fmt.Errorf("tools entry %d is not a map", i)
			}
			entry := map[string]interface{}{
				"Name":            "",
				"Path":            "",
				"Enabled":         true,
				"Auxiliary":       false,
				"Arguments":       "",
				"Comment":         "",
				"Flavour":         "Auto",
				"FullNvramAccess": false,
				"RealPath":        false,
				"TextMode":        false,
			}
			for key, value := range tool {
				entry[key] = value
			}
			ops = append(ops, appendOp([]string{"Misc", "Tools"}, "Name", entry))
		}
	}

	if props, ok := changeset.SectionDict(cs, "device_properties"); ok {
		ops = append(ops, mergeOp([]string{"DeviceProperties", "Add"}, props))
	}

	if model, ok := changeset.Section(cs, "secureboot_model"); ok {
		ops = append(ops, setOp([]string{"Misc", "Security", "SecureBootModel"}, model))
	}
	if vault, ok := changeset.Section(cs, "vault"); ok {
		ops = append(ops, setOp([]string{"Misc", "Security", "Vault"}, vault))
	}
	if policy, ok := changeset.Section(cs, "scan_policy"); ok {
		ops = append(ops, setOp([]string{"Misc", "Security", "ScanPolicy"}, policy))
	}

	for _, section := range []struct {
		name string
		path []string
	}{
		{"misc_security", []string{"Misc", "Security"}},
		{"misc_boot", []string{"Misc", "Boot"}},
		{"misc_debug", []string{"Misc", "Debug"}},
		{"misc_serial", []string{"Misc", "Serial"}},
	} {
		if dict, ok := changeset.SectionDict(cs, section.name); ok {
			ops = append(ops, mergeOp(section.path, dict))
		}
	}

	if bless, ok := changeset.Section(cs, "misc_bless_override"); ok {
		ops = append(ops, setOp([]string{"Misc", "BlessOverride"}, bless))
	}

	if list, ok := changeset.SectionList(cs, "misc_entries"); ok {
		for i, elem := range list {
			entry, ok := datafmt.AsDict(elem)
			if !ok {
				return nil, fmt.Errorf("misc_entries entry %d is not a map", i)
			}
			ops = append(ops, appendOp([]string{"Misc", "Entries"}, "Path", entry))
		}
	}

	if nvram, ok := changeset.SectionDict(cs, "nvram"); ok {
		if add, ok := datafmt.AsDict(nvram["add"]); ok {
			for _, guid := range sortedKeys(add) {
				entries, ok := datafmt.AsDict(add[guid])
				if !ok {
					return nil, fmt.Errorf("nvram add for %s is not a map", guid)
				}
				ops = append(ops, mergeOp([]string{"NVRAM", "Add", guid}, entries))
			}
		}
		if del, ok := nvram["delete"]; ok {
			ops = append(ops, setOp([]string{"NVRAM", "Delete"}, del))
		}
		if writeFlash, ok := nvram["write_flash"]; ok {
			ops = append(ops, setOp([]string{"NVRAM", "WriteFlash"}, writeFlash))
		}
	}

	for _, section := range []struct {
		name string
		path []string
	}{
		{"uefi_output", []string{"UEFI", "Output"}},
		{"uefi_apfs", []string{"UEFI", "APFS"}},
		{"uefi_quirks", []string{"UEFI", "Quirks"}},
	} {
		if dict, ok := changeset.SectionDict(cs, section.name); ok {
			ops = append(ops, mergeOp(section.path, dict))
		}
	}

	if connect, ok := changeset.Section(cs, "connect_drivers"); ok {
		ops = append(ops, setOp([]string{"UEFI", "ConnectDrivers"}, connect))
	}

	// amd_vanilla_patches is a marker, not a translation: true means the
	// AMD patches were injected as kernel_patches upstream, false means
	// the template already carries them.

	return ops, nil
}

// kernelPatches normalizes the binary fields of each patch entry: int lists
// and hex strings both become bytes.
func kernelPatches(list []interface{}) ([]interface{}, error) {
	patches := make([]interface{}, 0, len(list))
	for i, elem := range list {
		dict, ok := datafmt.AsDict(elem)
		if !ok {
			return nil, fmt.Errorf("kernel_patches entry %d is not a map", i)
		}
		entry := make(map[string]interface{}, len(dict))
		for key, value := range dict {
			if datafmt.IsBinaryField(key) {
				b, err := patchFieldBytes(value)
				if err != nil {
					return nil, fmt.Errorf("kernel_patches entry %d, field %s: %v", i, key, err)
				}
				entry[key] = datafmt.DataBytes(b)
				continue
			}
			entry[key] = value
		}
		patches = append(patches, entry)
	}
	return patches, nil
}

func patchFieldBytes(v interface{}) ([]byte, error) {
	switch value := v.(type) {
	case []byte:
		return value, nil
	case datafmt.DataBytes:
		return []byte(value), nil
	case string:
		return datafmt.HexStringToBytes(value)
	case []interface{}:
		if len(value) == 0 {
			return []byte{}, nil
		}
		if b, ok := datafmt.ByteListToBytes(value); ok {
			return b, nil
		}
		return nil, fmt.Errorf("not a byte list")
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

// driverEntry accepts the plain file name shorthand as well as the full
// map form.
func driverEntry(v interface{}) (map[string]interface{}, error) {
	if path, ok := v.(string); ok {
		return map[string]interface{}{
			"Path":      path,
			"Enabled":   true,
			"LoadEarly": false,
		}, nil
	}

	dict, ok := datafmt.AsDict(v)
	if !ok {
		return nil, fmt.Errorf("not a file name or map")
	}
	path, ok := dict["path"].(string)
	if !ok {
		return nil, fmt.Errorf("missing path")
	}

	entry := map[string]interface{}{
		"Path":      path,
		"Enabled":   true,
		"LoadEarly": false,
	}
	if enabled, ok := dict["enabled"].(bool); ok {
		entry["Enabled"] = enabled
	}
	if loadEarly, ok := dict["load_early"].(bool); ok {
		entry["LoadEarly"] = loadEarly
	}
	if arguments, ok := dict["arguments"]; ok {
		entry["Arguments"] = arguments
	}
	return entry, nil
}

func setOp(path []string, value interface{}) patch.Operation {
	return patch.Operation{Op: "set", Path: path, Value: jsonValue(value)}
}

func mergeOp(path []string, entries map[string]interface{}) patch.Operation {
	safe := make(map[string]interface{}, len(entries))
	for key, value := range entries {
		safe[key] = jsonValue(value)
	}
	return patch.Operation{Op: "merge", Path: path, Entries: safe}
}

func appendOp(path []string, key string, entry map[string]interface{}) patch.Operation {
	safe, _ := jsonValue(entry).(map[string]interface{})
	return patch.Operation{Op: "append", Path: path, Key: key, Entry: safe}
}

// jsonValue rewrites raw bytes as DataBytes so a dry-run dump renders
// binary data as int lists instead of base64.
func jsonValue(v interface{}) interface{} {
	switch value := v.(type) {
	case []byte:
		return datafmt.DataBytes(value)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, inner := range value {
			out[key] = jsonValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, inner := range value {
			out[i] = jsonValue(inner)
		}
		return out
	default:
		return v
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
