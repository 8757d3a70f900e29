// Package extract converts a built config.plist back into changeset YAML.
// Full mode captures every supported section with defaults filled in so the
// result is self-contained; Filtered mode keeps only values that differ
// from the OpenCore defaults, for quick inspection.
package extract

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/ocplist"
	"github.com/ozzy-project/ozzy/internal/translate"
)

// amdCommentMarkers in Kernel.Patch comments mean the patch set is the AMD
// vanilla one and is represented as a flag instead of a patch list.
var amdCommentMarkers = []string{"amd", "algrey", "cpuid_cores_per_package"}

var smbiosFields = []string{"SystemProductName", "SystemSerialNumber", "MLB", "SystemUUID"}

// BytesToValue converts plist data for YAML emission: empty data is
// dropped, 4 bytes and up become a base64 string, shorter values stay
// bytes. The second return is false when the value should be omitted.
func BytesToValue(b []byte) (interface{}, bool) {
	if len(b) == 0 {
		return nil, false
	}
	if len(b) >= 4 {
		return base64.StdEncoding.EncodeToString(b), true
	}
	return b, true
}

// Full extracts every supported section.
func Full(tree map[string]interface{}) changeset.Changeset {
	cs := changeset.Changeset{}

	if kexts := enabledKexts(tree); len(kexts) > 0 {
		cs["kexts"] = kexts
	}

	copySection(cs, tree, "booter_quirks", "Booter", "Quirks")
	copySection(cs, tree, "kernel_quirks", "Kernel", "Quirks")
	copySection(cs, tree, "kernel_emulate", "Kernel", "Emulate")

	if patches, amd := kernelPatches(tree); amd {
		cs["amd_vanilla_patches"] = false
	} else if len(patches) > 0 {
		cs["kernel_patches"] = patches
	}

	if args, ok := ocplist.GetPath(tree, "NVRAM", "Add", translate.AppleBootGUID, "boot-args"); ok {
		cs["boot_args"] = args
	}

	if smb := extractSMBIOS(tree, true); smb != nil {
		cs["smbios"] = smb
	}

	if paths := enabledACPI(tree); len(paths) > 0 {
		cs["acpi_add"] = paths
	}
	copySection(cs, tree, "acpi_quirks", "ACPI", "Quirks")

	if drivers := enabledDrivers(tree, true); len(drivers) > 0 {
		cs["uefi_drivers"] = drivers
	}

	if tools := allTools(tree); len(tools) > 0 {
		cs["tools"] = tools
	}

	if props, ok := ocplist.GetPath(tree, "DeviceProperties", "Add"); ok {
		if converted, keep := convertValue(props); keep {
			cs["device_properties"] = converted
		}
	}

	if security, ok := ocplist.GetPath(tree, "Misc", "Security"); ok {
		if dict, ok := security.(map[string]interface{}); ok {
			if model, ok := dict["SecureBootModel"]; ok {
				cs["secureboot_model"] = model
			}
			if vault, ok := dict["Vault"]; ok {
				cs["vault"] = vault
			}
			if policy, ok := dict["ScanPolicy"]; ok {
				cs["scan_policy"] = policy
			}
		}
	}

	cs["misc_security"] = sectionWithDefaults(tree, miscSecurityDefaults, "Misc", "Security")
	cs["misc_boot"] = sectionWithDefaults(tree, miscBootDefaults, "Misc", "Boot")
	cs["misc_debug"] = sectionWithDefaults(tree, miscDebugDefaults, "Misc", "Debug")
	cs["misc_serial"] = sectionWithDefaults(tree, miscSerialDefaults, "Misc", "Serial")

	bless := []interface{}{}
	if v, ok := ocplist.GetPath(tree, "Misc", "BlessOverride"); ok {
		if arr, ok := v.([]interface{}); ok {
			bless = arr
		}
	}
	cs["misc_bless_override"] = bless

	if entries := miscEntries(tree); len(entries) > 0 {
		cs["misc_entries"] = entries
	}

	if nvram := nvramSection(tree); len(nvram) > 0 {
		cs["nvram"] = nvram
	}

	cs["uefi_output"] = sectionWithDefaults(tree, uefiOutputDefaults, "UEFI", "Output")
	cs["uefi_apfs"] = sectionWithDefaults(tree, uefiAPFSDefaults, "UEFI", "APFS")
	cs["uefi_quirks"] = sectionWithDefaults(tree, uefiQuirksDefaults, "UEFI", "Quirks")

	if connect, ok := ocplist.GetPath(tree, "UEFI", "ConnectDrivers"); ok {
		cs["connect_drivers"] = connect
	}

	return cs
}

// Filtered extracts only what differs from the OpenCore defaults.
func Filtered(tree map[string]interface{}) changeset.Changeset {
	cs := changeset.Changeset{}

	if kexts := enabledKexts(tree); len(kexts) > 0 {
		cs["kexts"] = kexts
	}

	nonDefaultSection(cs, tree, "booter_quirks", booterQuirkDefaults, "Booter", "Quirks")
	nonDefaultSection(cs, tree, "kernel_quirks", kernelQuirkDefaults, "Kernel", "Quirks")

	if dpm, ok := ocplist.GetPath(tree, "Kernel", "Emulate", "DummyPowerManagement"); ok {
		if enabled, _ := dpm.(bool); enabled {
			cs["kernel_emulate"] = map[string]interface{}{"DummyPowerManagement": true}
		}
	}

	if args, ok := ocplist.GetPath(tree, "NVRAM", "Add", translate.AppleBootGUID, "boot-args"); ok {
		cs["boot_args"] = args
	}

	if csr, ok := ocplist.GetPath(tree, "NVRAM", "Add", translate.AppleBootGUID, "csr-active-config"); ok {
		if b, ok := csr.([]byte); ok && len(b) > 0 {
			cs["csr_active_config"] = csrHex(b)
		}
	}

	if smb := extractSMBIOS(tree, false); smb != nil {
		cs["smbios"] = smb
	}

	if paths := enabledACPI(tree); len(paths) > 0 {
		cs["acpi_add"] = paths
	}
	nonDefaultSection(cs, tree, "acpi_quirks", acpiQuirkDefaults, "ACPI", "Quirks")

	if drivers := enabledDrivers(tree, false); len(drivers) > 0 {
		cs["uefi_drivers"] = drivers
	}

	if tools := enabledTools(tree); len(tools) > 0 {
		cs["tools"] = tools
	}

	if props, ok := ocplist.GetPath(tree, "DeviceProperties", "Add"); ok {
		if dict, ok := props.(map[string]interface{}); ok && len(dict) > 0 {
			cs["device_properties"] = hexValue(dict)
		}
	}

	if security, ok := ocplist.GetPath(tree, "Misc", "Security"); ok {
		if dict, ok := security.(map[string]interface{}); ok {
			if model, ok := dict["SecureBootModel"].(string); ok && model != "Default" {
				cs["secureboot_model"] = model
			}
			if vault, ok := dict["Vault"].(string); ok && vault != "Secure" {
				cs["vault"] = vault
			}
			if policy, ok := dict["ScanPolicy"]; ok {
				cs["scan_policy"] = policy
			}
		}
	}

	nonDefaultSection(cs, tree, "misc_boot", miscBootFilteredDefaults, "Misc", "Boot")

	return cs
}

// WriteChangeset saves an extracted changeset under the changesets
// directory. An existing file is only replaced with force.
func WriteChangeset(dir, name string, cs changeset.Changeset, force bool) (string, error) {
	name = common.TrimChangesetName(name)
	path := filepath.Join(dir, name+".yaml")

	if _, err := os.Stat(path); err == nil && !force {
		logrus.Errorf("Changeset already exists: %s", path)
		return "", fmt.Errorf("changeset %s already exists, use --force to overwrite", name)
	}

	if err := common.EnsureDir(dir); err != nil {
		return "", err
	}
	if err := changeset.Save(path, cs); err != nil {
		return "", err
	}
	return path, nil
}

// EmitYAML writes the changeset in section order, for stdout use.
func EmitYAML(w io.Writer, cs changeset.Changeset) error {
	data, err := changeset.Marshal(cs)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func enabledKexts(tree map[string]interface{}) []interface{} {
	var kexts []interface{}
	for _, entry := range arrayAt(tree, "Kernel", "Add") {
		if !entryEnabled(entry) {
			continue
		}
		bundle, _ := entry["BundlePath"].(string)
		execPath, _ := entry["ExecutablePath"].(string)
		kexts = append(kexts, map[string]interface{}{
			"bundle": bundle,
			"exec":   strings.TrimPrefix(execPath, "Contents/MacOS/"),
		})
	}
	return kexts
}

// kernelPatches returns the enabled patch entries, or amd=true when the
// comments identify the AMD vanilla patch set.
func kernelPatches(tree map[string]interface{}) (patches []interface{}, amd bool) {
	entries := arrayAt(tree, "Kernel", "Patch")

	for _, entry := range entries {
		comment, _ := entry["Comment"].(string)
		lower := strings.ToLower(comment)
		for _, marker := range amdCommentMarkers {
			if strings.Contains(lower, marker) {
				return nil, true
			}
		}
	}

	for _, entry := range entries {
		if !entryEnabled(entry) {
			continue
		}
		out := make(map[string]interface{}, len(entry))
		for key, value := range entry {
			if b, ok := value.([]byte); ok && datafmt.IsBinaryField(key) {
				out[key] = datafmt.BytesToHexString(b)
				continue
			}
			out[key] = value
		}
		patches = append(patches, out)
	}
	return patches, false
}

func extractSMBIOS(tree map[string]interface{}, romAsHex bool) map[string]interface{} {
	generic, ok := ocplist.GetPath(tree, "PlatformInfo", "Generic")
	if !ok {
		return nil
	}
	dict, ok := generic.(map[string]interface{})
	if !ok {
		return nil
	}

	smb := map[string]interface{}{}
	for _, field := range smbiosFields {
		if v, ok := dict[field]; ok {
			smb[field] = v
		}
	}
	if rom, err := datafmt.NormalizeROM(dict["ROM"]); err == nil && len(rom) > 0 {
		if romAsHex {
			smb["ROM"] = datafmt.BytesToHexString(rom)
		} else {
			smb["ROM"] = intList(rom)
		}
	}

	if len(smb) == 0 {
		return nil
	}
	return smb
}

func enabledACPI(tree map[string]interface{}) []interface{} {
	var paths []interface{}
	for _, entry := range arrayAt(tree, "ACPI", "Add") {
		if !entryEnabled(entry) {
			continue
		}
		if path, ok := entry["Path"].(string); ok {
			paths = append(paths, path)
		}
	}
	return paths
}

func enabledDrivers(tree map[string]interface{}, defaultComment bool) []interface{} {
	var drivers []interface{}
	for _, entry := range arrayAt(tree, "UEFI", "Drivers") {
		if !entryEnabled(entry) {
			continue
		}
		path, _ := entry["Path"].(string)
		loadEarly, _ := entry["LoadEarly"].(bool)
		arguments, _ := entry["Arguments"].(string)
		comment, _ := entry["Comment"].(string)
		if comment == "" && defaultComment {
			comment = path + " driver"
		}
		drivers = append(drivers, map[string]interface{}{
			"path":       path,
			"enabled":    true,
			"load_early": loadEarly,
			"arguments":  arguments,
			"comment":    comment,
		})
	}
	return drivers
}

func allTools(tree map[string]interface{}) []interface{} {
	var tools []interface{}
	for _, entry := range arrayAt(tree, "Misc", "Tools") {
		name, _ := entry["Name"].(string)
		path, _ := entry["Path"].(string)
		enabled, _ := entry["Enabled"].(bool)
		tools = append(tools, map[string]interface{}{
			"Name":    name,
			"Path":    path,
			"Enabled": enabled,
		})
	}
	return tools
}

func enabledTools(tree map[string]interface{}) []interface{} {
	var tools []interface{}
	for _, entry := range arrayAt(tree, "Misc", "Tools") {
		if !entryEnabled(entry) {
			continue
		}
		name, _ := entry["Name"].(string)
		path, _ := entry["Path"].(string)
		auxiliary := true
		if v, ok := entry["Auxiliary"].(bool); ok {
			auxiliary = v
		}
		tools = append(tools, map[string]interface{}{
			"Name":      name,
			"Path":      path,
			"Enabled":   true,
			"Auxiliary": auxiliary,
		})
	}
	return tools
}

func miscEntries(tree map[string]interface{}) []interface{} {
	var entries []interface{}
	for _, entry := range arrayAt(tree, "Misc", "Entries") {
		out := map[string]interface{}{
			"Arguments": "",
			"Auxiliary": false,
			"Comment":   "",
			"Enabled":   false,
			"Flavour":   "Auto",
			"Name":      "",
			"Path":      "",
			"TextMode":  false,
		}
		for key, value := range entry {
			if converted, keep := convertValue(value); keep {
				out[key] = converted
			}
		}
		entries = append(entries, out)
	}
	return entries
}

func nvramSection(tree map[string]interface{}) map[string]interface{} {
	nvram := map[string]interface{}{}

	if add, ok := ocplist.GetPath(tree, "NVRAM", "Add"); ok {
		if converted, keep := convertValue(add); keep {
			if dict, ok := converted.(map[string]interface{}); ok && len(dict) > 0 {
				nvram["add"] = dict
			}
		}
	}
	if del, ok := ocplist.GetPath(tree, "NVRAM", "Delete"); ok {
		if dict, ok := del.(map[string]interface{}); ok && len(dict) > 0 {
			nvram["delete"] = dict
		}
	}
	if writeFlash, ok := ocplist.GetPath(tree, "NVRAM", "WriteFlash"); ok {
		nvram["write_flash"] = writeFlash
	}

	return nvram
}

// copySection copies a whole dict section, converting data values.
func copySection(cs changeset.Changeset, tree map[string]interface{}, name string, path ...string) {
	v, ok := ocplist.GetPath(tree, path...)
	if !ok {
		return
	}
	dict, ok := v.(map[string]interface{})
	if !ok || len(dict) == 0 {
		return
	}
	if converted, keep := convertValue(dict); keep {
		cs[name] = converted
	}
}

// sectionWithDefaults builds a section from the defaults overlaid with the
// actual values, so the changeset stands on its own.
func sectionWithDefaults(tree map[string]interface{}, defaults map[string]interface{}, path ...string) map[string]interface{} {
	out := make(map[string]interface{}, len(defaults))
	for key, value := range defaults {
		out[key] = value
	}

	if v, ok := ocplist.GetPath(tree, path...); ok {
		if dict, ok := v.(map[string]interface{}); ok {
			for key, value := range dict {
				if converted, keep := convertValue(value); keep {
					out[key] = converted
				}
			}
		}
	}
	return out
}

// nonDefaultSection keeps only the values that differ from the defaults.
func nonDefaultSection(cs changeset.Changeset, tree map[string]interface{}, name string, defaults map[string]interface{}, path ...string) {
	v, ok := ocplist.GetPath(tree, path...)
	if !ok {
		return
	}
	dict, ok := v.(map[string]interface{})
	if !ok {
		return
	}

	out := map[string]interface{}{}
	for key, value := range dict {
		if def, known := defaults[key]; known && ocplist.Equal(value, def) {
			continue
		}
		if converted, keep := convertValue(value); keep {
			out[key] = converted
		}
	}
	if len(out) > 0 {
		cs[name] = out
	}
}

func convertValue(v interface{}) (interface{}, bool) {
	switch value := v.(type) {
	case []byte:
		return BytesToValue(value)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, inner := range value {
			if converted, keep := convertValue(inner); keep {
				out[key] = converted
			}
		}
		return out, true
	case []interface{}:
		out := make([]interface{}, 0, len(value))
		for _, inner := range value {
			if converted, keep := convertValue(inner); keep {
				out = append(out, converted)
			}
		}
		return out, true
	default:
		return v, true
	}
}

// hexValue renders data as 0x-prefixed hex for the filtered device
// properties view.
func hexValue(v interface{}) interface{} {
	switch value := v.(type) {
	case []byte:
		return "0x" + datafmt.BytesToHexString(value)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, inner := range value {
			out[key] = hexValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, inner := range value {
			out[i] = hexValue(inner)
		}
		return out
	default:
		return v
	}
}

// csrHex renders csr-active-config as uppercase hex padded to 8 digits,
// keeping the little-endian byte order readable.
func csrHex(b []byte) string {
	hex := datafmt.BytesToHexString(b)
	for len(hex) < 8 {
		hex += "0"
	}
	return hex
}

func arrayAt(tree map[string]interface{}, path ...string) []map[string]interface{} {
	v, ok := ocplist.GetPath(tree, path...)
	if !ok {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var dicts []map[string]interface{}
	for _, elem := range arr {
		if dict, ok := elem.(map[string]interface{}); ok {
			dicts = append(dicts, dict)
		}
	}
	return dicts
}

func entryEnabled(entry map[string]interface{}) bool {
	enabled, _ := entry["Enabled"].(bool)
	return enabled
}

func intList(b []byte) []interface{} {
	out := make([]interface{}, len(b))
	for i, c := range b {
		out[i] = int(c)
	}
	return out
}
