// Package changeset models the declarative YAML files that drive every
// build: loading, saving with backups, section access, validation,
// comparison and merging.
//
// Section names are snake_case. Files written by the legacy converter used
// PascalCase spellings (Kexts, UefiDrivers, MiscSecurity, ...); readers
// accept both, writers only ever emit snake_case.
package changeset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ozzy-project/ozzy/internal/datafmt"
)

type Changeset map[string]interface{}

// legacyNames maps canonical section names to the spelling the legacy
// converter produced.
var legacyNames = map[string]string{
	"kexts":               "Kexts",
	"booter_quirks":       "BooterQuirks",
	"kernel_quirks":       "KernelQuirks",
	"kernel_emulate":      "KernelEmulate",
	"kernel_patches":      "KernelPatches",
	"boot_args":           "BootArgs",
	"csr_active_config":   "CsrActiveConfig",
	"acpi_add":            "AcpiAdd",
	"acpi_quirks":         "AcpiQuirks",
	"uefi_drivers":        "UefiDrivers",
	"tools":               "MiscTools",
	"device_properties":   "DeviceProperties",
	"secureboot_model":    "SecurebootModel",
	"vault":               "Vault",
	"scan_policy":         "ScanPolicy",
	"misc_security":       "MiscSecurity",
	"misc_boot":           "MiscBoot",
	"misc_debug":          "MiscDebug",
	"misc_serial":         "MiscSerial",
	"misc_bless_override": "MiscBlessOverride",
	"misc_entries":        "MiscEntries",
	"nvram":               "Nvram",
	"uefi_output":         "UefiOutput",
	"uefi_apfs":           "UefiApfs",
	"uefi_quirks":         "UefiQuirks",
	"connect_drivers":     "ConnectDrivers",
	"amd_vanilla_patches": "AmdVanillaPatches",
}

// sectionOrder fixes the emission order on save: metadata first, then the
// pipeline sections in translation order, deployment settings last.
var sectionOrder = []string{
	"metadata",
	"kexts",
	"booter_quirks",
	"kernel_quirks",
	"kernel_emulate",
	"kernel_patches",
	"boot_args",
	"csr_active_config",
	"smbios",
	"acpi_add",
	"acpi_quirks",
	"uefi_drivers",
	"tools",
	"device_properties",
	"secureboot_model",
	"vault",
	"scan_policy",
	"misc_security",
	"misc_boot",
	"misc_debug",
	"misc_serial",
	"misc_bless_override",
	"misc_entries",
	"nvram",
	"uefi_output",
	"uefi_apfs",
	"uefi_quirks",
	"connect_drivers",
	"amd_vanilla_patches",
	"proxmox",
}

// Load reads a changeset file.
func Load(path string) (Changeset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load changeset %s: %v", path, err)
	}

	var cs Changeset
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("cannot parse changeset %s: %v", path, err)
	}
	if cs == nil {
		cs = Changeset{}
	}
	return cs, nil
}

// Save writes a changeset. When the file already exists its previous
// contents are kept next to it as <path>.backup first; a failed backup is
// only a warning.
func Save(path string, cs Changeset) error {
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			logrus.Warnf("Could not back up %s: %v", path, err)
		}
	}

	data, err := Marshal(cs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal renders a changeset as YAML with sections in the canonical order.
func Marshal(cs Changeset) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range orderedKeys(cs) {
		var keyNode, valNode yaml.Node
		keyNode.SetString(key)
		if err := valNode.Encode(cs[key]); err != nil {
			return nil, fmt.Errorf("cannot encode section %s: %v", key, err)
		}
		root.Content = append(root.Content, &keyNode, &valNode)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orderedKeys(cs Changeset) []string {
	var keys []string
	seen := map[string]bool{}
	for _, key := range sectionOrder {
		if _, ok := cs[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}
	var rest []string
	for key := range cs {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// CanonicalName resolves either spelling of a section name to the canonical
// one. The second return is false for sections this tool does not know.
func CanonicalName(name string) (string, bool) {
	switch name {
	case "metadata", "proxmox", "smbios":
		return name, true
	case "platform_info", "PlatformInfo":
		return "smbios", true
	}
	if _, ok := legacyNames[name]; ok {
		return name, true
	}
	for canonical, legacy := range legacyNames {
		if legacy == name {
			return canonical, true
		}
	}
	return "", false
}

// Section returns a section by canonical name, falling back to the legacy
// spelling.
func Section(cs Changeset, name string) (interface{}, bool) {
	if v, ok := cs[name]; ok {
		return v, true
	}
	if legacy, ok := legacyNames[name]; ok {
		if v, ok := cs[legacy]; ok {
			return v, true
		}
	}
	return nil, false
}

// SectionDict is Section for map-valued sections.
func SectionDict(cs Changeset, name string) (map[string]interface{}, bool) {
	v, ok := Section(cs, name)
	if !ok {
		return nil, false
	}
	return datafmt.AsDict(v)
}

// SectionList is Section for list-valued sections.
func SectionList(cs Changeset, name string) ([]interface{}, bool) {
	v, ok := Section(cs, name)
	if !ok {
		return nil, false
	}
	list, ok := v.([]interface{})
	return list, ok
}

// SMBIOS returns the smbios section, accepting the legacy
// PlatformInfo/generic nesting.
func SMBIOS(cs Changeset) (map[string]interface{}, bool) {
	if dict, ok := SectionDict(cs, "smbios"); ok {
		return dict, true
	}
	for _, outer := range []string{"platform_info", "PlatformInfo"} {
		dict, ok := datafmt.AsDict(cs[outer])
		if !ok {
			continue
		}
		for _, inner := range []string{"generic", "Generic"} {
			if generic, ok := datafmt.AsDict(dict[inner]); ok {
				return generic, true
			}
		}
	}
	return nil, false
}

// SetSection stores a section under its canonical name, clearing a legacy
// spelling if one was present.
func SetSection(cs Changeset, name string, value interface{}) {
	if legacy, ok := legacyNames[name]; ok {
		delete(cs, legacy)
	}
	cs[name] = value
}

// RemoveSection deletes a section. Removing a section that is not present
// logs a warning and reports false.
func RemoveSection(cs Changeset, name string) bool {
	for _, key := range []string{name, legacyNames[name]} {
		if key == "" {
			continue
		}
		if _, ok := cs[key]; ok {
			delete(cs, key)
			return true
		}
	}
	logrus.Warnf("Section %s not present in changeset", name)
	return false
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
