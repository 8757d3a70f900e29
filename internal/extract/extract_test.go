package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozzy-project/ozzy/internal/changeset"
)

// sampleTree mimics a loaded config.plist: integers as uint64, data as
// []byte, the way the plist decoder hands them over.
func sampleTree() map[string]interface{} {
	return map[string]interface{}{
		"Booter": map[string]interface{}{
			"Quirks": map[string]interface{}{
				"AvoidRuntimeDefrag": true,
				"SetupVirtualMap":    true,
				"DevirtualiseMmio":   false,
			},
		},
		"Kernel": map[string]interface{}{
			"Add": []interface{}{
				map[string]interface{}{
					"BundlePath":     "Lilu.kext",
					"Enabled":        true,
					"ExecutablePath": "Contents/MacOS/Lilu",
				},
				map[string]interface{}{
					"BundlePath":     "NVMeFix.kext",
					"Enabled":        false,
					"ExecutablePath": "Contents/MacOS/NVMeFix",
				},
			},
			"Quirks": map[string]interface{}{
				"PanicNoKextDump":    true,
				"AppleXcpmCfgLock":   false,
				"SetApfsTrimTimeout": int64(-1),
			},
			"Emulate": map[string]interface{}{
				"DummyPowerManagement": true,
			},
			"Patch": []interface{}{},
		},
		"Misc": map[string]interface{}{
			"Boot": map[string]interface{}{
				"Timeout":    uint64(5),
				"ShowPicker": true,
				"PickerMode": "External",
			},
			"Security": map[string]interface{}{
				"SecureBootModel": "Default",
				"Vault":           "Optional",
				"ScanPolicy":      uint64(0),
			},
			"Tools": []interface{}{
				map[string]interface{}{
					"Name":      "OpenShell.efi",
					"Path":      "OpenShell.efi",
					"Enabled":   true,
					"Auxiliary": true,
				},
				map[string]interface{}{
					"Name":    "ResetSystem.efi",
					"Path":    "ResetSystem.efi",
					"Enabled": false,
				},
			},
		},
		"NVRAM": map[string]interface{}{
			"Add": map[string]interface{}{
				"7C436110-AB2A-4BBB-A880-FE41995C9F82": map[string]interface{}{
					"boot-args":         "-v keepsyms=1",
					"csr-active-config": []byte{3, 0, 0, 0},
					"prev-lang:kbd":     []byte{0x65, 0x6e},
				},
			},
			"Delete": map[string]interface{}{
				"7C436110-AB2A-4BBB-A880-FE41995C9F82": []interface{}{"boot-args"},
			},
			"WriteFlash": true,
		},
		"PlatformInfo": map[string]interface{}{
			"Generic": map[string]interface{}{
				"SystemProductName":  "iMacPro1,1",
				"SystemSerialNumber": "C02TM2ZBHX87",
				"MLB":                "C02707101GUHX87AX",
				"SystemUUID":         "A1B2C3D4-E5F6-4711-8123-DEF012345678",
				"ROM":                []byte{0x00, 0x17, 0xf2, 0x01, 0x02, 0x03},
			},
		},
		"DeviceProperties": map[string]interface{}{
			"Add": map[string]interface{}{
				"PciRoot(0x0)/Pci(0x2,0x0)": map[string]interface{}{
					"layout-id": []byte{7, 0, 0, 0},
				},
			},
		},
		"ACPI": map[string]interface{}{
			"Add": []interface{}{
				map[string]interface{}{"Path": "SSDT-EC.aml", "Enabled": true},
				map[string]interface{}{"Path": "SSDT-OLD.aml", "Enabled": false},
			},
			"Quirks": map[string]interface{}{
				"FadtEnableReset": false,
				"RebaseRegions":   true,
			},
		},
		"UEFI": map[string]interface{}{
			"ConnectDrivers": true,
			"Drivers": []interface{}{
				map[string]interface{}{
					"Path":      "OpenRuntime.efi",
					"Enabled":   true,
					"LoadEarly": false,
					"Arguments": "",
					"Comment":   "",
				},
				map[string]interface{}{
					"Path":    "OpenUsbKbDxe.efi",
					"Enabled": false,
				},
			},
		},
	}
}

func TestFullKexts(t *testing.T) {
	cs := Full(sampleTree())

	kexts, ok := changeset.SectionList(cs, "kexts")
	require.True(t, ok)
	require.Len(t, kexts, 1)

	kext := kexts[0].(map[string]interface{})
	assert.Equal(t, "Lilu.kext", kext["bundle"])
	assert.Equal(t, "Lilu", kext["exec"])
}

func TestFullSections(t *testing.T) {
	cs := Full(sampleTree())

	assert.Equal(t, "-v keepsyms=1", cs["boot_args"])

	quirks := cs["booter_quirks"].(map[string]interface{})
	assert.Equal(t, true, quirks["AvoidRuntimeDefrag"])
	assert.Equal(t, false, quirks["DevirtualiseMmio"])

	emulate := cs["kernel_emulate"].(map[string]interface{})
	assert.Equal(t, true, emulate["DummyPowerManagement"])

	assert.Equal(t, "Default", cs["secureboot_model"])
	assert.Equal(t, "Optional", cs["vault"])
	assert.Equal(t, uint64(0), cs["scan_policy"])
	assert.Equal(t, true, cs["connect_drivers"])

	acpi, _ := changeset.SectionList(cs, "acpi_add")
	assert.Equal(t, []interface{}{"SSDT-EC.aml"}, acpi)
}

func TestFullDefaultsOverlay(t *testing.T) {
	cs := Full(sampleTree())

	security := cs["misc_security"].(map[string]interface{})
	assert.Equal(t, "Optional", security["Vault"])
	assert.Equal(t, "Signed", security["DmgLoading"])
	assert.Equal(t, int64(2147483648), security["HaltLevel"])

	boot := cs["misc_boot"].(map[string]interface{})
	assert.Equal(t, "External", boot["PickerMode"])
	assert.Equal(t, "Auto", boot["PickerVariant"])
	require.Len(t, boot, 15)

	debug := cs["misc_debug"].(map[string]interface{})
	require.Len(t, debug, 8)
	assert.Equal(t, "*", debug["LogModules"])

	serial := cs["misc_serial"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"Init": false, "Override": false}, serial)

	assert.Equal(t, []interface{}{}, cs["misc_bless_override"])

	output := cs["uefi_output"].(map[string]interface{})
	require.Len(t, output, 18)
	assert.Equal(t, "BuiltinGraphics", output["TextRenderer"])

	apfs := cs["uefi_apfs"].(map[string]interface{})
	require.Len(t, apfs, 6)
	uefiQuirks := cs["uefi_quirks"].(map[string]interface{})
	require.Len(t, uefiQuirks, 16)
	assert.Equal(t, -1, uefiQuirks["ResizeGpuBars"])
}

func TestFullNvram(t *testing.T) {
	cs := Full(sampleTree())

	nvram := cs["nvram"].(map[string]interface{})
	add := nvram["add"].(map[string]interface{})
	apple := add["7C436110-AB2A-4BBB-A880-FE41995C9F82"].(map[string]interface{})

	// 4+ bytes become base64, short data stays bytes
	assert.Equal(t, "AwAAAA==", apple["csr-active-config"])
	assert.Equal(t, []byte{0x65, 0x6e}, apple["prev-lang:kbd"])
	assert.Equal(t, "-v keepsyms=1", apple["boot-args"])

	del := nvram["delete"].(map[string]interface{})
	assert.Contains(t, del, "7C436110-AB2A-4BBB-A880-FE41995C9F82")
	assert.Equal(t, true, nvram["write_flash"])
}

func TestFullDriversAndTools(t *testing.T) {
	cs := Full(sampleTree())

	drivers, _ := changeset.SectionList(cs, "uefi_drivers")
	require.Len(t, drivers, 1)
	drv := drivers[0].(map[string]interface{})
	assert.Equal(t, "OpenRuntime.efi", drv["path"])
	assert.Equal(t, "OpenRuntime.efi driver", drv["comment"])

	tools, _ := changeset.SectionList(cs, "tools")
	require.Len(t, tools, 2)
	second := tools[1].(map[string]interface{})
	assert.Equal(t, "ResetSystem.efi", second["Name"])
	assert.Equal(t, false, second["Enabled"])
}

func TestFullSMBIOS(t *testing.T) {
	cs := Full(sampleTree())

	smb, ok := changeset.SMBIOS(cs)
	require.True(t, ok)
	assert.Equal(t, "C02TM2ZBHX87", smb["SystemSerialNumber"])
	assert.Equal(t, "0017F2010203", smb["ROM"])
}

func TestFullAMDDetection(t *testing.T) {
	tree := sampleTree()
	tree["Kernel"].(map[string]interface{})["Patch"] = []interface{}{
		map[string]interface{}{
			"Comment": "algrey - Force cpuid_cores_per_package",
			"Enabled": true,
			"Find":    []byte{0xb8, 0x00},
			"Replace": []byte{0xba, 0x10},
		},
	}

	cs := Full(tree)
	assert.Equal(t, false, cs["amd_vanilla_patches"])
	_, hasPatches := changeset.Section(cs, "kernel_patches")
	assert.False(t, hasPatches)
}

func TestFullKernelPatchesHex(t *testing.T) {
	tree := sampleTree()
	tree["Kernel"].(map[string]interface{})["Patch"] = []interface{}{
		map[string]interface{}{
			"Comment": "sleep fix",
			"Enabled": true,
			"Find":    []byte{0xde, 0xad},
			"Replace": []byte{0xbe, 0xef},
		},
		map[string]interface{}{
			"Comment": "disabled patch",
			"Enabled": false,
		},
	}

	cs := Full(tree)
	patches, ok := changeset.SectionList(cs, "kernel_patches")
	require.True(t, ok)
	require.Len(t, patches, 1)

	p := patches[0].(map[string]interface{})
	assert.Equal(t, "DEAD", p["Find"])
	assert.Equal(t, "BEEF", p["Replace"])
}

func TestFilteredQuirks(t *testing.T) {
	cs := Filtered(sampleTree())

	booter := cs["booter_quirks"].(map[string]interface{})
	assert.Equal(t, true, booter["AvoidRuntimeDefrag"])
	// SetupVirtualMap true and DevirtualiseMmio false are both defaults
	assert.NotContains(t, booter, "SetupVirtualMap")
	assert.NotContains(t, booter, "DevirtualiseMmio")

	kernel := cs["kernel_quirks"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"PanicNoKextDump": true}, kernel)

	acpi := cs["acpi_quirks"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"RebaseRegions": true}, acpi)
}

func TestFilteredMiscBoot(t *testing.T) {
	cs := Filtered(sampleTree())

	// Timeout 5 and ShowPicker true match the defaults, PickerMode differs
	boot := cs["misc_boot"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"PickerMode": "External"}, boot)
}

func TestFilteredSecurity(t *testing.T) {
	cs := Filtered(sampleTree())

	_, hasModel := cs["secureboot_model"]
	assert.False(t, hasModel)
	assert.Equal(t, "Optional", cs["vault"])
	assert.Equal(t, uint64(0), cs["scan_policy"])
}

func TestFilteredData(t *testing.T) {
	cs := Filtered(sampleTree())

	assert.Equal(t, "03000000", cs["csr_active_config"])

	props := cs["device_properties"].(map[string]interface{})
	gpu := props["PciRoot(0x0)/Pci(0x2,0x0)"].(map[string]interface{})
	assert.Equal(t, "0x07000000", gpu["layout-id"])

	smb, _ := changeset.SMBIOS(cs)
	assert.Equal(t, []interface{}{0, 23, 242, 1, 2, 3}, smb["ROM"])

	emulate := cs["kernel_emulate"].(map[string]interface{})
	assert.Equal(t, true, emulate["DummyPowerManagement"])
}

func TestFilteredTools(t *testing.T) {
	cs := Filtered(sampleTree())

	tools, _ := changeset.SectionList(cs, "tools")
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]interface{})
	assert.Equal(t, "OpenShell.efi", tool["Name"])
	assert.Equal(t, true, tool["Enabled"])
	assert.Equal(t, true, tool["Auxiliary"])
}

func TestBytesToValue(t *testing.T) {
	_, keep := BytesToValue(nil)
	assert.False(t, keep)
	_, keep = BytesToValue([]byte{})
	assert.False(t, keep)

	v, keep := BytesToValue([]byte{1, 2})
	assert.True(t, keep)
	assert.Equal(t, []byte{1, 2}, v)

	v, keep = BytesToValue([]byte{1, 2, 3, 4})
	assert.True(t, keep)
	assert.Equal(t, "AQIDBA==", v)
}

func TestWriteChangeset(t *testing.T) {
	dir := t.TempDir()
	cs := changeset.Changeset{"boot_args": "-v"}

	path, err := WriteChangeset(dir, "extracted.yaml", cs, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extracted.yaml"), path)

	_, err = WriteChangeset(dir, "extracted", cs, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = WriteChangeset(dir, "extracted", cs, true)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "boot_args: -v")
}

func TestEmitYAML(t *testing.T) {
	cs := Filtered(sampleTree())

	var buf bytes.Buffer
	require.NoError(t, EmitYAML(&buf, cs))

	out := buf.String()
	assert.Contains(t, out, "boot_args: -v keepsyms=1")
	assert.Contains(t, out, "csr_active_config:")

	// section order: kexts before boot_args before smbios
	kextsAt := strings.Index(out, "kexts:")
	bootArgsAt := strings.Index(out, "boot_args:")
	smbiosAt := strings.Index(out, "smbios:")
	require.NotEqual(t, -1, kextsAt)
	require.NotEqual(t, -1, bootArgsAt)
	require.NotEqual(t, -1, smbiosAt)
	assert.Less(t, kextsAt, bootArgsAt)
	assert.Less(t, bootArgsAt, smbiosAt)
}
