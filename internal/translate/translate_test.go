package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/ocplist"
	"github.com/ozzy-project/ozzy/internal/patch"
)

func TestTranslateKexts(t *testing.T) {
	cs := changeset.Changeset{
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext", "exec": "Lilu"},
			map[string]interface{}{"bundle": "USBMap.kext", "exec": ""},
		},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	assert.Equal(t, "append", ops[0].Op)
	assert.Equal(t, []string{"Kernel", "Add"}, ops[0].Path)
	assert.Equal(t, "BundlePath", ops[0].Key)
	assert.Equal(t, "Lilu.kext", ops[0].Entry["BundlePath"])
	assert.Equal(t, "Contents/MacOS/Lilu", ops[0].Entry["ExecutablePath"])
	assert.Equal(t, "Contents/Info.plist", ops[0].Entry["PlistPath"])
	assert.Equal(t, true, ops[0].Entry["Enabled"])

	// codeless kexts get an empty executable path
	assert.Equal(t, "", ops[1].Entry["ExecutablePath"])
}

func TestTranslateOrder(t *testing.T) {
	cs := changeset.Changeset{
		"boot_args":     "-v",
		"kexts":         []interface{}{map[string]interface{}{"bundle": "Lilu.kext", "exec": "Lilu"}},
		"booter_quirks": map[string]interface{}{"AvoidRuntimeDefrag": true},
		"smbios":        map[string]interface{}{"SystemProductName": "iMacPro1,1"},
		"uefi_quirks":   map[string]interface{}{"ReleaseUsbOwnership": true},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 5)

	// fixed order regardless of map iteration: kexts, booter_quirks,
	// boot_args, smbios, uefi_quirks
	assert.Equal(t, []string{"Kernel", "Add"}, ops[0].Path)
	assert.Equal(t, []string{"Booter", "Quirks"}, ops[1].Path)
	assert.Equal(t, []string{"NVRAM", "Add", AppleBootGUID, "boot-args"}, ops[2].Path)
	assert.Equal(t, []string{"PlatformInfo", "Generic"}, ops[3].Path)
	assert.Equal(t, []string{"UEFI", "Quirks"}, ops[4].Path)
}

func TestTranslateDummyPowerManagement(t *testing.T) {
	cs := changeset.Changeset{
		"kernel_quirks": map[string]interface{}{
			"DummyPowerManagement": true,
			"PanicNoKextDump":      true,
		},
	}

	_, err := Translate(cs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel_emulate")
}

func TestTranslateKernelPatches(t *testing.T) {
	cs := changeset.Changeset{
		"kernel_patches": []interface{}{
			map[string]interface{}{
				"Comment": "test patch",
				"Find":    "DE AD BE EF",
				"Replace": []interface{}{1, 2, 3, 4},
				"Mask":    []interface{}{},
				"Enabled": true,
			},
		},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "set", ops[0].Op)
	assert.Equal(t, []string{"Kernel", "Patch"}, ops[0].Path)

	entry := ops[0].Value.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, datafmt.DataBytes{0xde, 0xad, 0xbe, 0xef}, entry["Find"])
	assert.Equal(t, datafmt.DataBytes{1, 2, 3, 4}, entry["Replace"])
	assert.Equal(t, datafmt.DataBytes{}, entry["Mask"])
	assert.Equal(t, "test patch", entry["Comment"])
}

func TestTranslateKernelPatchesBadHex(t *testing.T) {
	cs := changeset.Changeset{
		"kernel_patches": []interface{}{
			map[string]interface{}{"Find": "not hex"},
		},
	}

	_, err := Translate(cs)
	assert.Error(t, err)
}

func TestTranslateCsrActiveConfig(t *testing.T) {
	ops, err := Translate(changeset.Changeset{"csr_active_config": "03000000"})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, []string{"NVRAM", "Add", AppleBootGUID, "csr-active-config"}, ops[0].Path)
	assert.Equal(t, datafmt.DataBytes{3, 0, 0, 0}, ops[0].Value)

	// a non-string value passes through for the patch engine to coerce
	ops, err = Translate(changeset.Changeset{"csr_active_config": []interface{}{3, 0, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{3, 0, 0, 0}, ops[0].Value)
}

func TestTranslateUefiDrivers(t *testing.T) {
	cs := changeset.Changeset{
		"uefi_drivers": []interface{}{
			"OpenRuntime.efi",
			map[string]interface{}{"path": "HfsPlus.efi", "enabled": true, "load_early": false},
			map[string]interface{}{"path": "OpenCanopy.efi", "arguments": "--force"},
		},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	first := ops[0].Entry
	assert.Equal(t, "OpenRuntime.efi", first["Path"])
	assert.Equal(t, true, first["Enabled"])
	assert.Equal(t, false, first["LoadEarly"])
	_, hasArgs := first["Arguments"]
	assert.False(t, hasArgs)

	third := ops[2].Entry
	assert.Equal(t, "--force", third["Arguments"])
}

func TestTranslateTools(t *testing.T) {
	cs := changeset.Changeset{
		"tools": []interface{}{
			map[string]interface{}{"Name": "OpenShell.efi", "Path": "OpenShell.efi", "Auxiliary": true},
		},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	entry := ops[0].Entry
	assert.Equal(t, "OpenShell.efi", entry["Name"])
	assert.Equal(t, true, entry["Enabled"])
	assert.Equal(t, true, entry["Auxiliary"])
	assert.Equal(t, "Auto", entry["Flavour"])
	assert.Equal(t, "", entry["Arguments"])
	assert.Equal(t, false, entry["FullNvramAccess"])
}

func TestTranslateNvram(t *testing.T) {
	cs := changeset.Changeset{
		"nvram": map[string]interface{}{
			"add": map[string]interface{}{
				"7C436110-AB2A-4BBB-A880-FE41995C9F82": map[string]interface{}{"prev-lang:kbd": "en-US:0"},
				"4D1EDE05-38C7-4A6A-9CC6-4BCCA8B38C14": map[string]interface{}{"DefaultBackgroundColor": []interface{}{0, 0, 0, 0}},
			},
			"delete": map[string]interface{}{
				"7C436110-AB2A-4BBB-A880-FE41995C9F82": []interface{}{"boot-args"},
			},
			"write_flash": true,
		},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 4)

	// GUID merges come out sorted
	assert.Equal(t, []string{"NVRAM", "Add", "4D1EDE05-38C7-4A6A-9CC6-4BCCA8B38C14"}, ops[0].Path)
	assert.Equal(t, []string{"NVRAM", "Add", "7C436110-AB2A-4BBB-A880-FE41995C9F82"}, ops[1].Path)
	assert.Equal(t, []string{"NVRAM", "Delete"}, ops[2].Path)
	assert.Equal(t, "set", ops[2].Op)
	assert.Equal(t, []string{"NVRAM", "WriteFlash"}, ops[3].Path)
	assert.Equal(t, true, ops[3].Value)
}

func TestTranslateLegacyNames(t *testing.T) {
	cs := changeset.Changeset{
		"Kexts":        []interface{}{map[string]interface{}{"bundle": "Lilu.kext", "exec": "Lilu"}},
		"MiscSecurity": map[string]interface{}{"Vault": "Optional"},
		"PlatformInfo": map[string]interface{}{
			"generic": map[string]interface{}{"SystemProductName": "iMacPro1,1"},
		},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"Kernel", "Add"}, ops[0].Path)
	assert.Equal(t, []string{"PlatformInfo", "Generic"}, ops[1].Path)
	assert.Equal(t, []string{"Misc", "Security"}, ops[2].Path)
}

func TestTranslateSkipsMetadataProxmoxUnknown(t *testing.T) {
	cs := changeset.Changeset{
		"metadata":   map[string]interface{}{"description": "test"},
		"proxmox":    map[string]interface{}{"overrides": map[string]interface{}{"cores": "8"}},
		"qemu_agent": true,
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestTranslateAmdVanillaPatchesMarker(t *testing.T) {
	ops, err := Translate(changeset.Changeset{"amd_vanilla_patches": false})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestTranslateSecuritySetters(t *testing.T) {
	cs := changeset.Changeset{
		"secureboot_model": "Disabled",
		"vault":            "Optional",
		"scan_policy":      0,
	}

	ops, err := Translate(cs)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"Misc", "Security", "SecureBootModel"}, ops[0].Path)
	assert.Equal(t, []string{"Misc", "Security", "Vault"}, ops[1].Path)
	assert.Equal(t, []string{"Misc", "Security", "ScanPolicy"}, ops[2].Path)
	assert.Equal(t, 0, ops[2].Value)
}

// Translating and applying a realistic changeset must produce the expected
// plist structure end to end.
func TestTranslateAndApply(t *testing.T) {
	cs := changeset.Changeset{
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext", "exec": "Lilu"},
			map[string]interface{}{"bundle": "VirtualSMC.kext", "exec": "VirtualSMC"},
		},
		"booter_quirks":     map[string]interface{}{"AvoidRuntimeDefrag": true},
		"kernel_quirks":     map[string]interface{}{"PanicNoKextDump": true},
		"boot_args":         "-v keepsyms=1",
		"csr_active_config": "03000000",
		"smbios": map[string]interface{}{
			"SystemProductName":  "iMacPro1,1",
			"SystemSerialNumber": "C02TM2ZBHX87",
		},
		"acpi_add":     []interface{}{"SSDT-EC.aml"},
		"uefi_drivers": []interface{}{"OpenRuntime.efi"},
	}

	ops, err := Translate(cs)
	require.NoError(t, err)

	tree := map[string]interface{}{}
	require.NoError(t, patch.Apply(tree, ops))
	patch.PostProcess(tree)

	adds, _ := ocplist.GetPath(tree, "Kernel", "Add")
	require.Len(t, adds.([]interface{}), 2)

	args, _ := ocplist.GetPath(tree, "NVRAM", "Add", AppleBootGUID, "boot-args")
	assert.Equal(t, "-v keepsyms=1", args)

	csr, _ := ocplist.GetPath(tree, "NVRAM", "Add", AppleBootGUID, "csr-active-config")
	assert.Equal(t, []byte{3, 0, 0, 0}, csr)

	serial, _ := ocplist.GetPath(tree, "PlatformInfo", "Generic", "SystemSerialNumber")
	assert.Equal(t, "C02TM2ZBHX87", serial)

	acpi, _ := ocplist.GetPath(tree, "ACPI", "Add")
	assert.Equal(t, "SSDT-EC.aml", acpi.([]interface{})[0].(map[string]interface{})["Path"])
}
