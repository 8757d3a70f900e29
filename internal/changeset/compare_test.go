package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	a := Changeset{
		"boot_args":     "-v",
		"booter_quirks": map[string]interface{}{"AvoidRuntimeDefrag": true, "EnableWriteUnprotector": false},
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext"},
		},
		"vault": "Optional",
	}
	b := Changeset{
		"boot_args":     "-v debug=0x100",
		"booter_quirks": map[string]interface{}{"AvoidRuntimeDefrag": true, "SetupVirtualMap": true},
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext"},
			map[string]interface{}{"bundle": "VirtualSMC.kext"},
		},
		"scan_policy": 0,
	}

	cmp := Compare(a, b)

	assert.Equal(t, []string{"vault"}, cmp.OnlyInFirst)
	assert.Equal(t, []string{"scan_policy"}, cmp.OnlyInSecond)
	assert.Empty(t, cmp.Identical)

	require.Contains(t, cmp.Different, "boot_args")
	assert.Equal(t, []string{"-v -> -v debug=0x100"}, cmp.Different["boot_args"])

	require.Contains(t, cmp.Different, "booter_quirks")
	lines := cmp.Different["booter_quirks"]
	assert.Contains(t, lines, "- EnableWriteUnprotector: false (only in first)")
	assert.Contains(t, lines, "+ SetupVirtualMap: true (only in second)")

	require.Contains(t, cmp.Different, "kexts")
	assert.Contains(t, cmp.Different["kexts"], "Length: 1 -> 2")
}

func TestCompareIdentical(t *testing.T) {
	a := Changeset{"boot_args": "-v"}
	b := Changeset{"boot_args": "-v"}

	cmp := Compare(a, b)
	assert.Equal(t, []string{"boot_args"}, cmp.Identical)
	assert.Empty(t, cmp.Different)
}

func TestCompareNestedDict(t *testing.T) {
	a := Changeset{"device_properties": map[string]interface{}{
		"PciRoot(0x0)": map[string]interface{}{"layout-id": 1},
	}}
	b := Changeset{"device_properties": map[string]interface{}{
		"PciRoot(0x0)": map[string]interface{}{"layout-id": 7},
	}}

	cmp := Compare(a, b)
	require.Contains(t, cmp.Different, "device_properties")
	assert.Equal(t, []string{"~ PciRoot(0x0).layout-id: 1 -> 7"}, cmp.Different["device_properties"])
}

func TestMerge(t *testing.T) {
	base := Changeset{
		"boot_args":     "-v",
		"booter_quirks": map[string]interface{}{"AvoidRuntimeDefrag": true, "SetupVirtualMap": false},
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext"},
		},
	}
	overlay := Changeset{
		"boot_args":     "-v debug=0x100",
		"booter_quirks": map[string]interface{}{"SetupVirtualMap": true},
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "VirtualSMC.kext"},
		},
		"scan_policy": 0,
	}

	merged := Merge(base, overlay)

	assert.Equal(t, "-v debug=0x100", merged["boot_args"])

	quirks := merged["booter_quirks"].(map[string]interface{})
	assert.Equal(t, true, quirks["AvoidRuntimeDefrag"])
	assert.Equal(t, true, quirks["SetupVirtualMap"])

	kexts := merged["kexts"].([]interface{})
	require.Len(t, kexts, 1)
	assert.Equal(t, "VirtualSMC.kext", kexts[0].(map[string]interface{})["bundle"])

	assert.Equal(t, 0, merged["scan_policy"])

	// base must not be touched
	assert.Equal(t, "-v", base["boot_args"])
	assert.Equal(t, false, base["booter_quirks"].(map[string]interface{})["SetupVirtualMap"])
}
