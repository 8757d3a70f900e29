package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHappyPath(t *testing.T) {
	cs := Changeset{
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext", "exec": "Lilu"},
		},
		"booter_quirks": map[string]interface{}{"AvoidRuntimeDefrag": true},
		"kernel_quirks": map[string]interface{}{"AppleXcpmCfgLock": true},
		"smbios": map[string]interface{}{
			"SystemProductName":  "iMacPro1,1",
			"SystemSerialNumber": "SERIAL",
			"MLB":                "MLB",
			"SystemUUID":         "UUID",
			"ROM":                []interface{}{0, 23, 242, 1, 2, 3},
		},
	}

	v := Validate(cs)
	assert.True(t, v.OK())
	assert.Empty(t, v.Warnings)
}

func TestValidateRecommendedMissing(t *testing.T) {
	v := Validate(Changeset{})
	assert.True(t, v.OK())
	assert.Len(t, v.Warnings, 3)
}

func TestValidateKextProblems(t *testing.T) {
	v := Validate(Changeset{"kexts": "not a list"})
	assert.False(t, v.OK())

	v = Validate(Changeset{"kexts": []interface{}{"not a dict"}})
	assert.False(t, v.OK())

	v = Validate(Changeset{"kexts": []interface{}{map[string]interface{}{"exec": "Lilu"}}})
	assert.False(t, v.OK())

	v = Validate(Changeset{"kexts": []interface{}{map[string]interface{}{"bundle": "Lilu.kext"}}})
	assert.True(t, v.OK())
	assert.Contains(t, v.Warnings[len(v.Warnings)-1], "exec")
}

func TestValidateSMBIOS(t *testing.T) {
	v := Validate(Changeset{"smbios": 42})
	assert.False(t, v.OK())

	v = Validate(Changeset{"smbios": map[string]interface{}{"SystemProductName": "iMacPro1,1"}})
	assert.True(t, v.OK())
	warnings := 0
	for _, w := range v.Warnings {
		if len(w) > 6 && w[:6] == "smbios" {
			warnings++
		}
	}
	assert.Equal(t, 4, warnings)
}

func TestValidateProxmoxInfo(t *testing.T) {
	v := Validate(Changeset{"proxmox": map[string]interface{}{"overrides": map[string]interface{}{}}})
	require.Len(t, v.Info, 1)
}

func TestSummarize(t *testing.T) {
	cs := Changeset{
		"kexts": []interface{}{
			map[string]interface{}{"bundle": "Lilu.kext", "exec": "Lilu"},
			map[string]interface{}{"bundle": "VirtualSMC.kext", "exec": "VirtualSMC"},
		},
		"smbios":            map[string]interface{}{"SystemProductName": "iMacPro1,1"},
		"device_properties": map[string]interface{}{},
		"boot_args":         "-v",
		"proxmox":           map[string]interface{}{},
	}

	s := Summarize(cs)
	assert.Equal(t, 2, s.KextCount)
	assert.True(t, s.HasSMBIOS)
	assert.True(t, s.HasDeviceProperties)
	assert.True(t, s.HasProxmoxConfig)
	assert.Equal(t, "-v", s.BootArgs)
	assert.Equal(t, "iMacPro1,1", s.Model)
	assert.Len(t, s.Sections, 5)
}
