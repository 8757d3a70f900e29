package ocplist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() map[string]interface{} {
	return map[string]interface{}{
		"Kernel": map[string]interface{}{
			"Add": []interface{}{
				map[string]interface{}{
					"BundlePath": "Lilu.kext",
					"Enabled":    true,
				},
			},
			"Quirks": map[string]interface{}{
				"AppleXcpmCfgLock": true,
				"PanicNoKextDump":  false,
			},
		},
		"Misc": map[string]interface{}{
			"Security": map[string]interface{}{
				"ScanPolicy": 0,
				"Vault":      "Optional",
			},
		},
		"Payload": []byte{0xDE, 0xAD},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.plist")
	require.NoError(t, Save(path, sampleTree()))

	tree, err := Load(path)
	require.NoError(t, err)

	kexts, ok := GetPath(tree, "Kernel", "Add")
	require.True(t, ok)
	entry := kexts.([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Lilu.kext", entry["BundlePath"])
	assert.Equal(t, true, entry["Enabled"])

	payload, ok := GetPath(tree, "Payload")
	require.True(t, ok)
	assert.Equal(t, []byte{0xDE, 0xAD}, payload)

	policy, ok := GetPath(tree, "Misc", "Security", "ScanPolicy")
	require.True(t, ok)
	n, ok := Int(policy)
	require.True(t, ok)
	assert.Equal(t, int64(0), n)
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(sampleTree())
	require.NoError(t, err)
	second, err := Marshal(sampleTree())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// reparse and reserialize: still identical
	tree, err := Parse(first)
	require.NoError(t, err)
	third, err := Marshal(tree)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(third))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.plist"))
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("<plist"))
	assert.Error(t, err)
}

func TestGetPath(t *testing.T) {
	tree := sampleTree()

	_, ok := GetPath(tree, "Kernel", "Quirks", "AppleXcpmCfgLock")
	assert.True(t, ok)
	_, ok = GetPath(tree, "Kernel", "Missing")
	assert.False(t, ok)
	_, ok = GetPath(tree, "Payload", "Deeper")
	assert.False(t, ok)
}

func TestEnsureDict(t *testing.T) {
	tree := map[string]interface{}{}

	dict, err := EnsureDict(tree, "NVRAM", "Add", "guid")
	require.NoError(t, err)
	dict["boot-args"] = "-v"

	value, ok := GetPath(tree, "NVRAM", "Add", "guid", "boot-args")
	require.True(t, ok)
	assert.Equal(t, "-v", value)

	tree["Scalar"] = 7
	_, err = EnsureDict(tree, "Scalar", "Down")
	assert.Error(t, err)
}

func TestEnsureArray(t *testing.T) {
	parent := map[string]interface{}{"Existing": []interface{}{"a"}}

	arr := EnsureArray(parent, "Existing")
	assert.Equal(t, []interface{}{"a"}, arr)

	arr = EnsureArray(parent, "Fresh")
	assert.Empty(t, arr)
	_, ok := parent["Fresh"].([]interface{})
	assert.True(t, ok)

	parent["NotArray"] = "scalar"
	arr = EnsureArray(parent, "NotArray")
	assert.Empty(t, arr)
	_, ok = parent["NotArray"].([]interface{})
	assert.True(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(uint64(5), 5))
	assert.True(t, Equal(int64(-2), -2))
	assert.False(t, Equal(uint64(5), 6))
	assert.False(t, Equal(uint64(5), "5"))

	assert.True(t, Equal([]byte{1, 2}, []byte{1, 2}))
	assert.False(t, Equal([]byte{1, 2}, []byte{2, 1}))

	a := map[string]interface{}{"X": []interface{}{1, "two"}}
	b := map[string]interface{}{"X": []interface{}{uint64(1), "two"}}
	assert.True(t, Equal(a, b))

	c := map[string]interface{}{"X": []interface{}{1, "two"}, "Y": 0}
	assert.False(t, Equal(a, c))
}
