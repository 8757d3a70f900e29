// Package datafmt implements the value conversion rules shared by the
// translation, patching and extraction layers: hex and base64 data fields,
// ROM and MAC addresses, and the int-list representation binary data takes
// in YAML changesets and JSON operation dumps.
package datafmt

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// binaryFields are the plist fields that hold data values regardless of how
// the changeset spells them. Lists under these keys always become bytes,
// even when empty.
var binaryFields = map[string]bool{
	"Find":        true,
	"Mask":        true,
	"Replace":     true,
	"ReplaceMask": true,
	"Cpuid1Data":  true,
	"Cpuid1Mask":  true,
}

func IsBinaryField(name string) bool {
	return binaryFields[name]
}

// HexStringToBytes decodes a hex string, tolerating spaces and a leading 0x.
func HexStringToBytes(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %v", s, err)
	}
	return b, nil
}

// BytesToHexString renders data as continuous uppercase hex.
func BytesToHexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// byteValue reports whether v is an integral value in 0..255 and returns it.
// Changeset YAML yields int, plists yield uint64/int64 and JSON round-trips
// yield float64.
func byteValue(v interface{}) (byte, bool) {
	switch n := v.(type) {
	case int:
		if n >= 0 && n <= 255 {
			return byte(n), true
		}
	case int8:
		if n >= 0 {
			return byte(n), true
		}
	case int16:
		if n >= 0 && n <= 255 {
			return byte(n), true
		}
	case int32:
		if n >= 0 && n <= 255 {
			return byte(n), true
		}
	case int64:
		if n >= 0 && n <= 255 {
			return byte(n), true
		}
	case uint:
		if n <= 255 {
			return byte(n), true
		}
	case uint8:
		return byte(n), true
	case uint16:
		if n <= 255 {
			return byte(n), true
		}
	case uint32:
		if n <= 255 {
			return byte(n), true
		}
	case uint64:
		if n <= 255 {
			return byte(n), true
		}
	case float64:
		if n == float64(int64(n)) && n >= 0 && n <= 255 {
			return byte(n), true
		}
	}
	return 0, false
}

// IsByteList reports whether v is a non-empty list whose elements are all
// integral values in 0..255.
func IsByteList(v interface{}) bool {
	_, ok := ByteListToBytes(v)
	return ok
}

// ByteListToBytes converts a non-empty int list to bytes. The empty list is
// rejected: nothing in it proves byte-ness, and empty-list handling is
// positional (see the patch engine's set rules).
func ByteListToBytes(v interface{}) ([]byte, bool) {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]byte, len(list))
	for i, elem := range list {
		b, ok := byteValue(elem)
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// listToBytes is ByteListToBytes without the non-empty requirement, for the
// named binary fields where an empty list means empty data.
func listToBytes(v interface{}) ([]byte, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]byte, len(list))
	for i, elem := range list {
		b, ok := byteValue(elem)
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// NormalizeROM accepts the forms a ROM value takes in changesets: a hex
// string, a list of 6 byte ints, or raw bytes.
func NormalizeROM(v interface{}) ([]byte, error) {
	switch rom := v.(type) {
	case []byte:
		return rom, nil
	case DataBytes:
		return []byte(rom), nil
	case string:
		return HexStringToBytes(rom)
	case []interface{}:
		b, ok := listToBytes(rom)
		if !ok {
			return nil, fmt.Errorf("ROM list contains non-byte values")
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported ROM value type %T", v)
	}
}

// NormalizeDataField accepts the forms a generic data field takes: raw
// bytes, a base64 or hex string, or a byte int list.
func NormalizeDataField(v interface{}) ([]byte, error) {
	switch data := v.(type) {
	case []byte:
		return data, nil
	case DataBytes:
		return []byte(data), nil
	case string:
		if b, err := base64.StdEncoding.DecodeString(data); err == nil {
			return b, nil
		}
		if b, err := HexStringToBytes(data); err == nil {
			return b, nil
		}
		return nil, fmt.Errorf("data field %q is neither base64 nor hex", data)
	case []interface{}:
		b, ok := listToBytes(data)
		if !ok {
			return nil, fmt.Errorf("data list contains non-byte values")
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported data value type %T", v)
	}
}

// ValidateMACAddress accepts a 12-hex-digit string (separators allowed), a
// list of 6 byte ints, or 6 raw bytes.
func ValidateMACAddress(v interface{}) bool {
	switch mac := v.(type) {
	case string:
		cleaned := strings.NewReplacer(":", "", "-", "", " ", "").Replace(mac)
		if len(cleaned) != 12 {
			return false
		}
		_, err := hex.DecodeString(cleaned)
		return err == nil
	case []byte:
		return len(mac) == 6
	case DataBytes:
		return len(mac) == 6
	case []interface{}:
		b, ok := listToBytes(mac)
		return ok && len(b) == 6
	default:
		return false
	}
}

// FormatMACAddress renders bytes as uppercase hex pairs joined by sep
// (":" when empty).
func FormatMACAddress(b []byte, sep string) string {
	if sep == "" {
		sep = ":"
	}
	parts := make([]string, len(b))
	for i, octet := range b {
		parts[i] = fmt.Sprintf("%02X", octet)
	}
	return strings.Join(parts, sep)
}

// CoerceDataValues walks a dict converting list-form binary data to bytes:
// the named binary fields always, ROM with a hex-string fallback that keeps
// the original value when the hex is invalid, and any other all-byte int
// list. Nested dicts recurse; lists of dicts are left alone.
func CoerceDataValues(v interface{}) interface{} {
	dict, ok := asDict(v)
	if !ok {
		return v
	}

	result := make(map[string]interface{}, len(dict))
	for key, value := range dict {
		switch {
		case IsBinaryField(key):
			if b, ok := listToBytes(value); ok {
				result[key] = b
			} else {
				result[key] = value
			}
		case key == "ROM":
			switch rom := value.(type) {
			case []interface{}:
				if b, ok := listToBytes(rom); ok {
					result[key] = b
				} else {
					result[key] = value
				}
			case string:
				if b, err := HexStringToBytes(rom); err == nil {
					result[key] = b
				} else {
					result[key] = value
				}
			default:
				result[key] = value
			}
		default:
			if b, ok := ByteListToBytes(value); ok {
				result[key] = b
			} else if _, isDict := asDict(value); isDict {
				result[key] = CoerceDataValues(value)
			} else {
				result[key] = value
			}
		}
	}
	return result
}

// CoerceChangesetTypes applies the changeset-level conversions before
// translation: smbios.ROM normalized, device_properties byte lists to
// bytes, all other sections through CoerceDataValues.
func CoerceChangesetTypes(cs map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(cs))
	for section, value := range cs {
		switch section {
		case "smbios":
			dict, ok := asDict(value)
			if !ok {
				result[section] = value
				continue
			}
			converted := make(map[string]interface{}, len(dict))
			for k, v := range dict {
				if k == "ROM" {
					rom, err := NormalizeROM(v)
					if err != nil {
						return nil, fmt.Errorf("smbios ROM: %v", err)
					}
					converted[k] = rom
				} else {
					converted[k] = v
				}
			}
			result[section] = converted
		case "device_properties":
			result[section] = coerceDeviceProperties(value)
		default:
			result[section] = CoerceDataValues(value)
		}
	}
	return result, nil
}

func coerceDeviceProperties(v interface{}) interface{} {
	dict, ok := asDict(v)
	if !ok {
		return v
	}
	result := make(map[string]interface{}, len(dict))
	for key, value := range dict {
		if b, ok := ByteListToBytes(value); ok {
			result[key] = b
		} else if _, isDict := asDict(value); isDict {
			result[key] = coerceDeviceProperties(value)
		} else {
			result[key] = value
		}
	}
	return result
}

// asDict views v as a string-keyed map. YAML decoding can produce
// map[interface{}]interface{} for nested maps, so both shapes are accepted.
func asDict(v interface{}) (map[string]interface{}, bool) {
	switch dict := v.(type) {
	case map[string]interface{}:
		return dict, true
	case map[interface{}]interface{}:
		result := make(map[string]interface{}, len(dict))
		for key, value := range dict {
			s, ok := key.(string)
			if !ok {
				return nil, false
			}
			result[s] = value
		}
		return result, true
	default:
		return nil, false
	}
}

// AsDict exposes the map view to the other layers.
func AsDict(v interface{}) (map[string]interface{}, bool) {
	return asDict(v)
}

// DataBytes is binary data that travels through JSON as a list of ints, the
// way operation dumps and changesets spell data values.
type DataBytes []byte

func (d DataBytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(d))
	for i, b := range d {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

func (d *DataBytes) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return fmt.Errorf("data byte out of range: %d", n)
		}
		out[i] = byte(n)
	}
	*d = out
	return nil
}
