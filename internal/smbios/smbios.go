// Package smbios generates Apple platform identity data: serial number,
// board serial, system UUID and ROM. Serials come from the macserial tool
// shipped with OpenCore; everything else is generated locally.
package smbios

import (
	"crypto/rand"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/datafmt"
)

// DefaultModel is used when the changeset does not name a Mac model.
const DefaultModel = "iMacPro1,1"

// appleOUI is the Apple vendor prefix for generated ROM values.
var appleOUI = []byte{0x00, 0x17, 0xf2}

var (
	serialFormat = regexp.MustCompile(`^[A-Z0-9]{10,12}$`)
	mlbFormat    = regexp.MustCompile(`^[A-Z0-9]{17}$`)
)

// Identity is one generated SMBIOS identity.
type Identity struct {
	Serial string
	MLB    string
	UUID   string
	ROM    []byte
}

// Generate runs macserial for the model and builds a full identity from its
// output.
func Generate(macserialPath, model string) (*Identity, error) {
	if _, err := os.Stat(macserialPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("macserial not found at %s, run ozzy-fetch-assets first", macserialPath)
	}

	output, err := common.RunCommand(macserialPath, "-a", "-m", model)
	if err != nil {
		return nil, fmt.Errorf("macserial failed: %v", err)
	}

	serial, mlb, err := parseMacserial(output, model)
	if err != nil {
		return nil, err
	}

	rom := make([]byte, 6)
	copy(rom, appleOUI)
	if _, err := rand.Read(rom[3:]); err != nil {
		return nil, fmt.Errorf("cannot generate ROM: %v", err)
	}

	return &Identity{
		Serial: serial,
		MLB:    mlb,
		UUID:   strings.ToUpper(uuid.New().String()),
		ROM:    rom,
	}, nil
}

// parseMacserial picks the first output line that names the model and has
// the serial | board-serial separator.
func parseMacserial(output, model string) (serial, mlb string, err error) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, model) || !strings.Contains(line, "|") {
			continue
		}

		idx := strings.Index(line, "|")
		left, right := line[:idx], line[idx+1:]

		colonParts := strings.Split(left, ":")
		serial = strings.TrimSpace(colonParts[len(colonParts)-1])
		mlb = strings.TrimSpace(right)
		if serial == "" || mlb == "" {
			continue
		}
		return serial, mlb, nil
	}
	return "", "", fmt.Errorf("cannot parse macserial output for %s", model)
}

// ValidSerial reports whether a serial has the 10-12 character Apple form.
func ValidSerial(s string) bool {
	return serialFormat.MatchString(s)
}

// ValidMLB reports whether a board serial has the 17 character Apple form.
func ValidMLB(s string) bool {
	return mlbFormat.MatchString(s)
}

// IsPlaceholderSerial reports whether a serial is one of the well-known
// stand-ins rather than a generated value.
func IsPlaceholderSerial(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || containsPlaceholder(s) {
		return true
	}
	switch s {
	case DefaultModel, "C02XD1WJHX87", "XXX":
		return true
	}
	return false
}

func IsPlaceholderMLB(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || containsPlaceholder(s) {
		return true
	}
	switch s {
	case "C02309XXXXHX87XX", "XXX":
		return true
	}
	return false
}

func IsPlaceholderUUID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || containsPlaceholder(s) {
		return true
	}
	switch strings.ToUpper(s) {
	case "12345678-1234-1234-1234-123456789ABC", "00000000-0000-0000-0000-000000000000":
		return true
	}
	return false
}

// IsPlaceholderROM accepts the value in any of the forms a changeset can
// carry it in: bytes, an int list, or a MAC-style string.
func IsPlaceholderROM(v interface{}) bool {
	switch value := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(value)
		if s == "" || containsPlaceholder(s) {
			return true
		}
		switch strings.ToUpper(s) {
		case "11:22:33:44:55:66", "00:00:00:00:00:00", "FF:FF:FF:FF:FF:FF":
			return true
		}
		return false
	}

	b, err := datafmt.NormalizeROM(v)
	if err != nil || len(b) == 0 {
		return true
	}

	allZero, allFF := true, true
	for _, c := range b {
		if c != 0x00 {
			allZero = false
		}
		if c != 0xff {
			allFF = false
		}
	}
	if allZero || allFF {
		return true
	}
	return string(b) == string([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66})
}

func containsPlaceholder(s string) bool {
	return strings.Contains(strings.ToUpper(s), "PLACEHOLDER")
}

// IsPlaceholder reports whether any identity field of an smbios section is
// a placeholder.
func IsPlaceholder(smb map[string]interface{}) bool {
	serial, _ := smb["SystemSerialNumber"].(string)
	mlb, _ := smb["MLB"].(string)
	uuidStr, _ := smb["SystemUUID"].(string)

	return IsPlaceholderSerial(serial) ||
		IsPlaceholderMLB(mlb) ||
		IsPlaceholderUUID(uuidStr) ||
		IsPlaceholderROM(smb["ROM"])
}

// ValidateAndGenerate regenerates the changeset's SMBIOS identity when it
// still carries placeholders, or always when force is set. An empty model
// means use the changeset's SystemProductName. It reports whether the
// changeset was modified.
func ValidateAndGenerate(macserialPath string, cs changeset.Changeset, model string, force bool) (bool, error) {
	smb, ok := changeset.SMBIOS(cs)
	if !ok {
		logrus.Warn("No smbios section in changeset, skipping SMBIOS generation")
		return false, nil
	}

	if model == "" {
		model, _ = smb["SystemProductName"].(string)
	}
	if model == "" {
		model = DefaultModel
	}

	if !force && !IsPlaceholder(smb) {
		logrus.Info("SMBIOS data appears to be real (not placeholder)")
		return false, nil
	}

	id, err := Generate(macserialPath, model)
	if err != nil {
		return false, err
	}

	smb["SystemProductName"] = model
	smb["SystemSerialNumber"] = id.Serial
	smb["MLB"] = id.MLB
	smb["SystemUUID"] = id.UUID
	smb["ROM"] = romIntList(id.ROM)

	logrus.Infof("Generated SMBIOS for %s: serial %s, UUID %s", model, id.Serial, id.UUID)
	return true, nil
}

// romIntList is the form ROM takes in changeset YAML.
func romIntList(rom []byte) []interface{} {
	out := make([]interface{}, len(rom))
	for i, b := range rom {
		out[i] = int(b)
	}
	return out
}
