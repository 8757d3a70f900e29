package changeset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ozzy-project/ozzy/internal/datafmt"
)

type Kext struct {
	Bundle  string
	Exec    string
	Enabled bool
}

// Kexts lists the kexts a changeset names. Enabled defaults to true.
func Kexts(cs Changeset) []Kext {
	list, ok := SectionList(cs, "kexts")
	if !ok {
		return nil
	}

	var kexts []Kext
	for _, item := range list {
		entry, ok := datafmt.AsDict(item)
		if !ok {
			continue
		}
		kext := Kext{Enabled: true}
		if bundle, ok := entry["bundle"].(string); ok {
			kext.Bundle = bundle
		}
		if exec, ok := entry["exec"].(string); ok {
			kext.Exec = exec
		}
		if enabled, ok := entry["enabled"].(bool); ok {
			kext.Enabled = enabled
		}
		kexts = append(kexts, kext)
	}
	return kexts
}

// MissingKexts returns the changeset kexts whose bundles are not present in
// kextsDir.
func MissingKexts(cs Changeset, kextsDir string) ([]string, error) {
	if _, err := os.Stat(kextsDir); err != nil {
		return nil, fmt.Errorf("kexts directory not found: %s", kextsDir)
	}

	var missing []string
	for _, kext := range Kexts(cs) {
		if kext.Bundle == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(kextsDir, kext.Bundle)); err != nil {
			missing = append(missing, kext.Bundle)
		}
	}
	return missing, nil
}
