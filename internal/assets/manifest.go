package assets

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest is config/sources.json: where every binary asset comes from.
type Manifest struct {
	OpenCore     OpenCoreSource     `json:"opencore"`
	Kexts        []KextSource       `json:"kexts"`
	OCBinaryData OCBinaryDataSource `json:"ocbinarydata"`
	AMDVanilla   AMDVanillaSource   `json:"amd_vanilla"`
}

type OpenCoreSource struct {
	Version string `json:"version"`
	Repo    string `json:"repo"`
}

type KextSource struct {
	Repo      string `json:"repo"`
	Name      string `json:"name"`
	BuildType string `json:"build_type"`
}

type OCBinaryDataSource struct {
	Repo    string         `json:"repo"`
	Drivers []DriverSource `json:"drivers"`
}

type DriverSource struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type AMDVanillaSource struct {
	Repo string `json:"repo"`
}

// LoadManifest reads and validates the sources manifest. Kexts without a
// build type default to RELEASE.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read sources manifest: %v", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %v", path, err)
	}

	if m.OpenCore.Version == "" || m.OpenCore.Repo == "" {
		return nil, fmt.Errorf("manifest %s has no opencore version or repo", path)
	}
	for i := range m.Kexts {
		if m.Kexts[i].BuildType == "" {
			m.Kexts[i].BuildType = "RELEASE"
		}
	}
	return &m, nil
}
