package changeset

import (
	"fmt"
	"sort"

	"github.com/ozzy-project/ozzy/internal/datafmt"
)

type Validation struct {
	Errors   []string
	Warnings []string
	Info     []string
}

func (v *Validation) OK() bool {
	return len(v.Errors) == 0
}

var smbiosFields = []string{"SystemProductName", "SystemSerialNumber", "MLB", "SystemUUID", "ROM"}

// Validate checks a changeset for structural problems. Missing recommended
// sections are warnings, malformed ones are errors.
func Validate(cs Changeset) Validation {
	var v Validation

	for _, section := range []string{"kexts", "booter_quirks", "kernel_quirks"} {
		if _, ok := Section(cs, section); !ok {
			v.Warnings = append(v.Warnings, fmt.Sprintf("Recommended section missing: %s", section))
		}
	}

	if raw, ok := Section(cs, "kexts"); ok {
		list, isList := raw.([]interface{})
		if !isList {
			v.Errors = append(v.Errors, "kexts must be a list")
		} else {
			for i, item := range list {
				entry, isDict := datafmt.AsDict(item)
				if !isDict {
					v.Errors = append(v.Errors, fmt.Sprintf("kexts[%d] must be a mapping", i))
					continue
				}
				if _, ok := entry["bundle"]; !ok {
					v.Errors = append(v.Errors, fmt.Sprintf("kexts[%d] missing bundle", i))
				}
				if _, ok := entry["exec"]; !ok {
					v.Warnings = append(v.Warnings, fmt.Sprintf("kexts[%d] missing exec", i))
				}
			}
		}
	}

	if raw, ok := Section(cs, "smbios"); ok {
		dict, isDict := datafmt.AsDict(raw)
		if !isDict {
			v.Errors = append(v.Errors, "smbios must be a mapping")
		} else {
			for _, field := range smbiosFields {
				if _, ok := dict[field]; !ok {
					v.Warnings = append(v.Warnings, fmt.Sprintf("smbios missing %s", field))
				}
			}
		}
	}

	if raw, ok := Section(cs, "device_properties"); ok {
		if _, isDict := datafmt.AsDict(raw); !isDict {
			v.Errors = append(v.Errors, "device_properties must be a mapping")
		}
	}

	if _, ok := cs["proxmox"]; ok {
		v.Info = append(v.Info, "Changeset carries Proxmox deployment settings")
	}

	return v
}

type Summary struct {
	Sections            []string
	KextCount           int
	HasSMBIOS           bool
	HasDeviceProperties bool
	HasProxmoxConfig    bool
	BootArgs            string
	Model               string
}

// Summarize condenses a changeset for display.
func Summarize(cs Changeset) Summary {
	var s Summary

	for key := range cs {
		s.Sections = append(s.Sections, key)
	}
	sort.Strings(s.Sections)

	s.KextCount = len(Kexts(cs))

	if smbios, ok := SMBIOS(cs); ok {
		s.HasSMBIOS = true
		if model, ok := smbios["SystemProductName"].(string); ok {
			s.Model = model
		}
	}
	_, s.HasDeviceProperties = Section(cs, "device_properties")
	_, s.HasProxmoxConfig = cs["proxmox"]

	if args, ok := Section(cs, "boot_args"); ok {
		if text, ok := args.(string); ok {
			s.BootArgs = text
		}
	}

	return s
}
