package common

import (
	"os"
	"path/filepath"
)

// Paths holds every location the toolkit reads or writes, all derived from
// the project root. Callers never assemble these paths themselves.
type Paths struct {
	Root string

	Out        string
	Changesets string
	Bin        string
	Assets     string

	BuildRoot string
	EFIBuild  string
	USBBuild  string
	ISOBuild  string
	Logs      string

	OpenCoreRelease string

	OCEFI     string
	OCDrivers string
	OCKexts   string
	OCTools   string
	OCACPI    string
	BootDir   string

	EFITemplate    string
	TemplateConfig string
	BuiltConfig    string

	OpenCoreISO   string
	ResetNvramISO string
	USBEFI        string

	Ocvalidate  string
	Macserial   string
	SamplePlist string

	SourcesManifest string
	KextCache       string
	Cache           string
	AMDPatches      string
	DeployHistory   string
}

// ProjectPaths derives the canonical layout from root.
func ProjectPaths(root string) Paths {
	out := filepath.Join(root, "out")
	buildRoot := filepath.Join(out, "build")
	efiBuild := filepath.Join(buildRoot, "efi")
	ocEFI := filepath.Join(efiBuild, "EFI", "OC")
	opencore := filepath.Join(out, "opencore")

	return Paths{
		Root: root,

		Out:        out,
		Changesets: filepath.Join(root, "config", "changesets"),
		Bin:        filepath.Join(root, "bin"),
		Assets:     filepath.Join(root, "assets"),

		BuildRoot: buildRoot,
		EFIBuild:  efiBuild,
		USBBuild:  filepath.Join(out, "usb"),
		ISOBuild:  filepath.Join(out, "iso"),
		Logs:      filepath.Join(out, "logs"),

		OpenCoreRelease: opencore,

		OCEFI:     ocEFI,
		OCDrivers: filepath.Join(ocEFI, "Drivers"),
		OCKexts:   filepath.Join(ocEFI, "Kexts"),
		OCTools:   filepath.Join(ocEFI, "Tools"),
		OCACPI:    filepath.Join(ocEFI, "ACPI"),
		BootDir:   filepath.Join(efiBuild, "EFI", "BOOT"),

		EFITemplate:    filepath.Join(root, "efi-template"),
		TemplateConfig: filepath.Join(root, "efi-template", "EFI", "OC", "config.plist"),
		BuiltConfig:    filepath.Join(ocEFI, "config.plist"),

		OpenCoreISO:   filepath.Join(out, "opencore.iso"),
		ResetNvramISO: filepath.Join(out, "reset-nvram.iso"),
		USBEFI:        filepath.Join(out, "usb", "EFI"),

		Ocvalidate:  filepath.Join(opencore, "Utilities", "ocvalidate", "ocvalidate"),
		Macserial:   filepath.Join(opencore, "Utilities", "macserial", "macserial"),
		SamplePlist: filepath.Join(opencore, "Docs", "Sample.plist"),

		SourcesManifest: filepath.Join(root, "config", "sources.json"),
		KextCache:       filepath.Join(out, "kext-cache"),
		Cache:           filepath.Join(out, "cache"),
		AMDPatches:      filepath.Join(out, "amd-vanilla-patches.plist"),
		DeployHistory:   filepath.Join(out, "logs", "deployments"),
	}
}

// FindRoot locates the project root: the OZZY_ROOT environment variable if
// set, otherwise the nearest ancestor of the working directory that contains
// config/changesets or efi-template, otherwise the working directory itself.
func FindRoot() string {
	if root := os.Getenv("OZZY_ROOT"); root != "" {
		return root
	}

	dir, err := os.Getwd()
	if err != nil {
		return "."
	}

	for cur := dir; ; {
		for _, marker := range []string{filepath.Join("config", "changesets"), "efi-template"} {
			if info, err := os.Stat(filepath.Join(cur, marker)); err == nil && info.IsDir() {
				return cur
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	return dir
}
