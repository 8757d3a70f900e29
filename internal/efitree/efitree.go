// Package efitree assembles a bootable EFI directory from a built
// config.plist, the fetched OpenCore release, and the changeset's kext
// and driver lists. It is the step between "apply" and anything that
// ships the result: ISO, IMG, or a USB stick.
package efitree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/apply"
	"github.com/ozzy-project/ozzy/internal/assets"
	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/smbios"
)

type Options struct {
	Force      bool
	NoValidate bool
	AMDCores   int
}

type USBOptions struct {
	Force      bool
	SkipSMBIOS bool
	AMDCores   int

	// Volume, when set, is a mounted EFI partition the finished tree is
	// installed onto, replacing any EFI directory already there.
	Volume string
}

// BuildComplete produces a fully populated EFI tree under out/build/efi:
// assets fetched if needed, config.plist built from the changeset, kexts
// pruned to the changeset's list, drivers copied in, and the result
// validated with ocvalidate.
func BuildComplete(paths common.Paths, cs changeset.Changeset, name string, opts Options) error {
	if opts.Force || needsAssets(paths, cs) {
		if err := fetchAssets(paths, opts.Force); err != nil {
			return err
		}
	}

	if err := apply.Run(paths, cs, name, apply.Options{NoValidate: true, AMDCores: opts.AMDCores}); err != nil {
		return err
	}
	if err := PruneKexts(paths, cs); err != nil {
		return err
	}
	if err := CopyDrivers(paths, cs); err != nil {
		return err
	}

	if _, err := os.Stat(paths.BuiltConfig); err != nil {
		return fmt.Errorf("EFI tree has no config.plist: %v", err)
	}
	if opts.NoValidate {
		return nil
	}
	if _, err := os.Stat(paths.Ocvalidate); err != nil {
		logrus.Warnf("ocvalidate not found at %s, skipping validation", paths.Ocvalidate)
		return nil
	}
	if !apply.ValidateConfig(paths.Ocvalidate, paths.BuiltConfig, false) {
		return fmt.Errorf("configuration validation failed")
	}
	return nil
}

// needsAssets reports whether the build tree is missing anything the
// changeset requires.
func needsAssets(paths common.Paths, cs changeset.Changeset) bool {
	if _, err := os.Stat(filepath.Join(paths.OCEFI, "OpenCore.efi")); err != nil {
		return true
	}
	missing, err := changeset.MissingKexts(cs, paths.OCKexts)
	if err != nil {
		return true
	}
	return len(missing) > 0
}

func fetchAssets(paths common.Paths, force bool) error {
	manifest, err := assets.LoadManifest(paths.SourcesManifest)
	if err != nil {
		return err
	}
	return assets.NewFetcher(paths, manifest).FetchAll(force)
}

// PruneKexts brings the build tree's Kexts directory in line with the
// changeset: enabled kexts must be present, and bundles the changeset
// does not mention are removed.
func PruneKexts(paths common.Paths, cs changeset.Changeset) error {
	if _, err := os.Stat(paths.OCKexts); err != nil {
		return fmt.Errorf("kexts directory not found: %s -- run ozzy-fetch-assets first", paths.OCKexts)
	}

	listed := map[string]bool{}
	var missing []string
	for _, kext := range changeset.Kexts(cs) {
		if kext.Bundle == "" {
			continue
		}
		listed[kext.Bundle] = true
		if !kext.Enabled {
			continue
		}
		if _, err := os.Stat(filepath.Join(paths.OCKexts, kext.Bundle)); err != nil {
			missing = append(missing, kext.Bundle)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("kexts missing from build tree: %s -- run ozzy-fetch-assets first",
			strings.Join(missing, ", "))
	}

	entries, err := os.ReadDir(paths.OCKexts)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".kext") {
			continue
		}
		if listed[e.Name()] {
			continue
		}
		logrus.Infof("Removing unlisted kext %s", e.Name())
		if err := os.RemoveAll(filepath.Join(paths.OCKexts, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// CopyDrivers copies every driver the changeset enables into the build
// tree, searching the OpenCore release, the OcBinaryData clone, and the
// project's own assets in that order. Drivers already in the tree are
// left alone; drivers found nowhere only warn, since ocvalidate will
// flag them if the config actually loads them.
func CopyDrivers(paths common.Paths, cs changeset.Changeset) error {
	drivers := enabledDrivers(cs)
	if len(drivers) == 0 {
		return nil
	}

	searchDirs := []string{
		filepath.Join(paths.OpenCoreRelease, "X64", "EFI", "OC", "Drivers"),
		filepath.Join(paths.OpenCoreRelease, "IA32_X64", "EFI", "OC", "Drivers"),
		filepath.Join(paths.Cache, "ocbinarydata", "ocbinarydata-repo", "Drivers"),
		filepath.Join(paths.OpenCoreRelease, "Drivers"),
		filepath.Join(paths.Assets, "drivers"),
	}

	if err := common.EnsureDir(paths.OCDrivers); err != nil {
		return err
	}
	for _, name := range drivers {
		dst := filepath.Join(paths.OCDrivers, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		src := ""
		for _, dir := range searchDirs {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				src = candidate
				break
			}
		}
		if src == "" {
			logrus.Warnf("Driver %s not found in any source", name)
			continue
		}
		if err := common.CopyFile(src, dst); err != nil {
			return err
		}
		logrus.Debugf("Copied driver %s from %s", name, filepath.Dir(src))
	}
	return nil
}

// enabledDrivers returns the file names of the changeset's enabled UEFI
// drivers. Entries may be plain path strings or dicts with a path key.
func enabledDrivers(cs changeset.Changeset) []string {
	list, ok := changeset.SectionList(cs, "uefi_drivers")
	if !ok {
		return nil
	}

	var names []string
	for _, item := range list {
		switch v := item.(type) {
		case string:
			names = append(names, filepath.Base(v))
		case map[string]interface{}:
			path, _ := v["path"].(string)
			if path == "" {
				continue
			}
			if enabled, ok := v["enabled"].(bool); ok && !enabled {
				continue
			}
			names = append(names, filepath.Base(path))
		}
	}
	return names
}

// BuildUSBTree builds the EFI tree and stages a copy under out/usb,
// ready to drop onto the EFI partition of an install USB. SMBIOS data is
// generated first so a stick never leaves with placeholder serials.
func BuildUSBTree(paths common.Paths, cs changeset.Changeset, name string, opts USBOptions) error {
	if opts.Force || needsAssets(paths, cs) {
		if err := fetchAssets(paths, opts.Force); err != nil {
			return err
		}
	}

	if !opts.SkipSMBIOS {
		changed, err := smbios.ValidateAndGenerate(paths.Macserial, cs, "", false)
		if err != nil {
			return err
		}
		if changed {
			path := filepath.Join(paths.Changesets, name+".yaml")
			if err := changeset.Save(path, cs); err != nil {
				return err
			}
			logrus.Infof("Updated %s with generated SMBIOS data", path)
		}
	}

	if err := BuildComplete(paths, cs, name, Options{AMDCores: opts.AMDCores}); err != nil {
		return err
	}

	if err := common.CopyTree(filepath.Join(paths.EFIBuild, "EFI"), paths.USBEFI); err != nil {
		return err
	}
	usbRoot := filepath.Dir(paths.USBEFI)
	if n, err := common.CleanupMacOSMetadata(usbRoot); err != nil {
		return err
	} else if n > 0 {
		logrus.Infof("Removed %d macOS metadata files", n)
	}
	if err := writeDeploymentInfo(paths, cs, name); err != nil {
		return err
	}
	logrus.Infof("USB EFI tree staged at %s", paths.USBEFI)

	if opts.Volume != "" {
		return InstallToVolume(paths, opts.Volume)
	}
	return nil
}

// writeDeploymentInfo drops a short provenance file next to the staged
// EFI so a stick found in a drawer can be identified.
func writeDeploymentInfo(paths common.Paths, cs changeset.Changeset, name string) error {
	version := "unknown"
	if manifest, err := assets.LoadManifest(paths.SourcesManifest); err == nil {
		version = manifest.OpenCore.Version
	}
	serial := "(not set)"
	if dict, ok := changeset.SMBIOS(cs); ok {
		if s, ok := dict["SystemSerialNumber"].(string); ok && s != "" {
			serial = s
		}
	}

	var b strings.Builder
	b.WriteString("OpenCore USB EFI\n")
	b.WriteString("================\n")
	fmt.Fprintf(&b, "Changeset: %s\n", name)
	fmt.Fprintf(&b, "Built:     %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "OpenCore:  %s\n", version)
	fmt.Fprintf(&b, "Serial:    %s\n", serial)
	b.WriteString("\nCopy the EFI directory to the EFI partition of the install USB.\n")

	path := filepath.Join(filepath.Dir(paths.USBEFI), "DEPLOYMENT_INFO.txt")
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// InstallToVolume replaces the EFI directory on a mounted volume with
// the staged USB tree.
func InstallToVolume(paths common.Paths, volume string) error {
	if _, err := os.Stat(volume); err != nil {
		return fmt.Errorf("volume not found: %s", volume)
	}
	if _, err := os.Stat(paths.USBEFI); err != nil {
		return fmt.Errorf("no staged USB tree at %s, run ozzy-build-usb first", paths.USBEFI)
	}

	dst := filepath.Join(volume, "EFI")
	if err := common.CopyTree(paths.USBEFI, dst); err != nil {
		return err
	}
	logrus.Infof("EFI installed to %s", dst)
	return nil
}
