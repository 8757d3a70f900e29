// Package apply runs the build pipeline for one changeset: template copy,
// patch application, NVRAM mirroring, generation stamp and validation.
package apply

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/amdpatch"
	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/ocplist"
	"github.com/ozzy-project/ozzy/internal/patch"
	"github.com/ozzy-project/ozzy/internal/translate"
)

// AppleNVRAMGUID is the vendor section PlatformInfo.Generic is mirrored
// into so the identity survives NVRAM reads from macOS.
const AppleNVRAMGUID = "4D1EDE05-38C7-4A6A-9CC6-4BCCA8B38C14"

// mirrorFields are copied from PlatformInfo.Generic into NVRAM.
var mirrorFields = []string{"SystemProductName", "SystemSerialNumber", "MLB", "SystemUUID", "ROM"}

// Options control a pipeline run.
type Options struct {
	DryRun     bool
	NoValidate bool
	AMDCores   int

	// Out receives dry-run output; nil means stdout.
	Out io.Writer
}

// Run builds out/build/efi/EFI/OC/config.plist from the changeset. The
// template itself is never modified.
func Run(paths common.Paths, cs changeset.Changeset, name string, opts Options) error {
	if opts.AMDCores == 0 {
		opts.AMDCores = amdpatch.DefaultCores
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	coerced, err := datafmt.CoerceChangesetTypes(cs)
	if err != nil {
		return fmt.Errorf("cannot apply changeset %s: %v", name, err)
	}
	cs = coerced

	if amdpatch.NeedsInjection(cs) {
		patches, err := amdpatch.LoadPatches(paths.AMDPatches)
		if err != nil {
			return err
		}
		logrus.Infof("Injecting %d AMD vanilla patches (%d cores)", len(patches), opts.AMDCores)
		if err := amdpatch.InjectIntoChangeset(cs, patches, opts.AMDCores); err != nil {
			return err
		}
	}

	ops, err := translate.Translate(cs)
	if err != nil {
		return err
	}

	if opts.DryRun {
		dump, err := json.MarshalIndent(ops, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(opts.Out, string(dump))
		return nil
	}

	if _, err := os.Stat(paths.TemplateConfig); err != nil {
		return fmt.Errorf("template config.plist not found at %s", paths.TemplateConfig)
	}

	logrus.Infof("Applying changeset %s", name)
	if err := common.CopyFile(paths.TemplateConfig, paths.BuiltConfig); err != nil {
		return fmt.Errorf("cannot copy template: %v", err)
	}

	tree, err := ocplist.Load(paths.BuiltConfig)
	if err != nil {
		return fmt.Errorf("cannot parse template: %v", err)
	}

	if err := patch.Apply(tree, ops); err != nil {
		return err
	}
	patch.PostProcess(tree)

	if err := mirrorSMBIOS(tree, cs); err != nil {
		return err
	}

	tree["#Generated"] = time.Now().Format(time.RFC3339)

	if err := ocplist.Save(paths.BuiltConfig, tree); err != nil {
		return err
	}
	logrus.Infof("Wrote %s", paths.BuiltConfig)

	if opts.NoValidate {
		return nil
	}
	if _, err := os.Stat(paths.Ocvalidate); os.IsNotExist(err) {
		logrus.Warnf("ocvalidate not found at %s, skipping validation", paths.Ocvalidate)
		return nil
	}
	if !ValidateConfig(paths.Ocvalidate, paths.BuiltConfig, false) {
		return fmt.Errorf("configuration validation failed")
	}
	return nil
}

// mirrorSMBIOS copies the platform identity into the Apple vendor NVRAM
// section.
func mirrorSMBIOS(tree map[string]interface{}, cs changeset.Changeset) error {
	smb, ok := changeset.SMBIOS(cs)
	if !ok {
		return nil
	}

	logrus.Info("Copying PlatformInfo.Generic to NVRAM")
	target, err := ocplist.EnsureDict(tree, "NVRAM", "Add", AppleNVRAMGUID)
	if err != nil {
		return err
	}

	for _, field := range mirrorFields {
		value, ok := smb[field]
		if !ok {
			continue
		}
		if field == "ROM" {
			rom, err := datafmt.NormalizeROM(value)
			if err != nil {
				return fmt.Errorf("cannot mirror ROM: %v", err)
			}
			target[field] = rom
			continue
		}
		target[field] = value
	}
	return nil
}

// ValidateConfig runs ocvalidate against a config.plist and reports the
// verdict. The tool's output is echoed unless quiet is set.
func ValidateConfig(ocvalidatePath, configPath string, quiet bool) bool {
	output, err := common.RunCommand(ocvalidatePath, configPath)
	if !quiet && output != "" {
		fmt.Print(output)
	}

	if err != nil {
		fmt.Println("✗ Configuration validation failed")
		return false
	}
	fmt.Println("✓ Configuration is valid")
	return true
}
