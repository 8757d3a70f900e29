package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/common"
)

// ErrUSBNotFound means no install volume is mounted. Callers treat it
// as a normal condition, not a failure.
var ErrUSBNotFound = errors.New("Install USB not found -- either plug it in and try again, or check if EFI partition exists")

// USB installs the staged EFI tree onto the EFI partition of a macOS
// install USB, located via diskutil.
type USB struct {
	Paths common.Paths

	run func(name string, args ...string) (string, error)
}

func NewUSB(paths common.Paths) *USB {
	return &USB{Paths: paths, run: common.RunCommand}
}

// Deploy finds the mounted installer volume, mounts the EFI partition
// of the same disk, and replaces its EFI directory with the staged
// tree.
func (u *USB) Deploy() error {
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("USB deployment requires macOS (diskutil)")
	}
	if _, err := os.Stat(u.Paths.USBEFI); err != nil {
		return fmt.Errorf("no staged USB tree at %s, run ozzy-build-usb first", u.Paths.USBEFI)
	}

	volumes, err := filepath.Glob("/Volumes/Install*")
	if err != nil {
		return err
	}
	if len(volumes) == 0 {
		return ErrUSBNotFound
	}
	if len(volumes) > 1 {
		logrus.Warnf("Multiple install volumes found, using %s", volumes[0])
	}
	volume := volumes[0]

	out, err := u.run("diskutil", "info", volume)
	if err != nil {
		return fmt.Errorf("diskutil info %s failed: %v", volume, err)
	}
	device := infoField(out, "Device Identifier")
	if device == "" {
		return fmt.Errorf("cannot determine device of %s", volume)
	}

	efiPart, err := efiPartitionFor(device)
	if err != nil {
		return err
	}

	out, err = u.run("diskutil", "info", efiPart)
	if err != nil {
		return fmt.Errorf("diskutil info %s failed: %v", efiPart, err)
	}
	personality := infoField(out, "File System Personality")
	volName := infoField(out, "Volume Name")
	if !strings.Contains(personality, "FAT32") && volName != "EFI" {
		return fmt.Errorf("partition %s does not look like an EFI partition", efiPart)
	}

	if out, err := u.run("sudo", "diskutil", "mount", efiPart); err != nil {
		return fmt.Errorf("cannot mount %s: %v: %s", efiPart, err, out)
	}
	mnt := "/Volumes/EFI"
	if _, err := os.Stat(mnt); err != nil {
		return fmt.Errorf("EFI partition did not mount at %s", mnt)
	}

	dst := filepath.Join(mnt, "EFI")
	logrus.Infof("Installing EFI onto %s (%s)", efiPart, volume)
	if err := common.CopyTree(u.Paths.USBEFI, dst); err != nil {
		return err
	}

	for _, want := range []string{
		filepath.Join("BOOT", "BOOTx64.efi"),
		filepath.Join("OC", "OpenCore.efi"),
		filepath.Join("OC", "config.plist"),
	} {
		if _, err := os.Stat(filepath.Join(dst, want)); err != nil {
			return fmt.Errorf("deployed EFI is incomplete: missing %s", want)
		}
	}

	logrus.Info("EFI deployed to install USB")
	return nil
}

// infoField pulls one "Key: value" line out of tool output like
// diskutil info or qm status.
func infoField(output, field string) string {
	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == field {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var partitionRe = regexp.MustCompile(`^(disk\d+)s\d+$`)

// efiPartitionFor maps a data partition device like disk2s2 to the EFI
// partition of the same disk, by convention its first slice.
func efiPartitionFor(device string) (string, error) {
	m := partitionRe.FindStringSubmatch(device)
	if m == nil {
		return "", fmt.Errorf("unexpected device identifier: %s", device)
	}
	return m[1] + "s1", nil
}
