// Package image turns a built EFI tree into shippable boot media: an
// ISO for Proxmox and other hypervisors, or a raw FAT32 IMG for tools
// that want a disk image. The heavy lifting is delegated to the
// platform's image tools via explicit argument vectors.
package image

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/efitree"
)

// VolumeName is the label stamped onto every generated image.
const VolumeName = "OZZY-OC"

const imgSizeMB = 50

type Options struct {
	Force      bool
	NoValidate bool
	AMDCores   int
}

// BuildISO builds the EFI tree and packs it into a bootable ISO at
// out/opencore.iso. Returns the ISO path.
func BuildISO(paths common.Paths, cs changeset.Changeset, name string, opts Options) (string, error) {
	if err := buildTree(paths, cs, name, opts); err != nil {
		return "", err
	}

	isoPath := paths.OpenCoreISO
	if err := os.Remove(isoPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	var err error
	if runtime.GOOS == "darwin" {
		err = makeISODarwin(paths.EFIBuild, isoPath)
	} else {
		err = makeISOLinux(paths.EFIBuild, isoPath)
	}
	if err != nil {
		return "", err
	}

	logrus.Infof("ISO created at %s", isoPath)
	return isoPath, nil
}

// BuildIMG builds the EFI tree and writes it into a 50M FAT32 disk
// image at out/opencore-<name>.img. Returns the image path.
func BuildIMG(paths common.Paths, cs changeset.Changeset, name string, opts Options) (string, error) {
	if err := buildTree(paths, cs, name, opts); err != nil {
		return "", err
	}

	imgPath := filepath.Join(paths.Out, "opencore-"+name+".img")
	if err := os.Remove(imgPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	var err error
	if runtime.GOOS == "darwin" {
		err = makeIMGDarwin(paths.EFIBuild, imgPath)
	} else {
		err = makeIMGLinux(paths, paths.EFIBuild, imgPath)
	}
	if err != nil {
		return "", err
	}

	logrus.Infof("Image created at %s", imgPath)
	return imgPath, nil
}

func buildTree(paths common.Paths, cs changeset.Changeset, name string, opts Options) error {
	if opts.Force {
		if err := os.RemoveAll(paths.EFIBuild); err != nil {
			return fmt.Errorf("cannot clear build tree: %v", err)
		}
	}
	return efitree.BuildComplete(paths, cs, name, efitree.Options{
		Force:      opts.Force,
		NoValidate: opts.NoValidate,
		AMDCores:   opts.AMDCores,
	})
}

func makeISODarwin(efiRoot, isoPath string) error {
	out, err := common.RunCommand("hdiutil", "makehybrid",
		"-iso", "-joliet",
		"-default-volume-name", VolumeName,
		"-o", isoPath, efiRoot)
	if err != nil {
		return fmt.Errorf("hdiutil makehybrid failed: %v: %s", err, out)
	}
	return nil
}

// makeISOLinux uses whichever ISO tool is installed. Only xorriso can
// stamp the El Torito EFI boot entry and the matching GPT partition, so
// the ISO stays bootable even when a hypervisor attaches it as a plain
// disk. The others produce a data ISO.
func makeISOLinux(efiRoot, isoPath string) error {
	tool, prefix, err := isoTool()
	if err != nil {
		return err
	}

	args := append(prefix,
		"-output", isoPath,
		"-volid", VolumeName,
		"-joliet", "-rock", "-quiet")
	if tool == "xorriso" {
		args = append(args,
			"-e", "EFI/BOOT/BOOTx64.efi",
			"-no-emul-boot",
			"-efi-boot-part", "--efi-boot-image")
	} else {
		logrus.Warnf("%s cannot add the EFI boot entry, install xorriso for a directly bootable ISO", tool)
	}
	args = append(args, efiRoot)
	if out, err := common.RunCommand(tool, args...); err != nil {
		return fmt.Errorf("%s failed: %v: %s", tool, err, out)
	}
	return nil
}

func isoTool() (string, []string, error) {
	if common.CommandExists("xorriso") {
		return "xorriso", []string{"-as", "mkisofs"}, nil
	}
	for _, tool := range []string{"genisoimage", "mkisofs"} {
		if common.CommandExists(tool) {
			return tool, nil, nil
		}
	}
	return "", nil, fmt.Errorf("no ISO tool found, install xorriso, genisoimage, or mkisofs")
}

func makeIMGDarwin(efiRoot, imgPath string) error {
	base := imgPath[:len(imgPath)-len(filepath.Ext(imgPath))]
	out, err := common.RunCommand("hdiutil", "create",
		"-size", fmt.Sprintf("%dm", imgSizeMB),
		"-fs", "MS-DOS",
		"-volname", VolumeName,
		"-layout", "MBRSPUD",
		"-o", base)
	if err != nil {
		return fmt.Errorf("hdiutil create failed: %v: %s", err, out)
	}
	if err := os.Rename(base+".dmg", imgPath); err != nil {
		return err
	}

	if out, err := common.RunCommand("hdiutil", "attach", imgPath); err != nil {
		return fmt.Errorf("hdiutil attach failed: %v: %s", err, out)
	}
	mountPoint := filepath.Join("/Volumes", VolumeName)

	copyErr := func() error {
		if out, err := common.RunCommand("cp", "-R", filepath.Join(efiRoot, "EFI"), mountPoint); err != nil {
			return fmt.Errorf("cannot copy EFI onto image: %v: %s", err, out)
		}
		if out, err := common.RunCommand("chmod", "-R", "755", filepath.Join(mountPoint, "EFI")); err != nil {
			return fmt.Errorf("chmod failed: %v: %s", err, out)
		}
		return nil
	}()

	if out, err := common.RunCommand("hdiutil", "detach", mountPoint); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("hdiutil detach failed: %v: %s", err, out)
	}
	return copyErr
}

// makeIMGLinux creates a raw FAT32 image with dd and mkfs.fat, then
// loop-mounts it to copy the EFI tree in. Mounting needs sudo.
func makeIMGLinux(paths common.Paths, efiRoot, imgPath string) error {
	if !common.CommandExists("mkfs.fat") {
		return fmt.Errorf("mkfs.fat not found, install dosfstools")
	}

	if out, err := common.RunCommand("dd", "if=/dev/zero", "of="+imgPath,
		"bs=1M", fmt.Sprintf("count=%d", imgSizeMB)); err != nil {
		return fmt.Errorf("dd failed: %v: %s", err, out)
	}
	if out, err := common.RunCommand("mkfs.fat", "-F", "32", "-n", VolumeName, imgPath); err != nil {
		return fmt.Errorf("mkfs.fat failed: %v: %s", err, out)
	}

	mnt, err := os.MkdirTemp(paths.Out, "img-mount-")
	if err != nil {
		return err
	}
	defer os.Remove(mnt)

	if out, err := common.RunCommand("sudo", "mount", "-o", "loop", imgPath, mnt); err != nil {
		return fmt.Errorf("cannot mount image: %v: %s", err, out)
	}

	copyErr := func() error {
		if out, err := common.RunCommand("sudo", "cp", "-R", filepath.Join(efiRoot, "EFI"), mnt); err != nil {
			return fmt.Errorf("cannot copy EFI onto image: %v: %s", err, out)
		}
		if out, err := common.RunCommand("sudo", "chmod", "-R", "755", filepath.Join(mnt, "EFI")); err != nil {
			return fmt.Errorf("chmod failed: %v: %s", err, out)
		}
		return nil
	}()

	if out, err := common.RunCommand("sudo", "umount", mnt); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("cannot unmount image: %v: %s", err, out)
	}
	return copyErr
}
