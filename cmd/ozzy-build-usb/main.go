package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/efitree"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func main() {
	var name string
	var output string
	var usbPath string
	var force bool
	var dryRun bool
	var skipSMBIOS bool
	flag.StringVar(&name, "changeset", "", "changeset to build (mandatory)")
	flag.StringVar(&output, "output", "", "copy the finished EFI to this directory as well")
	flag.StringVar(&usbPath, "usb-path", "", "mounted EFI partition to install onto")
	flag.BoolVar(&force, "force", false, "refetch assets and rebuild from scratch")
	flag.BoolVar(&dryRun, "dry-run", false, "show what would be built without building")
	flag.BoolVar(&skipSMBIOS, "skip-smbios", false, "keep SMBIOS data as-is, even placeholders")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -changeset NAME [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	if name == "" || flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}
	name = strings.TrimSuffix(name, ".yaml")

	paths := common.ProjectPaths(common.FindRoot())
	csPath := filepath.Join(paths.Changesets, name+".yaml")
	cs, err := changeset.Load(csPath)
	if err != nil {
		fail(err)
	}

	if dryRun {
		fmt.Println("Would build USB EFI tree:")
		fmt.Println("  changeset:", csPath)
		fmt.Println("  staging:  ", paths.USBEFI)
		if skipSMBIOS {
			fmt.Println("  smbios:    kept as-is")
		} else {
			fmt.Println("  smbios:    validated, regenerated if placeholder")
		}
		if output != "" {
			fmt.Println("  copy to:  ", filepath.Join(output, "EFI"))
		}
		if usbPath != "" {
			fmt.Println("  install:  ", filepath.Join(usbPath, "EFI"))
		}
		return
	}

	err = efitree.BuildUSBTree(paths, cs, name, efitree.USBOptions{
		Force:      force,
		SkipSMBIOS: skipSMBIOS,
		Volume:     usbPath,
	})
	if err != nil {
		fail(err)
	}

	if output != "" {
		if err := common.CopyTree(paths.USBEFI, filepath.Join(output, "EFI")); err != nil {
			fail(err)
		}
		fmt.Println("EFI copied to", filepath.Join(output, "EFI"))
	}
	fmt.Println("USB EFI tree ready at", paths.USBEFI)
}
