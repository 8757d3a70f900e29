package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/deploy"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Installs the staged EFI onto a mounted macOS install USB.")
	}
	flag.Parse()
	common.SetupLogging()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	paths := common.ProjectPaths(common.FindRoot())
	usb := deploy.NewUSB(paths)

	if err := usb.Deploy(); err != nil {
		if errors.Is(err, deploy.ErrUSBNotFound) {
			fmt.Println(err)
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
