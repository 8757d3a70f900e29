package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/image"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func resolveChangeset(paths common.Paths, arg string) (string, string) {
	if strings.HasSuffix(arg, ".yaml") {
		if _, err := os.Stat(arg); err == nil {
			return arg, strings.TrimSuffix(filepath.Base(arg), ".yaml")
		}
	}
	name := strings.TrimSuffix(arg, ".yaml")
	return filepath.Join(paths.Changesets, name+".yaml"), name
}

func main() {
	var force bool
	var noValidate bool
	flag.BoolVar(&force, "force", false, "rebuild the EFI tree from scratch")
	flag.BoolVar(&noValidate, "no-validate", false, "skip ocvalidate")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <changeset>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	paths := common.ProjectPaths(common.FindRoot())
	path, name := resolveChangeset(paths, flag.Arg(0))
	cs, err := changeset.Load(path)
	if err != nil {
		fail(err)
	}

	if !noValidate {
		if _, err := os.Stat(paths.Ocvalidate); err != nil && !force {
			fail(fmt.Errorf("ocvalidate not found at %s, run ozzy-fetch-assets first", paths.Ocvalidate))
		}
	}

	isoPath, err := image.BuildISO(paths, cs, name, image.Options{Force: force, NoValidate: noValidate})
	if err != nil {
		fail(err)
	}
	fmt.Println("ISO ready at", isoPath)
}
