package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozzy-project/ozzy/internal/amdpatch"
	"github.com/ozzy-project/ozzy/internal/apply"
	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
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
	var dryRun bool
	var noValidate bool
	var amdCores int
	flag.BoolVar(&dryRun, "dry-run", false, "print the patch operations instead of building")
	flag.BoolVar(&noValidate, "no-validate", false, "skip ocvalidate after building")
	flag.IntVar(&amdCores, "amd-cores", amdpatch.DefaultCores, "physical core count for AMD vanilla patches")
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

	err = apply.Run(paths, cs, name, apply.Options{
		DryRun:     dryRun,
		NoValidate: noValidate,
		AMDCores:   amdCores,
		Out:        os.Stdout,
	})
	if err != nil {
		fail(err)
	}
	if !dryRun {
		fmt.Println("Configuration built at", paths.BuiltConfig)
	}
}
