package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/compare"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

// resolveChangeset maps a bare name or a path to a changeset file.
func resolveChangeset(paths common.Paths, arg string) (string, string) {
	if strings.HasSuffix(arg, ".yaml") {
		if _, err := os.Stat(arg); err == nil {
			return arg, common.TrimChangesetName(filepath.Base(arg))
		}
	}
	name := common.TrimChangesetName(arg)
	return filepath.Join(paths.Changesets, name+".yaml"), name
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <changeset> <changeset>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	paths := common.ProjectPaths(common.FindRoot())
	firstPath, firstName := resolveChangeset(paths, flag.Arg(0))
	secondPath, secondName := resolveChangeset(paths, flag.Arg(1))

	first, err := changeset.Load(firstPath)
	if err != nil {
		fail(err)
	}
	second, err := changeset.Load(secondPath)
	if err != nil {
		fail(err)
	}

	compare.RenderChangesets(os.Stdout, firstName, secondName, first, second)
}
