package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/extract"
	"github.com/ozzy-project/ozzy/internal/ocplist"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func main() {
	var force bool
	flag.BoolVar(&force, "force", false, "overwrite an existing changeset")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <config.plist> <name>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	tree, err := ocplist.Load(flag.Arg(0))
	if err != nil {
		fail(err)
	}

	paths := common.ProjectPaths(common.FindRoot())
	cs := extract.Full(tree)
	path, err := extract.WriteChangeset(paths.Changesets, flag.Arg(1), cs, force)
	if err != nil {
		fail(err)
	}
	fmt.Println("Changeset written to", path)
}
