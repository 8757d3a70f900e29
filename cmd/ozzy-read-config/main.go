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
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [config.plist]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	paths := common.ProjectPaths(common.FindRoot())
	configPath := paths.BuiltConfig
	switch flag.NArg() {
	case 0:
	case 1:
		configPath = flag.Arg(0)
	default:
		flag.Usage()
		os.Exit(2)
	}

	tree, err := ocplist.Load(configPath)
	if err != nil {
		fail(err)
	}

	cs := extract.Filtered(tree)
	if err := extract.EmitYAML(os.Stdout, cs); err != nil {
		fail(err)
	}
}
