package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ozzy-project/ozzy/internal/apply"
	"github.com/ozzy-project/ozzy/internal/common"
)

func main() {
	var quiet bool
	flag.BoolVar(&quiet, "quiet", false, "suppress ocvalidate output, use the exit code")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [config.plist]\n", os.Args[0])
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

	if _, err := os.Stat(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: no configuration at %s\n", configPath)
		os.Exit(1)
	}
	if _, err := os.Stat(paths.Ocvalidate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: ocvalidate not found at %s, run ozzy-fetch-assets first\n", paths.Ocvalidate)
		os.Exit(1)
	}

	if !apply.ValidateConfig(paths.Ocvalidate, configPath, quiet) {
		os.Exit(1)
	}
}
