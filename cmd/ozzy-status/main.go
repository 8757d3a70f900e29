package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/config"
	"github.com/ozzy-project/ozzy/internal/deploy"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "deployment configuration file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}

	paths := common.ProjectPaths(common.FindRoot())
	if configPath == "" {
		configPath = filepath.Join(paths.Root, config.DefaultPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fail(err)
	}

	if err := deploy.NewProxmox(paths, cfg).Status(os.Stdout); err != nil {
		fail(err)
	}
}
