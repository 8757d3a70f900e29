package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/config"
	"github.com/ozzy-project/ozzy/internal/deploy"
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
	var rebuild bool
	var buildOnly bool
	var full bool
	var configPath string
	flag.BoolVar(&rebuild, "rebuild", false, "rebuild the ISO even if one exists")
	flag.BoolVar(&buildOnly, "build-only", false, "build the ISO but skip the remote steps")
	flag.BoolVar(&full, "full", false, "attach the macOS installer ISO as well")
	flag.StringVar(&configPath, "config", "", "deployment configuration (default ozzy.toml)")
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

	if _, err := os.Stat(paths.OpenCoreISO); err != nil || rebuild {
		if _, err := image.BuildISO(paths, cs, name, image.Options{Force: rebuild}); err != nil {
			fail(err)
		}
	}
	if buildOnly {
		fmt.Println("ISO ready at", paths.OpenCoreISO)
		return
	}

	if configPath == "" {
		configPath = filepath.Join(paths.Root, config.DefaultPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fail(err)
	}

	proxmox := deploy.NewProxmox(paths, cfg)
	if err := proxmox.Deploy(cs, name, deploy.Options{Full: full}); err != nil {
		fail(err)
	}
	fmt.Printf("Deployed %s to %s\n", name, cfg.Host)
}
