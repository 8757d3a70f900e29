package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ozzy-project/ozzy/internal/assets"
	"github.com/ozzy-project/ozzy/internal/common"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func main() {
	var force bool
	var skipKexts bool
	var skipDrivers bool
	flag.BoolVar(&force, "force", false, "redownload even when cached")
	flag.BoolVar(&skipKexts, "skip-kexts", false, "skip kext downloads")
	flag.BoolVar(&skipDrivers, "skip-drivers", false, "skip the OcBinaryData drivers")
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

	if err := assets.CheckPrerequisites(); err != nil {
		fail(err)
	}

	paths := common.ProjectPaths(common.FindRoot())
	manifest, err := assets.LoadManifest(paths.SourcesManifest)
	if err != nil {
		fail(err)
	}
	fetcher := assets.NewFetcher(paths, manifest)

	if err := fetcher.FetchOpenCore(force); err != nil {
		fail(err)
	}
	if !skipKexts {
		if err := fetcher.FetchKexts(force); err != nil {
			fail(err)
		}
		if err := fetcher.ExtractLocalAssets(); err != nil {
			logrus.Warnf("Local asset extraction failed: %v", err)
		}
	}
	if !skipDrivers {
		if err := fetcher.FetchOCBinaryData(); err != nil {
			logrus.Warnf("OcBinaryData fetch failed: %v", err)
		}
	}
	if err := fetcher.FetchAMDVanilla(); err != nil {
		logrus.Warnf("AMD vanilla patches fetch failed: %v", err)
	}

	fmt.Println("Assets fetched into", paths.Out)
}
