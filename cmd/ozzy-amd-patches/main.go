package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ozzy-project/ozzy/internal/amdpatch"
	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [options]

Commands:
  info    show the AMD vanilla patch set (-verbose for per-patch detail)
  apply   inject the patches into a changeset (-cores N, -no-backup)
  test    preview the core count stamping (-cores N)
  list    list available changesets
`, os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	common.SetupLogging()

	paths := common.ProjectPaths(common.FindRoot())

	var err error
	switch os.Args[1] {
	case "info":
		err = runInfo(paths, os.Args[2:])
	case "apply":
		err = runApply(paths, os.Args[2:])
	case "test":
		err = runTest(paths, os.Args[2:])
	case "list":
		err = runList(paths)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func runInfo(paths common.Paths, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "show every patch")
	fs.Parse(args)

	patches, err := amdpatch.LoadPatches(paths.AMDPatches)
	if err != nil {
		return err
	}

	summary := amdpatch.Describe(patches)
	fmt.Println("AMD Vanilla Patches")
	fmt.Println("===================")
	fmt.Println("Total patches:  ", summary.Total)
	fmt.Println("Core patches:   ", summary.CorePatches)
	fmt.Println("Other patches:  ", summary.Other)
	fmt.Println("Darwin versions:", strings.Join(summary.DarwinVersions, ", "))

	if !*verbose {
		return nil
	}

	fmt.Println("\nCore patches:")
	for _, p := range patches {
		if amdpatch.IsCorePatch(p) {
			printPatch(p, true)
		}
	}
	fmt.Println("\nOther patches:")
	for _, p := range patches {
		if !amdpatch.IsCorePatch(p) {
			printPatch(p, false)
		}
	}
	return nil
}

func printPatch(p map[string]interface{}, detail bool) {
	comment, _ := p["Comment"].(string)
	min, _ := p["MinKernel"].(string)
	max, _ := p["MaxKernel"].(string)
	fmt.Printf("  - %s\n", comment)
	fmt.Printf("    Darwin: %s - %s\n", min, max)
	if detail {
		arch, _ := p["Arch"].(string)
		id, _ := p["Identifier"].(string)
		fmt.Printf("    Arch: %s, ID: %s\n", arch, id)
	}
}

func runApply(paths common.Paths, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	cores := fs.Int("cores", amdpatch.DefaultCores, "CPU core count to stamp into the patches")
	noBackup := fs.Bool("no-backup", false, "do not keep a .backup of the changeset")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s apply [options] <changeset>\n", os.Args[0])
		fs.PrintDefaults()
		os.Exit(2)
	}

	name := common.TrimChangesetName(fs.Arg(0))
	path := common.ChangesetPath(paths.Changesets, name)
	cs, err := changeset.Load(path)
	if err != nil {
		return err
	}

	patches, err := amdpatch.LoadPatches(paths.AMDPatches)
	if err != nil {
		return err
	}

	fmt.Printf("Applying AMD vanilla patches to %s with %d cores\n", name, *cores)
	if err := amdpatch.InjectIntoChangeset(cs, patches, *cores); err != nil {
		return err
	}
	if err := changeset.Save(path, cs); err != nil {
		return err
	}
	if *noBackup {
		os.Remove(path + ".backup")
	}

	fmt.Printf("Injected %d patches into %s\n", len(patches), path)
	return nil
}

func runTest(paths common.Paths, args []string) error {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	cores := fs.Int("cores", amdpatch.DefaultCores, "CPU core count to stamp into the patches")
	fs.Parse(args)

	patches, err := amdpatch.LoadPatches(paths.AMDPatches)
	if err != nil {
		return err
	}
	prepared, err := amdpatch.Prepare(patches, *cores)
	if err != nil {
		return err
	}

	fmt.Printf("Core patches stamped for %d cores:\n", *cores)
	for _, p := range prepared {
		if !amdpatch.IsCorePatch(p) {
			continue
		}
		comment, _ := p["Comment"].(string)
		replace, _ := p["Replace"].([]byte)
		fmt.Printf("  %s\n", comment)
		fmt.Printf("    Replace: % X\n", replace)
	}
	return nil
}

func runList(paths common.Paths) error {
	names, err := common.ListChangesets(paths.Changesets)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No changesets found")
		return nil
	}

	fmt.Println("Available changesets:")
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}
