package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ozzy-project/ozzy/internal/apply"
	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/datafmt"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func listChangesets(paths common.Paths) {
	names, err := common.ListChangesets(paths.Changesets)
	if err != nil {
		fail(err)
	}
	if len(names) == 0 {
		fmt.Println("No changesets found")
		return
	}
	fmt.Println("Available changesets:")
	for _, name := range names {
		fmt.Println("  -", name)
	}
}

func printSummary(cs changeset.Changeset) {
	if meta, ok := changeset.SectionDict(cs, "metadata"); ok {
		if name, ok := meta["name"].(string); ok {
			fmt.Println("  Name:       ", name)
		}
		if desc, ok := meta["description"].(string); ok {
			fmt.Println("  Description:", desc)
		}
		if hw, ok := datafmt.AsDict(meta["hardware"]); ok {
			if cpu, ok := hw["cpu"].(string); ok {
				fmt.Println("  CPU:        ", cpu)
			}
			if gpu, ok := hw["gpu"].(string); ok {
				fmt.Println("  GPU:        ", gpu)
			}
		}
	}

	summary := changeset.Summarize(cs)
	var sections []string
	for _, s := range summary.Sections {
		if s == "metadata" || s == "proxmox" {
			continue
		}
		sections = append(sections, s)
	}
	fmt.Println("  Sections:   ", strings.Join(sections, ", "))
	fmt.Println("  Kexts:      ", summary.KextCount)
	if summary.Model != "" {
		fmt.Println("  Model:      ", summary.Model)
	}
}

func main() {
	var force, list bool
	flag.BoolVar(&force, "force", false, "skip the confirmation prompt")
	flag.BoolVar(&list, "list", false, "list available changesets and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <changeset>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	paths := common.ProjectPaths(common.FindRoot())

	if list {
		listChangesets(paths)
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	name := common.TrimChangesetName(flag.Arg(0))
	path := common.ChangesetPath(paths.Changesets, name)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: changeset not found: %s\n\n", path)
		listChangesets(paths)
		os.Exit(1)
	}

	cs, err := changeset.Load(path)
	if err != nil {
		fail(err)
	}

	fmt.Println("Switching to changeset:", name)
	fmt.Println("Changeset summary:")
	printSummary(cs)

	if !force {
		fmt.Print("\nProceed with applying this changeset? [y/N]: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "y" && answer != "yes" {
			fmt.Println("Operation cancelled")
			os.Exit(1)
		}
	}

	if err := apply.Run(paths, cs, name, apply.Options{}); err != nil {
		fail(err)
	}

	if _, err := os.Stat(paths.BuiltConfig); err == nil {
		fmt.Println("✓ Config file:", paths.BuiltConfig)
	} else {
		fmt.Println("✗ Config file not found:", paths.BuiltConfig)
	}
	fmt.Println("Changeset switch complete, build media with ozzy-build-iso or ozzy-build-usb")
}
