package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ozzy-project/ozzy/internal/changeset"
	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/datafmt"
	"github.com/ozzy-project/ozzy/internal/smbios"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func printIdentity(header string, cs changeset.Changeset) {
	dict, ok := changeset.SMBIOS(cs)
	if !ok {
		fmt.Println(header, "(no smbios section)")
		return
	}

	fmt.Println(header)
	for _, field := range []string{"SystemProductName", "SystemSerialNumber", "MLB", "SystemUUID"} {
		value, _ := dict[field].(string)
		fmt.Printf("  %-20s %s\n", field, value)
	}
	rom := dict["ROM"]
	if bytes, ok := datafmt.ByteListToBytes(rom); ok {
		fmt.Printf("  %-20s %s\n", "ROM", datafmt.BytesToHexString(bytes))
	} else if rom != nil {
		fmt.Printf("  %-20s %v\n", "ROM", rom)
	}
}

func main() {
	var force bool
	var list bool
	flag.BoolVar(&force, "force", false, "regenerate even when the data looks real")
	flag.BoolVar(&list, "list", false, "list the model identifiers macserial supports")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <changeset>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	paths := common.ProjectPaths(common.FindRoot())

	if list {
		out, err := common.RunCommand(paths.Macserial, "-l")
		if err != nil {
			fail(fmt.Errorf("macserial not found at %s, run ozzy-fetch-assets first", paths.Macserial))
		}
		fmt.Print(out)
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	name := strings.TrimSuffix(flag.Arg(0), ".yaml")
	path := filepath.Join(paths.Changesets, name+".yaml")

	cs, err := changeset.Load(path)
	if err != nil {
		fail(err)
	}
	printIdentity("Current SMBIOS:", cs)

	changed, err := smbios.ValidateAndGenerate(paths.Macserial, cs, "", force)
	if err != nil {
		fail(err)
	}
	if !changed {
		fmt.Println("Nothing to do.")
		return
	}

	if err := changeset.Save(path, cs); err != nil {
		fail(err)
	}
	fmt.Println()
	printIdentity("Generated SMBIOS:", cs)
	fmt.Println("Saved to", path)
}
