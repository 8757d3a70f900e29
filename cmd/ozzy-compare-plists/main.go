package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ozzy-project/ozzy/internal/common"
	"github.com/ozzy-project/ozzy/internal/compare"
	"github.com/ozzy-project/ozzy/internal/ocplist"
)

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func main() {
	var verbose, binaryDetails bool
	flag.BoolVar(&verbose, "verbose", false, "list every difference instead of three per section")
	flag.BoolVar(&binaryDetails, "binary-details", false, "render data values as hex instead of a length")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <a.plist> <b.plist>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	common.SetupLogging()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	first, err := ocplist.Load(flag.Arg(0))
	if err != nil {
		fail(err)
	}
	second, err := ocplist.Load(flag.Arg(1))
	if err != nil {
		fail(err)
	}

	fmt.Printf("Comparing %s and %s\n\n", flag.Arg(0), flag.Arg(1))
	result := compare.Plists(first, second)
	result.Render(os.Stdout, compare.RenderOptions{
		Verbose:       verbose,
		BinaryDetails: binaryDetails,
	})
}
