// Command llvmprofparser reads, merges, and reports on LLVM source-based
// code-coverage profiles.
package main

import (
	"fmt"
	"os"

	"github.com/tmc/llvmprofparser/cmd/llvmprofparser/merge"
	"github.com/tmc/llvmprofparser/cmd/llvmprofparser/show"
	"github.com/tmc/llvmprofparser/cmd/llvmprofparser/summary"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	sub := os.Args[1]
	os.Args = append([]string{os.Args[0] + " " + sub}, os.Args[2:]...)

	switch sub {
	case "show":
		os.Exit(show.Main())
	case "merge":
		os.Exit(merge.Main())
	case "summary":
		os.Exit(summary.Main())
	default:
		fmt.Fprintf(os.Stderr, "llvmprofparser: unknown command %q\n", sub)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <command> [flags]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  show     print a per-line coverage report")
	fmt.Fprintln(os.Stderr, "  merge    merge instrumentation profiles and print a summary")
	fmt.Fprintln(os.Stderr, "  summary  print a percentile-cutoff histogram over a profile")
}
