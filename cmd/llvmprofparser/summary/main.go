// Command summary prints the percentile-cutoff histogram over a profile's
// counts, supplementing spec §4.F's on-disk summary with one computed
// directly from any parsed profile (SPEC_FULL §C).
package summary

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tmc/llvmprofparser"
	"github.com/tmc/llvmprofparser/profile"
)

// Main runs the summary subcommand and returns a process exit code.
func Main() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: summary <profile>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "summary: at least one profile path is required")
		return 1
	}

	m, err := llvmprofparser.MergeProfiles(paths)
	if err != nil {
		fmt.Fprintf(stderr, "summary: %v\n", err)
		return 1
	}

	printSummary(stdout, profile.Summarize(m))
	return 0
}

func printSummary(w io.Writer, s profile.Summary) {
	fmt.Fprintf(w, "functions: %d\n", s.NumFunctions)
	fmt.Fprintf(w, "total count: %d\n", s.TotalCount)
	fmt.Fprintf(w, "max count: %d\n", s.MaxCount)
	fmt.Fprintf(w, "max function count: %d\n", s.MaxFunctionCount)
	fmt.Fprintf(w, "max internal block count: %d\n", s.MaxInternalBlockCount)
	for _, e := range s.DetailedSummary {
		fmt.Fprintf(w, "  cutoff %d: min count %d over %d counts\n", e.Cutoff, e.MinCount, e.NumCounts)
	}
}
