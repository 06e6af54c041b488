// Command merge reduces one or more instrumentation profiles into a
// single merged profile summary, per spec §4.G.
package merge

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tmc/llvmprofparser"
	"github.com/tmc/llvmprofparser/profile"
)

// Main runs the merge subcommand and returns a process exit code.
func Main() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: merge <profile>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(stderr, "merge: at least one profile path is required")
		return 1
	}

	m, err := llvmprofparser.MergeProfiles(paths)
	if err != nil {
		fmt.Fprintf(stderr, "merge: %v\n", err)
		return 1
	}

	printSummary(stdout, m)
	return 0
}

func printSummary(w io.Writer, m *profile.Model) {
	fmt.Fprintf(w, "records: %d\n", len(m.Records))
	fmt.Fprintf(w, "symbols: %d\n", m.Symtab.Len())
	fmt.Fprintf(w, "ir: %v  csir: %v  entry-first: %v  byte-coverage: %v\n",
		m.IsIR, m.IsCSIR, m.IsEntryFirst, m.IsByteCoverage)
}
