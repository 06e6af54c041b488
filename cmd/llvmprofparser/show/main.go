// Command show prints a per-line coverage report, matching spec §6's CLI
// surface: "show --instr-profile <files>... --object <files>...
// [--path-equivalence src,dst]".
package show

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/tmc/llvmprofparser"
	"github.com/tmc/llvmprofparser/profile"
)

// stringList collects repeated -instr-profile / -object flag occurrences.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// Main runs the show subcommand against os.Args[1:] and returns a process
// exit code: 0 on success, non-zero otherwise.
func Main() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: show --instr-profile <files>... --object <files>... [--path-equivalence src,dst]")
		fs.PrintDefaults()
	}

	var instrProfiles, objects stringList
	fs.Var(&instrProfiles, "instr-profile", "instrumentation profile file (repeatable)")
	fs.Var(&objects, "object", "instrumented object file (repeatable)")
	pathEquivalence := fs.String("path-equivalence", "", "src,dst path remapping applied to report paths")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(instrProfiles) == 0 {
		fmt.Fprintln(stderr, "show: at least one --instr-profile is required")
		return 1
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	m, err := llvmprofparser.MergeProfiles(instrProfiles)
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return 1
	}

	mapping, err := llvmprofparser.BuildCoverage(m, objects)
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return 1
	}

	report, err := llvmprofparser.GenerateReport(mapping)
	if err != nil {
		fmt.Fprintf(stderr, "show: %v\n", err)
		return 1
	}

	if *pathEquivalence != "" {
		from, to, ok := strings.Cut(*pathEquivalence, ",")
		if !ok {
			fmt.Fprintln(stderr, "show: --path-equivalence must be src,dst")
			return 1
		}
		llvmprofparser.ApplyRemapping(report, from, to)
	}

	printReport(stdout, report, logger)
	return 0
}

func printReport(w io.Writer, report *profile.CoverageReport, logger *slog.Logger) {
	for _, path := range report.Paths() {
		fr := report.Files[path]
		if len(fr.Counts) == 0 {
			fmt.Fprintf(w, "%5d|%7s|%s\n", 0, "", path)
			continue
		}
		ranges := make([]profile.SourceRange, 0, len(fr.Counts))
		for rng := range fr.Counts {
			ranges = append(ranges, rng)
		}
		sort.Slice(ranges, func(i, j int) bool {
			if ranges[i].LineStart != ranges[j].LineStart {
				return ranges[i].LineStart < ranges[j].LineStart
			}
			return ranges[i].ColumnStart < ranges[j].ColumnStart
		})
		for _, rng := range ranges {
			count := fr.Counts[rng]
			fmt.Fprintf(w, "%5d|%7d|%s\n", rng.LineStart, count, path)
		}
	}
	logger.Debug("report printed", "files", len(report.Paths()))
}
