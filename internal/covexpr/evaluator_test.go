package covexpr

import (
	"testing"

	"github.com/tmc/llvmprofparser/profile"
)

func TestEvaluateDirectInstrumentation(t *testing.T) {
	fn := &profile.FunctionRecord{
		Regions: []profile.Region{
			{
				Kind:    profile.RegionCode,
				Primary: profile.Counter{Kind: profile.CounterInstrumentation, ID: 0},
				FileID:  0,
				Range:   profile.SourceRange{LineStart: 1, ColumnStart: 1, LineEnd: 1, ColumnEnd: 5},
			},
		},
	}
	rec := &profile.ProfileRecord{Counts: []uint64{42}}
	report := profile.NewCoverageReport()

	if err := Evaluate(fn, rec, []string{"a.c"}, report); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	rng := fn.Regions[0].Range
	if got := report.Files["a.c"].Counts[rng]; got != 42 {
		t.Errorf("count = %d, want 42", got)
	}
}

func TestEvaluateNoFilenamesSkipsFunction(t *testing.T) {
	fn := &profile.FunctionRecord{
		Regions: []profile.Region{{Kind: profile.RegionCode, Primary: profile.Counter{Kind: profile.CounterInstrumentation}}},
	}
	report := profile.NewCoverageReport()
	if err := Evaluate(fn, &profile.ProfileRecord{Counts: []uint64{9}}, nil, report); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(report.Paths()) != 0 {
		t.Errorf("expected no report entries, got %v", report.Paths())
	}
}

func TestEvaluateMissingInstrumentationDefaultsToZero(t *testing.T) {
	fn := &profile.FunctionRecord{
		Regions: []profile.Region{
			{Kind: profile.RegionCode, Primary: profile.Counter{Kind: profile.CounterInstrumentation, ID: 5}, FileID: 0},
		},
	}
	report := profile.NewCoverageReport()
	if err := Evaluate(fn, &profile.ProfileRecord{Counts: []uint64{1}}, []string{"a.c"}, report); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	rng := fn.Regions[0].Range
	if got := report.Files["a.c"].Counts[rng]; got != 0 {
		t.Errorf("count = %d, want 0 for out-of-range instrumentation id", got)
	}
}

func TestEvaluateExpressionSubtractSaturatesAtZero(t *testing.T) {
	fn := &profile.FunctionRecord{
		Expressions: []profile.Expression{
			{
				Kind: profile.ExprSubtract,
				LHS:  profile.Counter{Kind: profile.CounterInstrumentation, ID: 0},
				RHS:  profile.Counter{Kind: profile.CounterInstrumentation, ID: 1},
			},
		},
		Regions: []profile.Region{
			{Kind: profile.RegionCode, Primary: profile.Counter{Kind: profile.CounterSubtract, ID: 0}, FileID: 0},
		},
	}
	report := profile.NewCoverageReport()
	rec := &profile.ProfileRecord{Counts: []uint64{3, 10}}
	if err := Evaluate(fn, rec, []string{"a.c"}, report); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	rng := fn.Regions[0].Range
	if got := report.Files["a.c"].Counts[rng]; got != 0 {
		t.Errorf("count = %d, want 0 (saturated subtraction)", got)
	}
}

func TestEvaluateMultiPassConvergence(t *testing.T) {
	// Expressions[0] = Expressions[1] + instr(0); Expressions[1] = zero +
	// instr(1). Expressions[0] can't resolve until Expressions[1] does,
	// which happens later in the same first pass (since it's at a higher
	// index), forcing a second pass over the pending list.
	fn := &profile.FunctionRecord{
		Expressions: []profile.Expression{
			{
				Kind: profile.ExprAdd,
				LHS:  profile.Counter{Kind: profile.CounterAdd, ID: 1},
				RHS:  profile.Counter{Kind: profile.CounterInstrumentation, ID: 0},
			},
			{
				Kind: profile.ExprAdd,
				LHS:  profile.Zero,
				RHS:  profile.Counter{Kind: profile.CounterInstrumentation, ID: 1},
			},
		},
		Regions: []profile.Region{
			{Kind: profile.RegionCode, Primary: profile.Counter{Kind: profile.CounterAdd, ID: 0}, FileID: 0},
		},
	}
	report := profile.NewCoverageReport()
	rec := &profile.ProfileRecord{Counts: []uint64{2, 5}}
	if err := Evaluate(fn, rec, []string{"a.c"}, report); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	rng := fn.Regions[0].Range
	if got := report.Files["a.c"].Counts[rng]; got != 7 {
		t.Errorf("count = %d, want 7 (5+2)", got)
	}
}

func TestEvaluateNonConvergentGraphReturnsErrMalformed(t *testing.T) {
	// Expressions[0] references itself, so it can never resolve.
	fn := &profile.FunctionRecord{
		Expressions: []profile.Expression{
			{
				Kind: profile.ExprSubtract,
				LHS:  profile.Counter{Kind: profile.CounterSubtract, ID: 0},
				RHS:  profile.Zero,
			},
		},
		Regions: []profile.Region{
			{Kind: profile.RegionCode, Primary: profile.Counter{Kind: profile.CounterSubtract, ID: 0}, FileID: 0},
		},
	}
	report := profile.NewCoverageReport()
	err := Evaluate(fn, &profile.ProfileRecord{Counts: []uint64{1}}, []string{"a.c"}, report)
	if err != ErrMalformed {
		t.Fatalf("Evaluate() error = %v, want ErrMalformed", err)
	}
}

func TestEvaluateFileIDOutOfRangeSkipsRegion(t *testing.T) {
	fn := &profile.FunctionRecord{
		Regions: []profile.Region{
			{Kind: profile.RegionCode, Primary: profile.Counter{Kind: profile.CounterInstrumentation, ID: 0}, FileID: 5},
		},
	}
	report := profile.NewCoverageReport()
	if err := Evaluate(fn, &profile.ProfileRecord{Counts: []uint64{1}}, []string{"a.c"}, report); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(report.Paths()) != 0 {
		t.Errorf("expected no report entries for out-of-range FileID, got %v", report.Paths())
	}
}
