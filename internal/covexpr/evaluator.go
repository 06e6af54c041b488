// Package covexpr evaluates a FunctionRecord's counter-expression graph
// against a matching ProfileRecord's counts, folding every region's
// resolved execution count into a CoverageReport (spec §4.I).
package covexpr

import (
	"fmt"

	"github.com/tmc/llvmprofparser/profile"
)

// ErrMalformed is returned when the expression graph fails to converge
// within the pass bound spec §4.I requires.
var ErrMalformed = fmt.Errorf("covexpr: expression graph did not converge")

// key identifies a resolved counter value in the working map: Zero and
// Instrumentation counters are keyed by their Counter value directly;
// Subtract/Add expressions are keyed by their table index, since both
// kinds can reference the same index space independently of Kind.
type key struct {
	kind profile.CounterKind
	id   uint64
}

func keyOf(c profile.Counter) key {
	if c.IsExpression() {
		return key{kind: profile.CounterSubtract, id: c.ID}
	}
	return key{kind: c.Kind, id: c.ID}
}

// Evaluate folds every region of fn into report, using filenames (indexed
// by Region.FileID) to resolve each region's destination file and rec's
// counts to seed instrumentation values. If filenames is empty the
// function is skipped entirely, per spec §4.I.
func Evaluate(fn *profile.FunctionRecord, rec *profile.ProfileRecord, filenames []string, report *profile.CoverageReport) error {
	if len(filenames) == 0 {
		return nil
	}

	values := make(map[key]uint64)
	values[keyOf(profile.Zero)] = 0
	if rec != nil {
		for id, c := range rec.Counts {
			values[key{kind: profile.CounterInstrumentation, id: uint64(id)}] = c
		}
	}

	emit := func(reg profile.Region) {
		if int(reg.FileID) >= len(filenames) {
			return
		}
		count := lookup(values, reg.Primary)
		report.Insert(filenames[reg.FileID], reg.Range, count)
	}

	for _, reg := range fn.Regions {
		if !reg.Primary.IsExpression() {
			emit(reg)
		}
	}

	resolveOnce := func(idx uint64) bool {
		if idx >= uint64(len(fn.Expressions)) {
			return false
		}
		expr := fn.Expressions[idx]
		lhs, lhsOK := resolveOperand(values, expr.LHS)
		rhs, rhsOK := resolveOperand(values, expr.RHS)
		if !lhsOK || !rhsOK {
			return false
		}
		var total uint64
		switch expr.Kind {
		case profile.ExprAdd:
			total = lhs + rhs
		default:
			if rhs > lhs {
				total = 0
			} else {
				total = lhs - rhs
			}
		}
		ec := profile.Counter{Kind: profile.CounterSubtract, ID: idx}
		if expr.Kind == profile.ExprAdd {
			ec.Kind = profile.CounterAdd
		}
		values[keyOf(ec)] = total
		return true
	}

	// First pass over every expression slot, by position, per spec §4.I
	// step 3; anything left unresolved goes on the pending list for the
	// fixed-point loop below.
	var pending []uint64
	for idx := range fn.Expressions {
		if resolveOnce(uint64(idx)) {
			continue
		}
		pending = append(pending, uint64(idx))
	}

	bound := len(pending) + 1
	for pass := 0; len(pending) > 0 && pass < bound; pass++ {
		var next []uint64
		progressed := false
		for _, idx := range pending {
			if resolveOnce(idx) {
				progressed = true
				continue
			}
			next = append(next, idx)
		}
		pending = next
		if !progressed {
			break
		}
	}
	if len(pending) > 0 {
		return ErrMalformed
	}

	for _, reg := range fn.Regions {
		if reg.Primary.IsExpression() {
			emit(reg)
		}
	}

	return nil
}

// resolveOperand looks up c's current value. An Instrumentation operand
// that is simply absent from values (an optimized-out counter id) resolves
// to 0 rather than blocking the expression, per spec §4.I step 3.
func resolveOperand(values map[key]uint64, c profile.Counter) (uint64, bool) {
	v, ok := values[keyOf(c)]
	if ok {
		return v, true
	}
	if c.Kind == profile.CounterInstrumentation {
		values[keyOf(c)] = 0
		return 0, true
	}
	return 0, false
}

func lookup(values map[key]uint64, c profile.Counter) uint64 {
	return values[keyOf(c)]
}
