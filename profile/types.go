// Package profile defines the in-memory data model shared by every
// profile and coverage-section reader in llvmprofparser: counters and
// counter expressions, coverage regions, the per-function records on both
// the instrumented-object side (FunctionRecord) and the runtime-profile
// side (ProfileRecord), and the aggregate ProfileModel and
// CoverageSections that the counter evaluator consumes.
package profile

import "math"

// CounterKind identifies what a Counter encodes.
type CounterKind uint8

const (
	// CounterZero is the always-zero counter; its Counter.ID is ignored.
	CounterZero CounterKind = iota
	// CounterInstrumentation indexes into a ProfileRecord's Counts.
	CounterInstrumentation
	// CounterSubtract indexes into a function's Expressions table; the
	// referenced Expression computes lhs - rhs.
	CounterSubtract
	// CounterAdd indexes into a function's Expressions table; the
	// referenced Expression computes lhs + rhs.
	CounterAdd
)

// Counter is the tagged {kind, id} value every region and expression
// operand is built from. The on-disk encoding packs this into a single
// 64-bit unsigned: bits 0-1 carry the kind tag (0=Zero, 1=Instrumentation,
// 2=Subtract, 3=Add) and bits 2+ carry the id.
type Counter struct {
	Kind CounterKind
	ID   uint64
}

// Zero is the canonical zero counter.
var Zero = Counter{Kind: CounterZero}

// DecodeCounter unpacks a raw on-disk counter value.
func DecodeCounter(raw uint64) Counter {
	tag := raw & 0x3
	id := raw >> 2
	switch tag {
	case 0:
		return Counter{Kind: CounterZero}
	case 1:
		return Counter{Kind: CounterInstrumentation, ID: id}
	case 2:
		return Counter{Kind: CounterSubtract, ID: id}
	default:
		return Counter{Kind: CounterAdd, ID: id}
	}
}

// Encode packs c back into its on-disk representation.
func (c Counter) Encode() uint64 {
	switch c.Kind {
	case CounterZero:
		return 0
	case CounterInstrumentation:
		return (c.ID << 2) | 1
	case CounterSubtract:
		return (c.ID << 2) | 2
	default:
		return (c.ID << 2) | 3
	}
}

// IsExpression reports whether c refers into a function's Expressions
// table (as opposed to being Zero or Instrumentation).
func (c Counter) IsExpression() bool {
	return c.Kind == CounterSubtract || c.Kind == CounterAdd
}

// ExpressionKind distinguishes the two counter-expression operators.
type ExpressionKind uint8

const (
	ExprSubtract ExpressionKind = iota
	ExprAdd
)

// Expression is a symbolic arithmetic combination of two counters. The
// zero value is {Subtract, Zero, Zero}, matching LLVM's default-constructed
// expression slot before anything references it.
type Expression struct {
	Kind ExpressionKind
	LHS  Counter
	RHS  Counter
}

// RegionKind classifies a Region.
type RegionKind uint8

const (
	RegionCode RegionKind = iota
	RegionExpansion
	RegionSkipped
	RegionGap
	RegionBranch
)

// SourceRange is an inclusive source span; NormalizeColumns
// resolves the (0,0) "unspecified" column encoding to (1, +Inf) before a
// SourceRange is ever stored in a Region.
type SourceRange struct {
	LineStart, ColumnStart uint32
	LineEnd, ColumnEnd     uint32
}

// UnboundedColumn is the sentinel used in place of a (0,0)-encoded column
// pair: LLVM uses it to mean "rest of the line," which for line-level
// reporting we represent as MaxUint32 so range comparisons stay total.
const UnboundedColumn = math.MaxUint32

// NormalizeColumns applies the "(0,0) means (1, unbounded)" rule from
// spec §3 to a freshly decoded column pair.
func NormalizeColumns(colStart, colEnd uint32) (uint32, uint32) {
	if colStart == 0 && colEnd == 0 {
		return 1, UnboundedColumn
	}
	return colStart, colEnd
}

// Region is a source range annotated with one or two counters.
type Region struct {
	Kind           RegionKind
	Primary        Counter
	Secondary      Counter // meaningful only when Kind == RegionBranch
	FileID         uint64
	ExpandedFileID uint64 // meaningful only when Kind == RegionExpansion
	Range          SourceRange
}

// FunctionRecord is the coverage-side (object-file) description of one
// instrumented function: its region layout and the counter-expression
// table those regions reference.
type FunctionRecord struct {
	NameHash      uint64
	DataLen       uint32
	FuncHash      uint64
	FilenamesRef  uint64
	Regions       []Region
	Expressions   []Expression
}

// IsDummy reports whether this is a placeholder record (FuncHash == 0)
// retained only for its filename mapping.
func (f *FunctionRecord) IsDummy() bool { return f.FuncHash == 0 }

// ExpressionAt returns a pointer to the Expression at idx, growing
// Expressions with default-valued entries if idx is not yet present. This
// implements the "default-then-patch" lazy table growth from spec §9: an
// expression's Kind is only known once some counter refers to it, and
// that reference can arrive before the expression's own table slot has
// been allocated by the decoder that built this FunctionRecord.
func (f *FunctionRecord) ExpressionAt(idx uint64) *Expression {
	for uint64(len(f.Expressions)) <= idx {
		f.Expressions = append(f.Expressions, Expression{Kind: ExprSubtract})
	}
	return &f.Expressions[idx]
}

// ValueKind distinguishes the two value-profile site kinds.
type ValueKind int

const (
	ValueIndirectCallTarget ValueKind = iota
	ValueMemOpSize
)

// ValueData is one observed (value, count) pair at a value-profile site.
type ValueData struct {
	Value uint64
	Count uint64
}

// ValueSite is every ValueData observed at a single call site or mem-op.
type ValueSite []ValueData

// ValueProfileData holds the per-kind value-profile sites for one
// ProfileRecord.
type ValueProfileData struct {
	IndirectCallSites []ValueSite
	MemOpSizes        []ValueSite
}

// NumSites returns the number of sites recorded for kind.
func (v *ValueProfileData) NumSites(kind ValueKind) int {
	if v == nil {
		return 0
	}
	switch kind {
	case ValueIndirectCallTarget:
		return len(v.IndirectCallSites)
	default:
		return len(v.MemOpSizes)
	}
}

// ProfileRecord is the runtime-side (instrumentation profile) description
// of one function: its raw counter vector and, optionally, value-profile
// data.
type ProfileRecord struct {
	Name         string
	HasName      bool
	NameHash     uint64
	HasNameHash  bool
	FuncHash     uint64
	HasFuncHash  bool
	Counts       []uint64
	ValueProfile *ValueProfileData
}

// Key identifies a ProfileRecord for lookup/merge purposes: (nameHash,
// fnHash) when both are known, falling back to fnHash alone per spec §4.G.
type Key struct {
	NameHash uint64
	FuncHash uint64
}
