package profile

import (
	"sort"
	"strings"

	"github.com/tmc/llvmprofparser/internal/symtab"
)

// variant bits carried in the high byte of a profile's on-disk version
// field (llvm/include/llvm/ProfileData/InstrProfData.inc).
const (
	variantMaskAll       = 0xFF00_0000_0000_0000
	variantIRProf        = uint64(1) << 56
	variantCSIRProf      = uint64(1) << 57
	variantEntryFirst    = uint64(1) << 58
	variantByteCoverage  = uint64(1) << 60
	variantFuncEntryOnly = uint64(1) << 61
	variantMemProf       = uint64(1) << 62
)

// Model is the in-memory representation of a parsed instrumentation
// profile (spec §3's ProfileModel), produced by the text, raw, or indexed
// readers and consumed by merge and the counter evaluator.
type Model struct {
	Version        uint64 // masked: high-byte variant bits already stripped
	IsIR           bool
	IsCSIR         bool
	IsEntryFirst   bool
	IsByteCoverage bool
	FuncEntryOnly  bool
	MemoryProfile  bool

	Records []ProfileRecord
	Symtab  *symtab.Table

	// LittleEndian records which byte order names in this model were
	// hashed under when added to Symtab (the raw reader sets it from the
	// file's byte order). Merge copies it from the base model; its record
	// matching tries both byte orders without consulting it.
	LittleEndian bool

	byNameHash map[uint64]int // name_hash -> index into Records, when known
	byFuncHash map[uint64][]int
}

// NewModel returns an empty Model with an initialized symbol table.
func NewModel() *Model {
	return &Model{
		Symtab:       symtab.New(),
		LittleEndian: true,
		byNameHash:   make(map[uint64]int),
		byFuncHash:   make(map[uint64][]int),
	}
}

// SetVersionField decodes a raw on-disk version word into the masked
// version plus its variant flags, per spec §3.
func (m *Model) SetVersionField(raw uint64) {
	m.Version = raw &^ variantMaskAll
	m.IsIR = raw&variantIRProf != 0
	m.IsCSIR = raw&variantCSIRProf != 0
	m.IsEntryFirst = raw&variantEntryFirst != 0
	m.IsByteCoverage = raw&variantByteCoverage != 0
	m.FuncEntryOnly = raw&variantFuncEntryOnly != 0
	m.MemoryProfile = raw&variantMemProf != 0
}

// AddRecord appends r and indexes it by whichever of (NameHash, FuncHash)
// it carries, so later lookups (merge, evaluator matching) don't have to
// scan linearly.
func (m *Model) AddRecord(r ProfileRecord) {
	idx := len(m.Records)
	m.Records = append(m.Records, r)
	if r.HasNameHash {
		m.byNameHash[r.NameHash] = idx
	}
	if r.HasFuncHash {
		m.byFuncHash[r.FuncHash] = append(m.byFuncHash[r.FuncHash], idx)
	}
}

// reindex rebuilds the lookup maps from Records, for use after Records has
// been edited directly.
func (m *Model) reindex() {
	m.byNameHash = make(map[uint64]int)
	m.byFuncHash = make(map[uint64][]int)
	for i, r := range m.Records {
		if r.HasNameHash {
			m.byNameHash[r.NameHash] = i
		}
		if r.HasFuncHash {
			m.byFuncHash[r.FuncHash] = append(m.byFuncHash[r.FuncHash], i)
		}
	}
}

// FindByKey locates a record matching (nameHash, funcHash), falling back
// to funcHash alone, per spec §4.G step 2. Returns -1 if none match.
func (m *Model) FindByKey(nameHash, funcHash uint64, haveName bool) int {
	if haveName {
		if idx, ok := m.byNameHash[nameHash]; ok && m.Records[idx].FuncHash == funcHash {
			return idx
		}
	}
	if idxs, ok := m.byFuncHash[funcHash]; ok && len(idxs) > 0 {
		return idxs[0]
	}
	return -1
}

// RecordByIndex returns a pointer into Records so callers can mutate a
// record in place (used by merge's saturating-add).
func (m *Model) RecordByIndex(i int) *ProfileRecord { return &m.Records[i] }

// SortedRecords returns Records ordered by (NameHash, FuncHash) for
// deterministic iteration in tests and reports; it does not mutate m.
func (m *Model) SortedRecords() []ProfileRecord {
	out := make([]ProfileRecord, len(m.Records))
	copy(out, m.Records)
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameHash != out[j].NameHash {
			return out[i].NameHash < out[j].NameHash
		}
		return out[i].FuncHash < out[j].FuncHash
	})
	return out
}

// ProfileData is the object-file-side counterpart to a raw-profile
// ProfileData entry, decoded from the prf_data section (spec §4.H).
type ProfileData struct {
	NameMD5        uint64
	StructuralHash uint64
	CountersLen    uint32
}

// CoverageSections is everything extracted from one coverage-instrumented
// object file: the filename lists keyed by their covmap hash, the
// per-function region/expression records from covfun, and (optionally)
// embedded counters from prf_cnts/prf_data for object files that carry
// their own baked-in profile.
type CoverageSections struct {
	CovMap   map[uint64][]string
	CovFun   []FunctionRecord
	ProfCnts []uint64
	ProfData []ProfileData
}

// CoverageMapping is the result of matching a Model's records against one
// or more CoverageSections (spec §6's build_coverage result): for each
// function, its FunctionRecord plus the resolved filename list and the
// ProfileRecord (if any) the evaluator should fold counts from.
type CoverageMapping struct {
	Functions []MappedFunction
}

// MappedFunction pairs a coverage FunctionRecord with its resolved
// filenames and (if found) matching runtime ProfileRecord.
type MappedFunction struct {
	Function  FunctionRecord
	Filenames []string
	Record    *ProfileRecord
	HasRecord bool
}

// CoverageReport is the final line-level result: per source path, a
// saturating-additive map from source range to execution count.
type CoverageReport struct {
	Files map[string]*FileReport
	// order preserves first-insertion order of file paths so textual
	// output is deterministic without re-sorting every time.
	order []string
}

// FileReport is one source file's range->count map.
type FileReport struct {
	Counts map[SourceRange]uint64
}

// NewCoverageReport returns an empty report.
func NewCoverageReport() *CoverageReport {
	return &CoverageReport{Files: make(map[string]*FileReport)}
}

// fileReport returns (creating if needed) the FileReport for path.
func (r *CoverageReport) fileReport(path string) *FileReport {
	fr, ok := r.Files[path]
	if !ok {
		fr = &FileReport{Counts: make(map[SourceRange]uint64)}
		r.Files[path] = fr
		r.order = append(r.order, path)
	}
	return fr
}

// Insert saturating-adds count into path's map at rng, per spec §4.J.
func (r *CoverageReport) Insert(path string, rng SourceRange, count uint64) {
	fr := r.fileReport(path)
	existing := fr.Counts[rng]
	fr.Counts[rng] = saturatingAdd(existing, count)
}

// Paths returns the report's file paths in first-insertion order.
func (r *CoverageReport) Paths() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ApplyRemapping rewrites every report key whose path starts with from to
// the same suffix joined onto to, per spec §4.J. Paths that don't match
// from are left untouched.
func (r *CoverageReport) ApplyRemapping(from, to string) {
	renamed := make(map[string]*FileReport, len(r.Files))
	var newOrder []string
	seen := make(map[string]bool)
	for _, path := range r.order {
		fr := r.Files[path]
		newPath := path
		if strings.HasPrefix(path, from) {
			newPath = to + strings.TrimPrefix(path, from)
		}
		if existing, ok := renamed[newPath]; ok {
			for rng, count := range fr.Counts {
				existing.Counts[rng] = saturatingAdd(existing.Counts[rng], count)
			}
		} else {
			renamed[newPath] = fr
		}
		if !seen[newPath] {
			seen[newPath] = true
			newOrder = append(newOrder, newPath)
		}
	}
	r.Files = renamed
	r.order = newOrder
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a { // overflow
		return ^uint64(0)
	}
	return sum
}
