// Package profmerge implements the multi-profile reduction described in
// spec §4.G: pick a base model, reconcile every other model's records
// into it by (name_hash, fn_hash), and merge symbol tables.
package profmerge

import (
	"encoding/binary"

	"github.com/tmc/llvmprofparser/internal/symtab"
	"github.com/tmc/llvmprofparser/profile"
)

// Merge reduces models into a single Model, in order: models[0] is the
// base (its Version and variant flags win unless unset, in which case the
// first model that sets them is adopted), and every later model's records
// are reconciled into it one at a time.
//
// Record-length mismatches during an individual merge are tolerated per
// spec §4.C/§4.G: the record is left unchanged and the driver continues.
// Hash collisions resolving distinct functions to the same key are
// likewise tolerated silently, matching upstream llvm-profdata.
func Merge(models []*profile.Model) *profile.Model {
	if len(models) == 0 {
		return profile.NewModel()
	}

	// Copy the base model's records into a fresh Model so later merges
	// don't mutate the caller's original.
	result := profile.NewModel()
	for _, r := range models[0].Records {
		result.AddRecord(cloneRecord(r))
	}
	result.Version = models[0].Version
	result.IsIR = models[0].IsIR
	result.IsCSIR = models[0].IsCSIR
	result.IsEntryFirst = models[0].IsEntryFirst
	result.IsByteCoverage = models[0].IsByteCoverage
	result.FuncEntryOnly = models[0].FuncEntryOnly
	result.MemoryProfile = models[0].MemoryProfile
	result.LittleEndian = models[0].LittleEndian
	result.Symtab.Merge(models[0].Symtab)

	if result.Version == 0 {
		for _, m := range models[1:] {
			if m.Version != 0 {
				result.Version = m.Version
				result.IsIR = m.IsIR
				result.IsCSIR = m.IsCSIR
				result.IsEntryFirst = m.IsEntryFirst
				result.IsByteCoverage = m.IsByteCoverage
				result.FuncEntryOnly = m.FuncEntryOnly
				result.MemoryProfile = m.MemoryProfile
				break
			}
		}
	}

	for _, other := range models[1:] {
		mergeOne(result, other)
	}
	return result
}

func mergeOne(dst *profile.Model, src *profile.Model) {
	if src.Symtab != nil {
		dst.Symtab.Merge(src.Symtab)
	}
	for _, rec := range src.Records {
		rec = cloneRecord(rec)
		idx := findRecord(dst, rec)
		if idx < 0 {
			dst.AddRecord(rec)
			continue
		}
		existing := dst.RecordByIndex(idx)
		profile.MergeInto(existing, rec)
	}
}

// findRecord locates rec's counterpart in dst. A profile doesn't record
// which byte order its name hashes were computed under, so when rec's own
// NameHash doesn't resolve and rec carries its original Name, both
// endiannesses are tried before falling back to a FuncHash-only match
// (spec §9 design notes: "must try both before declaring a record new").
func findRecord(dst *profile.Model, rec profile.ProfileRecord) int {
	if rec.HasNameHash {
		if idx := dst.FindByKey(rec.NameHash, rec.FuncHash, true); idx >= 0 && dst.Records[idx].NameHash == rec.NameHash {
			return idx
		}
	}
	if rec.HasName {
		for _, order := range [...]binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			h := symtab.Hash(rec.Name, order)
			if rec.HasNameHash && h == rec.NameHash {
				continue
			}
			if idx := dst.FindByKey(h, rec.FuncHash, true); idx >= 0 && dst.Records[idx].NameHash == h {
				return idx
			}
		}
	}
	return dst.FindByKey(0, rec.FuncHash, false)
}

// cloneRecord returns a copy of r that shares no slices with it, so that
// merging into the copy leaves the input model untouched.
func cloneRecord(r profile.ProfileRecord) profile.ProfileRecord {
	r.Counts = append([]uint64(nil), r.Counts...)
	if r.ValueProfile != nil {
		vp := profile.ValueProfileData{}
		for _, s := range r.ValueProfile.IndirectCallSites {
			vp.IndirectCallSites = append(vp.IndirectCallSites, append(profile.ValueSite(nil), s...))
		}
		for _, s := range r.ValueProfile.MemOpSizes {
			vp.MemOpSizes = append(vp.MemOpSizes, append(profile.ValueSite(nil), s...))
		}
		r.ValueProfile = &vp
	}
	return r
}
