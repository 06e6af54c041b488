package profile

import "sort"

// MergeInto merges src into dst following spec §4.C:
//  1. a count-vector length mismatch is non-fatal and leaves dst unchanged;
//  2. otherwise counts merge by saturating addition;
//  3. value-profile sites merge only when per-kind site counts match, and
//     within a site, values are aligned by sort order with saturating
//     count addition; new values are inserted in place.
//
// Returns false (with dst left untouched) when the merge was skipped due
// to a length mismatch, so callers can report a HashMismatch-style
// recoverable condition without aborting the overall operation.
func MergeInto(dst *ProfileRecord, src ProfileRecord) bool {
	if len(dst.Counts) != len(src.Counts) {
		return false
	}
	for i := range dst.Counts {
		dst.Counts[i] = saturatingAdd(dst.Counts[i], src.Counts[i])
	}
	if src.ValueProfile == nil {
		return true
	}
	if dst.ValueProfile == nil {
		dst.ValueProfile = &ValueProfileData{}
	}
	mergeValueSites(&dst.ValueProfile.IndirectCallSites, src.ValueProfile.IndirectCallSites)
	mergeValueSites(&dst.ValueProfile.MemOpSizes, src.ValueProfile.MemOpSizes)
	return true
}

// mergeValueSites merges two value-site slices when their lengths agree;
// a mismatch leaves dst's sites untouched (spec §4.C.3).
func mergeValueSites(dst *[]ValueSite, src []ValueSite) {
	if len(*dst) != len(src) {
		return
	}
	for i := range *dst {
		(*dst)[i] = mergeOneSite((*dst)[i], src[i])
	}
}

// mergeOneSite aligns two per-site value lists by sorted value order,
// saturating-adding counts for shared values and inserting new ones in
// place.
func mergeOneSite(dst, src ValueSite) ValueSite {
	sortSite(dst)
	sortSite(src)
	merged := make(ValueSite, 0, len(dst)+len(src))
	i, j := 0, 0
	for i < len(dst) && j < len(src) {
		switch {
		case dst[i].Value == src[j].Value:
			merged = append(merged, ValueData{Value: dst[i].Value, Count: saturatingAdd(dst[i].Count, src[j].Count)})
			i++
			j++
		case dst[i].Value < src[j].Value:
			merged = append(merged, dst[i])
			i++
		default:
			merged = append(merged, src[j])
			j++
		}
	}
	merged = append(merged, dst[i:]...)
	merged = append(merged, src[j:]...)
	return merged
}

func sortSite(s ValueSite) {
	sort.Slice(s, func(i, j int) bool { return s[i].Value < s[j].Value })
}
