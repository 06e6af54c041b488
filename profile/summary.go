package profile

import "sort"

// CutoffScale is the amount LLVM scales summary cutoffs by to express them
// as percentiles of total counts (ported from original_source's
// CUTOFF_SCALE).
const CutoffScale = 10_000_000

// DefaultCutoffs are llvm-profdata's default summary percentile cutoffs,
// scaled by CutoffScale (ported from original_source's DEFAULT_CUTOFFS).
var DefaultCutoffs = [...]uint64{
	10000, 100000, 200000, 300000, 400000, 500000, 600000, 700000, 800000,
	900000, 950000, 990000, 999000, 999900, 999990, 999999,
}

// SummaryEntry is one percentile cutoff row: at least MinCount is reached
// by NumCounts values once the profile's counts are summed in descending
// order until Cutoff fraction of TotalCount has been covered.
type SummaryEntry struct {
	Cutoff    uint64
	MinCount  uint64
	NumCounts uint64
}

// Summary is a percentile histogram over every count in a Model,
// supplementing spec §4.F's on-disk indexed-profile summary with the
// ability to compute the same shape from any parsed Model (ported from
// original_source's ProfileSummary, src/summary.rs and
// instrumentation_profile/stats.rs).
type Summary struct {
	NumFunctions          uint64
	TotalCount            uint64
	MaxCount              uint64
	MaxFunctionCount      uint64
	MaxInternalBlockCount uint64
	DetailedSummary       []SummaryEntry
}

// Summarize computes a Summary over every ProfileRecord in m.
func Summarize(m *Model) Summary {
	var s Summary
	var allCounts []uint64
	for _, r := range m.Records {
		if len(r.Counts) == 0 {
			continue
		}
		s.NumFunctions++
		entry := r.Counts[0]
		s.addCount(&allCounts, entry)
		if entry > s.MaxFunctionCount {
			s.MaxFunctionCount = entry
		}
		for _, c := range r.Counts[1:] {
			s.addCount(&allCounts, c)
			if c > s.MaxInternalBlockCount {
				s.MaxInternalBlockCount = c
			}
		}
	}
	s.DetailedSummary = computeCutoffs(allCounts, s.TotalCount)
	return s
}

func (s *Summary) addCount(all *[]uint64, c uint64) {
	s.TotalCount = saturatingAdd(s.TotalCount, c)
	if c > s.MaxCount {
		s.MaxCount = c
	}
	*all = append(*all, c)
}

// computeCutoffs sorts counts descending and, for each DefaultCutoffs
// entry, records the minimum count and running tally of counts needed to
// reach that fraction of total.
func computeCutoffs(counts []uint64, total uint64) []SummaryEntry {
	if total == 0 || len(counts) == 0 {
		return nil
	}
	sorted := append([]uint64(nil), counts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	entries := make([]SummaryEntry, 0, len(DefaultCutoffs))
	var running uint64
	ci := 0
	for i, c := range sorted {
		running = saturatingAdd(running, c)
		for ci < len(DefaultCutoffs) && running*CutoffScale >= DefaultCutoffs[ci]*total {
			entries = append(entries, SummaryEntry{
				Cutoff:    DefaultCutoffs[ci],
				MinCount:  c,
				NumCounts: uint64(i + 1),
			})
			ci++
		}
		if ci >= len(DefaultCutoffs) {
			break
		}
	}
	return entries
}

// ValueSiteStats aggregates how many value-profile sites a record carries
// and how many of those sites actually captured a value, ported from
// original_source's ValueSiteStats.
type ValueSiteStats struct {
	TotalNumValueSites              int
	TotalValueSitesWithValueProfile int
	TotalNumValues                  int
}

// TraverseSites folds one record's sites of the given kind into s.
func (s *ValueSiteStats) TraverseSites(r *ProfileRecord, kind ValueKind) {
	if r.ValueProfile == nil {
		return
	}
	var sites []ValueSite
	switch kind {
	case ValueIndirectCallTarget:
		sites = r.ValueProfile.IndirectCallSites
	default:
		sites = r.ValueProfile.MemOpSizes
	}
	for _, site := range sites {
		s.TotalNumValueSites++
		if len(site) > 0 {
			s.TotalValueSitesWithValueProfile++
		}
		s.TotalNumValues += len(site)
	}
}
