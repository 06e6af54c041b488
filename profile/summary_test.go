package profile

import "testing"

func TestSummarizeBasic(t *testing.T) {
	m := NewModel()
	m.AddRecord(ProfileRecord{Counts: []uint64{100, 50, 0}})
	m.AddRecord(ProfileRecord{Counts: []uint64{10}})

	s := Summarize(m)
	if s.NumFunctions != 2 {
		t.Errorf("NumFunctions = %d, want 2", s.NumFunctions)
	}
	if s.TotalCount != 160 {
		t.Errorf("TotalCount = %d, want 160", s.TotalCount)
	}
	if s.MaxCount != 100 {
		t.Errorf("MaxCount = %d, want 100", s.MaxCount)
	}
	if s.MaxFunctionCount != 100 {
		t.Errorf("MaxFunctionCount = %d, want 100", s.MaxFunctionCount)
	}
	if s.MaxInternalBlockCount != 50 {
		t.Errorf("MaxInternalBlockCount = %d, want 50", s.MaxInternalBlockCount)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	m := NewModel()
	s := Summarize(m)
	if s.NumFunctions != 0 || s.TotalCount != 0 {
		t.Errorf("expected zero summary for empty model, got %+v", s)
	}
	if s.DetailedSummary != nil {
		t.Errorf("expected nil detailed summary for empty model, got %v", s.DetailedSummary)
	}
}

func TestValueSiteStatsTraverse(t *testing.T) {
	rec := &ProfileRecord{
		ValueProfile: &ValueProfileData{
			IndirectCallSites: []ValueSite{
				{{Value: 1, Count: 3}},
				{}, // site with no observed values
			},
		},
	}
	var stats ValueSiteStats
	stats.TraverseSites(rec, ValueIndirectCallTarget)
	if stats.TotalNumValueSites != 2 {
		t.Errorf("TotalNumValueSites = %d, want 2", stats.TotalNumValueSites)
	}
	if stats.TotalValueSitesWithValueProfile != 1 {
		t.Errorf("TotalValueSitesWithValueProfile = %d, want 1", stats.TotalValueSitesWithValueProfile)
	}
	if stats.TotalNumValues != 1 {
		t.Errorf("TotalNumValues = %d, want 1", stats.TotalNumValues)
	}
}

func TestValueSiteStatsNilProfile(t *testing.T) {
	rec := &ProfileRecord{}
	var stats ValueSiteStats
	stats.TraverseSites(rec, ValueMemOpSize)
	if stats.TotalNumValueSites != 0 {
		t.Errorf("expected zero stats for nil value profile, got %+v", stats)
	}
}
