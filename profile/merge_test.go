package profile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeIntoSaturates(t *testing.T) {
	dst := &ProfileRecord{Counts: []uint64{1, 2, 3}}
	src := ProfileRecord{Counts: []uint64{10, 20, 30}}
	ok := MergeInto(dst, src)
	if !ok {
		t.Fatal("MergeInto() = false, want true")
	}
	want := []uint64{11, 22, 33}
	if diff := cmp.Diff(want, dst.Counts); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIntoLengthMismatchSkipped(t *testing.T) {
	dst := &ProfileRecord{Counts: []uint64{1, 2}}
	original := append([]uint64(nil), dst.Counts...)
	src := ProfileRecord{Counts: []uint64{1, 2, 3}}
	ok := MergeInto(dst, src)
	if ok {
		t.Fatal("MergeInto() = true, want false on length mismatch")
	}
	if diff := cmp.Diff(original, dst.Counts); diff != "" {
		t.Errorf("dst.Counts mutated on skipped merge (-want +got):\n%s", diff)
	}
}

func TestMergeIntoValueSites(t *testing.T) {
	dst := &ProfileRecord{
		Counts: []uint64{1},
		ValueProfile: &ValueProfileData{
			IndirectCallSites: []ValueSite{
				{{Value: 1, Count: 5}, {Value: 2, Count: 1}},
			},
		},
	}
	src := ProfileRecord{
		Counts: []uint64{1},
		ValueProfile: &ValueProfileData{
			IndirectCallSites: []ValueSite{
				{{Value: 2, Count: 4}, {Value: 3, Count: 9}},
			},
		},
	}
	MergeInto(dst, src)
	got := dst.ValueProfile.IndirectCallSites[0]
	want := ValueSite{{Value: 1, Count: 5}, {Value: 2, Count: 5}, {Value: 3, Count: 9}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged value site mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIntoValueSitesCountMismatchSkipped(t *testing.T) {
	dst := &ProfileRecord{
		Counts: []uint64{1},
		ValueProfile: &ValueProfileData{
			IndirectCallSites: []ValueSite{{{Value: 1, Count: 1}}},
		},
	}
	src := ProfileRecord{
		Counts: []uint64{1},
		ValueProfile: &ValueProfileData{
			IndirectCallSites: []ValueSite{{{Value: 1, Count: 1}}, {{Value: 2, Count: 1}}},
		},
	}
	MergeInto(dst, src)
	if len(dst.ValueProfile.IndirectCallSites) != 1 {
		t.Errorf("site count mismatch should leave dst untouched, got %d sites", len(dst.ValueProfile.IndirectCallSites))
	}
}

func TestSaturatingAddOverflow(t *testing.T) {
	max := ^uint64(0)
	if got := saturatingAdd(max, 1); got != max {
		t.Errorf("saturatingAdd(max,1) = %d, want max", got)
	}
	if got := saturatingAdd(1, 2); got != 3 {
		t.Errorf("saturatingAdd(1,2) = %d, want 3", got)
	}
}
