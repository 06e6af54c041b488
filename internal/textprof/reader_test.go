package textprof

import (
	"strings"
	"testing"

	"github.com/tmc/llvmprofparser/profile"
)

func TestHasFormat(t *testing.T) {
	if !HasFormat([]byte(":ir\nfoo\n0x1\n1\n1\n")) {
		t.Error("HasFormat() = false for ASCII input, want true")
	}
	if HasFormat([]byte{0x81, 0x69}) {
		t.Error("HasFormat() = true for binary input, want false")
	}
}

func TestParseTrivialRecord(t *testing.T) {
	data := []byte(":ir\nfoo\n0x1234\n2\n10\n5\n")
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !m.IsIR {
		t.Error("IsIR = false, want true")
	}
	if len(m.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(m.Records))
	}
	rec := m.Records[0]
	if rec.Name != "foo" {
		t.Errorf("Name = %q, want foo", rec.Name)
	}
	if rec.FuncHash != 0x1234 {
		t.Errorf("FuncHash = %x, want 0x1234", rec.FuncHash)
	}
	if len(rec.Counts) != 2 || rec.Counts[0] != 10 || rec.Counts[1] != 5 {
		t.Errorf("Counts = %v, want [10 5]", rec.Counts)
	}
}

func TestParseMultipleRecordsAndComments(t *testing.T) {
	data := []byte(`:ir
# a leading comment
foo
100
1
5

bar
200
2
1
2
`)
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(m.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(m.Records))
	}
	if m.Records[0].Name != "foo" || m.Records[1].Name != "bar" {
		t.Errorf("record names = %q, %q", m.Records[0].Name, m.Records[1].Name)
	}
}

func TestParseHeaderTagCombinations(t *testing.T) {
	cases := []struct {
		header       string
		wantIR       bool
		wantCSIR     bool
		wantEntryFst bool
	}{
		{":ir\n", true, false, false},
		{":not_entry_first\n", true, false, false},
		{":csir\n", true, true, false},
		{":entry_first\n", false, false, true},
		{":fe\n", false, false, false},
	}
	for _, c := range cases {
		data := []byte(c.header + "foo\n1\n1\n1\n")
		m, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", c.header, err)
		}
		if m.IsIR != c.wantIR || m.IsCSIR != c.wantCSIR || m.IsEntryFirst != c.wantEntryFst {
			t.Errorf("Parse(%q) flags = (%v,%v,%v), want (%v,%v,%v)",
				c.header, m.IsIR, m.IsCSIR, m.IsEntryFirst, c.wantIR, c.wantCSIR, c.wantEntryFst)
		}
	}
}

func TestParseUnknownHeaderTag(t *testing.T) {
	_, err := Parse([]byte(":bogus\nfoo\n1\n1\n1\n"))
	if err == nil {
		t.Fatal("expected error for unrecognized header tag")
	}
}

func TestParseValueProfileIndirectCall(t *testing.T) {
	data := []byte(`foo
1
1
7
1
0 1
1
somefunc:3
`)
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	rec := m.Records[0]
	if rec.ValueProfile == nil {
		t.Fatal("expected value profile data")
	}
	if len(rec.ValueProfile.IndirectCallSites) != 1 {
		t.Fatalf("len(IndirectCallSites) = %d, want 1", len(rec.ValueProfile.IndirectCallSites))
	}
	site := rec.ValueProfile.IndirectCallSites[0]
	if len(site) != 1 || site[0].Count != 3 {
		t.Errorf("site = %+v, want one entry with count 3", site)
	}
}

func TestParseValueProfileExternalSymbol(t *testing.T) {
	data := []byte(`foo
1
1
7
1
0 1
1
** External Symbol **:9
`)
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	site := m.Records[0].ValueProfile.IndirectCallSites[0]
	if site[0].Value != 0 || site[0].Count != 9 {
		t.Errorf("external symbol entry = %+v, want {Value:0 Count:9}", site[0])
	}
}

func TestParseValueProfileMemOpSize(t *testing.T) {
	data := []byte(`foo
1
1
7
1
1 1
1
16:42
`)
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	site := m.Records[0].ValueProfile.MemOpSizes[0]
	if site[0].Value != 16 || site[0].Count != 42 {
		t.Errorf("mem-op entry = %+v, want {Value:16 Count:42}", site[0])
	}
}

func TestParseNoValueProfileBlockWithNumericFollowingName(t *testing.T) {
	// "123" immediately after foo's counts is not 0/1/2 (a valid kind
	// count), so it correctly resolves as the start of a new record whose
	// name happens to be numeric.
	data := []byte(`foo
1
1
7
123
55
1
9
`)
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(m.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(m.Records))
	}
	if m.Records[1].Name != "123" {
		t.Errorf("second record name = %q, want 123", m.Records[1].Name)
	}
}

func TestParseHashLiteralDecimalAndHex(t *testing.T) {
	v, err := parseHashLiteral("0xFF")
	if err != nil || v != 255 {
		t.Errorf("parseHashLiteral(0xFF) = (%d,%v), want (255,nil)", v, err)
	}
	v, err = parseHashLiteral("42")
	if err != nil || v != 42 {
		t.Errorf("parseHashLiteral(42) = (%d,%v), want (42,nil)", v, err)
	}
}

func TestParseMultiPartNameRegistersEachSymbol(t *testing.T) {
	name := "pkg.Func" + string(rune(nameSep)) + "pkg.Func.alias"
	data := []byte(name + "\n1\n1\n1\n")
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Symtab.Len() != 2 {
		t.Errorf("Symtab.Len() = %d, want 2", m.Symtab.Len())
	}
	if !strings.Contains(m.Records[0].Name, "alias") {
		t.Errorf("record name = %q, expected to retain full joined name", m.Records[0].Name)
	}
}

func TestParseTruncatedCounts(t *testing.T) {
	data := []byte("foo\n1\n2\n5\n")
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for truncated counts")
	}
}

var _ = profile.Zero
