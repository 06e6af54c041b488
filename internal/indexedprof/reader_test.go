package indexedprof

import (
	"encoding/binary"
	"testing"
)

func put64(buf *[]byte, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	*buf = append(*buf, b[:]...)
}

// buildIndexedProfile assembles a minimal version-3 (pre-summary) indexed
// profile with a single hash-table entry naming "foo" and one value record.
func buildIndexedProfile() []byte {
	var buf []byte
	put64(&buf, Magic)
	put64(&buf, 3) // version
	put64(&buf, 0) // reserved
	put64(&buf, hashMD5)
	// hashOffset filled in below once we know the header length
	hashOffsetPos := len(buf)
	put64(&buf, 0)

	hashOffset := uint64(len(buf))
	binary.LittleEndian.PutUint64(buf[hashOffsetPos:], hashOffset)

	put64(&buf, 1) // num_buckets
	put64(&buf, 1) // num_entries

	put64(&buf, 0xABCD) // hash
	put64(&buf, 3)      // key_len
	put64(&buf, 40)     // data_len
	buf = append(buf, []byte("foo")...)

	put64(&buf, 0x11) // fn_hash
	put64(&buf, 2)    // counts_len
	put64(&buf, 5)
	put64(&buf, 7)
	put64(&buf, 0) // value prof header (8 bytes)

	return buf
}

func TestHasFormat(t *testing.T) {
	if !HasFormat(buildIndexedProfile()) {
		t.Fatal("HasFormat() = false for valid indexed profile")
	}
	if HasFormat([]byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Error("HasFormat() = true for garbage input")
	}
}

func TestParseRoundTrip(t *testing.T) {
	m, err := Parse(buildIndexedProfile())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Version != 3 {
		t.Errorf("Version = %d, want 3", m.Version)
	}
	if len(m.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(m.Records))
	}
	rec := m.Records[0]
	if rec.Name != "foo" {
		t.Errorf("Name = %q, want foo", rec.Name)
	}
	if rec.NameHash != 0xABCD {
		t.Errorf("NameHash = %x, want 0xABCD", rec.NameHash)
	}
	if rec.FuncHash != 0x11 {
		t.Errorf("FuncHash = %x, want 0x11", rec.FuncHash)
	}
	if len(rec.Counts) != 2 || rec.Counts[0] != 5 || rec.Counts[1] != 7 {
		t.Errorf("Counts = %v, want [5 7]", rec.Counts)
	}
	if name, ok := m.Symtab.Lookup(0xABCD); !ok || name != "foo" {
		t.Errorf("Symtab lookup by hash-table hash = (%q,%v), want (foo,true)", name, ok)
	}
}

func TestParseBadMagic(t *testing.T) {
	if _, err := Parse([]byte{0, 1, 2, 3, 4, 5, 6, 7}); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseUnsupportedHashType(t *testing.T) {
	data := buildIndexedProfile()
	// hashType occupies the third u64 after the magic.
	binary.LittleEndian.PutUint64(data[8+8+8:], 1)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for non-MD5 hash type")
	}
}

func TestParseDataLenNotMultipleOf8(t *testing.T) {
	data := buildIndexedProfile()
	// data_len sits right after hash and key_len in the single hash entry;
	// header is 40 bytes, then numBuckets/numEntries (16), hash (8), key_len (8).
	dataLenPos := 40 + 16 + 8 + 8
	binary.LittleEndian.PutUint64(data[dataLenPos:], 41)
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for data_len not a multiple of 8")
	}
}
