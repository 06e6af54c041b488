package bytesutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestULEB128(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"zero", []byte{0x00}, 0},
		{"one byte", []byte{0x7f}, 127},
		{"two bytes", []byte{0xe5, 0x8e, 0x26}, 624485},
		{"max shift", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, 1 << 63},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewReader(c.in)
			got, err := r.ULEB128()
			if err != nil {
				t.Fatalf("ULEB128() error = %v", err)
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("ULEB128() mismatch (-want +got):\n%s", diff)
			}
			if r.Len() != 0 {
				t.Errorf("expected all bytes consumed, %d remain", r.Len())
			}
		})
	}
}

func TestULEB128Truncated(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80})
	if _, err := r.ULEB128(); err == nil {
		t.Fatal("expected error on truncated varint")
	}
}

func TestULEB128Overflow(t *testing.T) {
	in := make([]byte, 11)
	for i := range in {
		in[i] = 0x80
	}
	in[len(in)-1] = 0x01
	r := NewReader(in)
	if _, err := r.ULEB128(); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestReaderTakeAndSeek(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})
	b, err := r.Take(2)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2}, b); diff != "" {
		t.Errorf("Take() mismatch (-want +got):\n%s", diff)
	}
	if err := r.SeekTo(0); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos() = %d, want 0", r.Pos())
	}
	if err := r.SeekTo(100); err == nil {
		t.Fatal("expected out-of-range seek to fail")
	}
}

func TestGetNumPaddingBytes(t *testing.T) {
	cases := []struct {
		length uint64
		want   int
	}{
		{0, 0},
		{1, 7},
		{7, 1},
		{8, 0},
		{9, 7},
		{16, 0},
	}
	for _, c := range cases {
		if got := GetNumPaddingBytes(c.length); got != c.want {
			t.Errorf("GetNumPaddingBytes(%d) = %d, want %d", c.length, got, c.want)
		}
	}
}
