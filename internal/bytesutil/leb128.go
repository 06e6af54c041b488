// Package bytesutil implements the low-level byte-oriented decoding
// primitives shared by every profile and coverage-section reader: LEB128
// varints, length-prefixed (optionally deflate-compressed) strings, and
// the version-dependent path-list encoding used by object-file coverage
// sections.
package bytesutil

import (
	"errors"
	"fmt"
)

// ErrOverflow is returned when a LEB128 varint decodes to more than 64
// effective bits.
var ErrOverflow = errors.New("bytesutil: leb128 overflow")

// ErrTruncated is returned when a decode runs past the end of the buffer.
var ErrTruncated = errors.New("bytesutil: truncated input")

// Reader wraps a byte slice with a cursor and the primitive reads every
// on-disk format in this module is built from. It never panics: every
// method that can run off the end of buf returns ErrTruncated.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// SeekTo repositions the cursor to an absolute offset. It is used by the
// indexed-profile reader, whose hash table lives at an offset recorded in
// the header rather than immediately following the previous section.
func (r *Reader) SeekTo(off int) error {
	if off < 0 || off > len(r.buf) {
		return fmt.Errorf("bytesutil: seek to %d out of range [0,%d]: %w", off, len(r.buf), ErrTruncated)
	}
	r.pos = off
	return nil
}

// Bytes returns the full underlying buffer, independent of cursor position.
func (r *Reader) Bytes() []byte { return r.buf }

// Take consumes and returns the next n bytes.
func (r *Reader) Take(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, fmt.Errorf("bytesutil: take %d bytes at pos %d: %w", n, r.pos, ErrTruncated)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Byte consumes and returns the next single byte.
func (r *Reader) Byte() (byte, error) {
	if r.Len() < 1 {
		return 0, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ULEB128 decodes an unsigned LEB128 varint: a minimal run of bytes whose
// top bit signals continuation and whose low seven bits carry payload,
// least-significant group first.
func (r *Reader) ULEB128() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if shift >= 64 {
			return 0, fmt.Errorf("bytesutil: leb128 at pos %d: %w", r.pos, ErrOverflow)
		}
		b, err := r.Byte()
		if err != nil {
			return 0, fmt.Errorf("bytesutil: leb128 at pos %d: %w", r.pos, ErrTruncated)
		}
		if shift == 63 && b&0x7f > 1 {
			return 0, fmt.Errorf("bytesutil: leb128 at pos %d: %w", r.pos, ErrOverflow)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// GetNumPaddingBytes returns the number of zero bytes needed to bring len
// up to the next 8-byte boundary, matching LLVM's alignment of covfun/
// covmap records and the raw-profile names blob.
func GetNumPaddingBytes(length uint64) int {
	return int(7 & (8 - (length % 8)))
}
