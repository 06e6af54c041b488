package bytesutil

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// ErrDecompress is returned when a compressed string or path-list blob
// fails to inflate.
var ErrDecompress = errors.New("bytesutil: decompress failed")

// inflate decompresses a zlib stream (LLVM wraps its deflate payloads in a
// zlib envelope via llvm::compression::zlib) into exactly uncompressedLen
// bytes.
func inflate(compressed []byte, uncompressedLen int) ([]byte, error) {
	zr, err := zlib.NewReader(byteReaderOf(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer zr.Close()
	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	return out, nil
}

// sliceReader is a tiny io.Reader adapter, built by byteReaderOf; kept
// local so this package doesn't need to import bytes for inflate's one use.
type sliceReader struct {
	b []byte
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}

func byteReaderOf(b []byte) io.Reader { return &sliceReader{b: b} }

// StringRef decodes a length-prefixed, optionally deflate-compressed
// string: two LEB128 lengths (uncompressed, compressed) followed by either
// compressedLen bytes of zlib-wrapped deflate data, or, when
// compressedLen is zero, uncompressedLen raw bytes.
//
// Invalid UTF-8 is recovered as lossy, matching LLVM's tolerant string
// handling; the caller decides whether lossy recovery is acceptable for
// its context (it is not for hash-table keys, see indexedprof).
func (r *Reader) StringRef() (string, error) {
	uncompressedLen, err := r.ULEB128()
	if err != nil {
		return "", fmt.Errorf("string ref uncompressed len: %w", err)
	}
	compressedLen, err := r.ULEB128()
	if err != nil {
		return "", fmt.Errorf("string ref compressed len: %w", err)
	}
	if compressedLen == 0 {
		raw, err := r.Take(int(uncompressedLen))
		if err != nil {
			return "", fmt.Errorf("string ref raw bytes: %w", err)
		}
		return lossyUTF8(raw), nil
	}
	compressed, err := r.Take(int(compressedLen))
	if err != nil {
		return "", fmt.Errorf("string ref compressed bytes: %w", err)
	}
	raw, err := inflate(compressed, int(uncompressedLen))
	if err != nil {
		return "", err
	}
	return lossyUTF8(raw), nil
}

func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// rawString reads a LEB128-length-prefixed string with no compression
// envelope, used within an already-decompressed path-list blob.
func (r *Reader) rawString() (string, error) {
	n, err := r.ULEB128()
	if err != nil {
		return "", err
	}
	raw, err := r.Take(int(n))
	if err != nil {
		return "", err
	}
	return lossyUTF8(raw), nil
}

// PathList decodes the version-dependent file-name list embedded in a
// covmap header: a LEB128 count, then either a plain sequence of
// length-prefixed strings (version < 3), the same sequence wrapped in a
// compression envelope (version >= 3), joined onto a leading working
// directory for relative entries (version >= 5).
func (r *Reader) PathList(version uint64) ([]string, error) {
	count, err := r.ULEB128()
	if err != nil {
		return nil, fmt.Errorf("path list count: %w", err)
	}
	if version < 3 {
		return r.rawPathSequence(int(count), version)
	}
	uncompressedLen, err := r.ULEB128()
	if err != nil {
		return nil, fmt.Errorf("path list uncompressed len: %w", err)
	}
	compressedLen, err := r.ULEB128()
	if err != nil {
		return nil, fmt.Errorf("path list compressed len: %w", err)
	}
	if compressedLen == 0 {
		return r.rawPathSequence(int(count), version)
	}
	compressed, err := r.Take(int(compressedLen))
	if err != nil {
		return nil, fmt.Errorf("path list compressed bytes: %w", err)
	}
	raw, err := inflate(compressed, int(uncompressedLen))
	if err != nil {
		return nil, err
	}
	inner := NewReader(raw)
	return joinPathSequence(inner, int(count), version)
}

// rawPathSequence reads count length-prefixed strings directly from r and
// applies the cwd-joining rule.
func (r *Reader) rawPathSequence(count int, version uint64) ([]string, error) {
	return joinPathSequence(r, count, version)
}

func joinPathSequence(r *Reader, count int, version uint64) ([]string, error) {
	out := make([]string, 0, count)
	if version < 5 {
		for i := 0; i < count; i++ {
			s, err := r.rawString()
			if err != nil {
				return nil, fmt.Errorf("path list entry %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	}
	if count == 0 {
		return out, nil
	}
	cwd, err := r.rawString()
	if err != nil {
		return nil, fmt.Errorf("path list cwd: %w", err)
	}
	out = append(out, cwd)
	for i := 1; i < count; i++ {
		s, err := r.rawString()
		if err != nil {
			return nil, fmt.Errorf("path list entry %d: %w", i, err)
		}
		if path.IsAbs(s) {
			out = append(out, s)
		} else {
			out = append(out, path.Join(cwd, s))
		}
	}
	return out, nil
}
