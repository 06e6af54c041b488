// Package rawprof decodes LLVM's raw binary instrumentation profile
// format (profraw), spec §4.E, in both the 32-bit and 64-bit pointer-width
// variants and both byte orders.
package rawprof

import (
	"encoding/binary"
	"fmt"

	"github.com/tmc/llvmprofparser/internal/bytesutil"
	"github.com/tmc/llvmprofparser/profile"
)

const nameSep = '\x01'

// magic64LE is the little-endian magic for the 64-bit-pointer variant:
// the 7-byte ASCII "lprof" + width letter 'r', preceded by sentinel byte
// 129 and a top 0xFF byte, read as a little-endian uint64.
var (
	magic64LE = buildMagic('r')
	magic32LE = buildMagic('R')
)

func buildMagic(widthLetter byte) uint64 {
	b := [8]byte{129, 'f', 'o', 'r', 'p', 'l', widthLetter, 0xFF}
	return binary.LittleEndian.Uint64(b[:])
}

// width identifies the pointer width a raw profile was written with.
type width int

const (
	width32 width = 4
	width64 width = 8
)

// detect inspects the first 8 bytes of data and returns the pointer width
// and byte order to use, or ok=false if data isn't a raw profile at all.
func detect(data []byte) (w width, order binary.ByteOrder, ok bool) {
	if len(data) < 8 {
		return 0, nil, false
	}
	raw := binary.LittleEndian.Uint64(data[:8])
	switch raw {
	case magic64LE:
		return width64, binary.LittleEndian, true
	case swap64(magic64LE):
		return width64, binary.BigEndian, true
	case magic32LE:
		return width32, binary.LittleEndian, true
	case swap64(magic32LE):
		return width32, binary.BigEndian, true
	default:
		return 0, nil, false
	}
}

func swap64(v uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return binary.BigEndian.Uint64(b[:])
}

// HasFormat reports whether data's magic identifies a raw profile of
// either pointer width, in either byte order.
func HasFormat(data []byte) bool {
	_, _, ok := detect(data)
	return ok
}

// header is the fixed portion of a raw profile's on-disk header, spec
// §4.E. binaryIDsLen is only present for version >= 7.
type header struct {
	version                     uint64
	binaryIDsLen                uint64
	haveBinaryIDsLen            bool
	dataLen                     uint64
	paddingBytesBeforeCounters  uint64
	countersLen                 uint64
	paddingBytesAfterCounters   uint64
	namesLen                    uint64
	countersDelta               uint64
	namesDelta                  uint64
	valueKindLast               uint64
}

// maxCountersLen mirrors the original's Header::max_counters_len: the
// total byte extent of the counters region including its trailing
// padding, expressed as a signed value since offsets are compared against
// it signed.
func (h *header) maxCountersLen() int64 {
	return int64(8*h.countersLen) + int64(h.paddingBytesAfterCounters)
}

// profileDataEntry is one on-disk ProfileData record (spec §4.E),
// pointer-width dependent only in counterPtr/functionAddr/valuesPtr.
type profileDataEntry struct {
	nameRef       uint64
	fnHash        uint64
	counterPtr    uint64
	functionAddr  uint64
	valuesPtr     uint64
	numCounters   uint32
	numValueSites [2]uint16
}

func readWidth(r *bytesutil.Reader, order binary.ByteOrder, w width) (uint64, error) {
	if w == width64 {
		b, err := r.Take(8)
		if err != nil {
			return 0, err
		}
		return order.Uint64(b), nil
	}
	b, err := r.Take(4)
	if err != nil {
		return 0, err
	}
	return uint64(order.Uint32(b)), nil
}

func readU64(r *bytesutil.Reader, order binary.ByteOrder) (uint64, error) {
	b, err := r.Take(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

func readU32(r *bytesutil.Reader, order binary.ByteOrder) (uint32, error) {
	b, err := r.Take(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

func readU16(r *bytesutil.Reader, order binary.ByteOrder) (uint16, error) {
	b, err := r.Take(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

// Parse decodes a raw profile from data.
func Parse(data []byte) (*profile.Model, error) {
	w, order, ok := detect(data)
	if !ok {
		return nil, fmt.Errorf("rawprof: bad magic")
	}
	r := bytesutil.NewReader(data)
	if _, err := r.Take(8); err != nil { // consume magic
		return nil, fmt.Errorf("rawprof: %w", err)
	}

	m := profile.NewModel()
	m.LittleEndian = order == binary.LittleEndian

	h, err := parseHeader(r, order)
	if err != nil {
		return nil, fmt.Errorf("rawprof: header: %w", err)
	}
	m.SetVersionField(h.version)

	if h.haveBinaryIDsLen {
		if _, err := r.Take(int(h.binaryIDsLen)); err != nil {
			return nil, fmt.Errorf("rawprof: skipping binary ids: %w", err)
		}
	}

	entries := make([]profileDataEntry, 0, h.dataLen)
	for i := uint64(0); i < h.dataLen; i++ {
		e, err := parseProfileDataEntry(r, order, w)
		if err != nil {
			return nil, fmt.Errorf("rawprof: data entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}

	if _, err := r.Take(int(h.paddingBytesBeforeCounters)); err != nil {
		return nil, fmt.Errorf("rawprof: pre-counter padding: %w", err)
	}

	countsPerEntry, err := readAllCounters(r, order, &h, entries, m.IsByteCoverage, w)
	if err != nil {
		return nil, fmt.Errorf("rawprof: counters: %w", err)
	}

	if _, err := r.Take(int(h.paddingBytesAfterCounters)); err != nil {
		return nil, fmt.Errorf("rawprof: post-counter padding: %w", err)
	}

	namesEnd := r.Pos() + int(h.namesLen)
	if namesEnd > len(data) {
		return nil, fmt.Errorf("rawprof: names blob past end of buffer")
	}
	for r.Pos() < namesEnd {
		names, err := r.StringRef()
		if err != nil {
			return nil, fmt.Errorf("rawprof: names blob: %w", err)
		}
		splitAndAddNames(m, names)
	}
	pad := bytesutil.GetNumPaddingBytes(h.namesLen)
	if _, err := r.Take(pad); err != nil {
		return nil, fmt.Errorf("rawprof: names padding: %w", err)
	}

	for i, e := range entries {
		if err := skipValueProfileData(r, order, e); err != nil {
			return nil, fmt.Errorf("rawprof: value profile data for entry %d: %w", i, err)
		}
		name, hasName := m.Symtab.Lookup(e.nameRef)
		rec := profile.ProfileRecord{
			Counts:      countsPerEntry[i],
			NameHash:    e.nameRef,
			HasNameHash: true,
			FuncHash:    e.fnHash,
			HasFuncHash: true,
		}
		if hasName {
			rec.Name = name
			rec.HasName = true
		}
		m.AddRecord(rec)
	}

	return m, nil
}

func parseHeader(r *bytesutil.Reader, order binary.ByteOrder) (header, error) {
	var h header
	var err error
	if h.version, err = readU64(r, order); err != nil {
		return h, err
	}
	masked := h.version &^ 0xFF00_0000_0000_0000
	if masked >= 7 {
		h.haveBinaryIDsLen = true
		if h.binaryIDsLen, err = readU64(r, order); err != nil {
			return h, err
		}
	}
	if h.dataLen, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.paddingBytesBeforeCounters, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.countersLen, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.paddingBytesAfterCounters, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.namesLen, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.countersDelta, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.namesDelta, err = readU64(r, order); err != nil {
		return h, err
	}
	if h.valueKindLast, err = readU64(r, order); err != nil {
		return h, err
	}
	return h, nil
}

func parseProfileDataEntry(r *bytesutil.Reader, order binary.ByteOrder, w width) (profileDataEntry, error) {
	var e profileDataEntry
	var err error
	if e.nameRef, err = readU64(r, order); err != nil {
		return e, err
	}
	if e.fnHash, err = readU64(r, order); err != nil {
		return e, err
	}
	if e.counterPtr, err = readWidth(r, order, w); err != nil {
		return e, err
	}
	if e.functionAddr, err = readWidth(r, order, w); err != nil {
		return e, err
	}
	if e.valuesPtr, err = readWidth(r, order, w); err != nil {
		return e, err
	}
	if e.numCounters, err = readU32(r, order); err != nil {
		return e, err
	}
	if e.numValueSites[0], err = readU16(r, order); err != nil {
		return e, err
	}
	if e.numValueSites[1], err = readU16(r, order); err != nil {
		return e, err
	}
	return e, nil
}

// readAllCounters decodes the counters region. For versions >= 8 each
// record's offset is a signed delta `(counter_ptr - delta)`, where delta
// starts at counters_delta and is reduced after each record by the size
// of one ProfileData entry; offsets are measured from the start of the
// counters region, not accumulated from record to record. Earlier versions
// simply read num_counters entries sequentially.
func readAllCounters(r *bytesutil.Reader, order binary.ByteOrder, h *header, entries []profileDataEntry, byteCoverage bool, w width) ([][]uint64, error) {
	maxCounters := h.maxCountersLen()
	out := make([][]uint64, len(entries))

	versioned := (h.version &^ 0xFF00_0000_0000_0000) >= 8

	counterEntrySize := 8 // one u64 counter unless byte-coverage
	if byteCoverage {
		counterEntrySize = 1
	}

	if !versioned {
		for i, e := range entries {
			counts, err := readCounterRun(r, order, int(e.numCounters), byteCoverage)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out[i] = counts
		}
		return out, nil
	}

	// Versions >= 8 give each record's counter_ptr as an address relative
	// to the same counters_delta base, so every offset is taken from the
	// start of this region rather than advanced sequentially.
	start := r.Pos()
	delta := int64(h.countersDelta)
	dataEntrySize := int64(8 + 8 + 3*int(w) + 4 + 2 + 2)
	for i, e := range entries {
		offset := (int64(e.counterPtr) - delta) / int64(counterEntrySize)
		delta -= dataEntrySize
		if offset < 0 || int64(e.numCounters) > maxCounters || offset > maxCounters || offset+int64(e.numCounters) > maxCounters {
			return nil, fmt.Errorf("entry %d: malformed counter offset %d (max %d)", i, offset, maxCounters)
		}
		entryStart := start + int(offset)*counterEntrySize
		if err := r.SeekTo(entryStart); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		counts, err := readCounterRun(r, order, int(e.numCounters), byteCoverage)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out[i] = counts
	}
	// Leave the cursor at the end of the counters array, before its
	// trailing padding, so the caller's post-counter padding and names
	// reads start where they should regardless of where individual
	// entries' offsets landed.
	if err := r.SeekTo(start + int(h.countersLen)*counterEntrySize); err != nil {
		return nil, fmt.Errorf("seeking past counters region: %w", err)
	}
	return out, nil
}

func readCounterRun(r *bytesutil.Reader, order binary.ByteOrder, n int, byteCoverage bool) ([]uint64, error) {
	counts := make([]uint64, n)
	for i := 0; i < n; i++ {
		if byteCoverage {
			b, err := r.Byte()
			if err != nil {
				return nil, err
			}
			if b == 0 {
				counts[i] = 1
			} else {
				counts[i] = 0
			}
			continue
		}
		v, err := readU64(r, order)
		if err != nil {
			return nil, err
		}
		counts[i] = v
	}
	return counts, nil
}

func skipValueProfileData(r *bytesutil.Reader, order binary.ByteOrder, e profileDataEntry) error {
	if e.numValueSites[0] == 0 && e.numValueSites[1] == 0 {
		return nil
	}
	totalSize, err := readU32(r, order)
	if err != nil {
		return fmt.Errorf("total size: %w", err)
	}
	// spec §4.E/§9: full value-profile decoding is deferred; the reader
	// must consume exactly total_size bytes including the 4 it just read.
	if totalSize < 4 {
		return fmt.Errorf("value profile total_size %d smaller than its own header", totalSize)
	}
	if _, err := r.Take(int(totalSize) - 4); err != nil {
		return fmt.Errorf("value profile body: %w", err)
	}
	return nil
}

func splitAndAddNames(m *profile.Model, blob string) {
	start := 0
	for i := 0; i <= len(blob); i++ {
		if i == len(blob) || blob[i] == nameSep {
			if i > start {
				m.Symtab.Add(blob[start:i], orderOf(m))
			}
			start = i + 1
		}
	}
}

func orderOf(m *profile.Model) binary.ByteOrder {
	if m.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
